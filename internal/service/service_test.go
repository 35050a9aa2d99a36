package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/dto"
	"github.com/department-tree/internal/repository"
	"github.com/department-tree/internal/service"
	"github.com/department-tree/internal/testdb"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	tags []string
}

func (n *recordingNotifier) Notify(tags ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tags = append(n.tags, tags...)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tags)
}

type env struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	deps     service.Deps
	notifier *recordingNotifier
	clock    time.Time

	departments service.DepartmentService
	catalog     service.CatalogService
}

func newEnv(t *testing.T) *env {
	db := testdb.Open(t)
	e := &env{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		notifier: &recordingNotifier{},
		clock:    baseTime,
	}
	e.deps = service.Deps{
		Repo:       repository.NewRepository(db),
		Transactor: repository.NewTransactor(db),
		Cache:      cache.NewMemoryStore(),
		Notifier:   e.notifier,
		CacheTTL:   time.Minute,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:        func() time.Time { return e.clock },
	}
	e.departments = service.NewDepartmentService(e.deps)
	e.catalog = service.NewCatalogService(e.deps)
	return e
}

func (e *env) location() uuid.UUID {
	e.t.Helper()
	loc, err := e.catalog.CreateLocation(e.ctx, &dto.CreateLocationRequest{Name: "Office", Address: "Main st. 1"})
	require.NoError(e.t, err)
	return loc.ID
}

func (e *env) position() uuid.UUID {
	e.t.Helper()
	pos, err := e.catalog.CreatePosition(e.ctx, &dto.CreatePositionRequest{Name: "Engineer"})
	require.NoError(e.t, err)
	return pos.ID
}

func (e *env) create(identifier string, parent *domain.Department, locationIDs ...uuid.UUID) *domain.Department {
	e.t.Helper()
	if len(locationIDs) == 0 {
		locationIDs = []uuid.UUID{e.location()}
	}
	req := &dto.CreateDepartmentRequest{
		Name:        "Department " + identifier,
		Identifier:  identifier,
		LocationIDs: locationIDs,
	}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	dept, err := e.departments.Create(e.ctx, req)
	require.NoError(e.t, err)
	return dept
}

func (e *env) reload(id uuid.UUID) *domain.Department {
	e.t.Helper()
	dept, err := e.deps.Repo.Departments.GetByID(e.ctx, id)
	require.NoError(e.t, err)
	return dept
}

func (e *env) locationActive(id uuid.UUID) bool {
	e.t.Helper()
	var loc domain.Location
	require.NoError(e.t, e.db.First(&loc, "id = ?", id).Error)
	return loc.IsActive
}

// failingTransactor подменяет RewriteDescendants, чтобы проверить откат
type failingTransactor struct {
	repository.Transactor
}

func (f failingTransactor) Begin(ctx context.Context) (repository.Tx, error) {
	tx, err := f.Transactor.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{Tx: tx}, nil
}

type failingTx struct {
	repository.Tx
}

func (t failingTx) Departments() repository.DepartmentRepository {
	return failingDepartments{DepartmentRepository: t.Tx.Departments()}
}

type failingDepartments struct {
	repository.DepartmentRepository
}

var errInjected = errors.New("injected failure")

func (failingDepartments) RewriteDescendants(context.Context, domain.Path, domain.Path, int, []domain.Path, time.Time) (int64, error) {
	return 0, errInjected
}
