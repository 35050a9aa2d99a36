package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/dto"
	"github.com/department-tree/internal/metrics"
	"github.com/department-tree/internal/repository"
)

// DepartmentService определяет интерфейс структурных операций над деревом
type DepartmentService interface {
	Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*domain.Department, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error)
	Move(ctx context.Context, id uuid.UUID, req *dto.MoveDepartmentRequest) (*domain.Department, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Deps - общие зависимости сервисов
type Deps struct {
	Repo       *repository.Repository
	Transactor repository.Transactor
	Cache      cache.Store
	Notifier   cache.Notifier
	CacheTTL   time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

type departmentService struct {
	Deps
}

// NewDepartmentService создаёт новый экземпляр сервиса
func NewDepartmentService(deps Deps) DepartmentService {
	return &departmentService{Deps: deps}
}

func (s *departmentService) Create(ctx context.Context, req *dto.CreateDepartmentRequest) (*domain.Department, error) {
	started := time.Now()

	identifier, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	var dept *domain.Department
	err = runInTx(ctx, s.Transactor, s.Logger, func(tx repository.Tx) error {
		exists, err := tx.Departments().ExistsByIdentifier(ctx, identifier)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateIdentifier
		}

		ok, err := tx.Locations().AllExist(ctx, req.LocationIDs)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrLocationNotFound
		}

		ok, err = tx.Positions().AllExist(ctx, req.PositionIDs)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPositionNotFound
		}

		var parent *domain.Department
		if req.ParentID != nil {
			parent, err = lockActiveParent(ctx, tx.Departments(), *req.ParentID)
			if err != nil {
				return err
			}
		}

		dept, err = domain.NewDepartment(req.Name, identifier, parent, req.LocationIDs, req.PositionIDs, s.now())
		if err != nil {
			return err
		}
		return tx.Departments().Create(ctx, dept)
	})
	metrics.ObserveMutation("create", started, err)
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(cache.TagDepartments)
	return dept, nil
}

func (s *departmentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	key := cache.DepartmentKey(id.String())

	if raw, ok, err := s.Cache.Get(ctx, key); err != nil {
		s.Logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	} else if ok {
		var dept domain.Department
		if err := json.Unmarshal(raw, &dept); err == nil {
			return &dept, nil
		}
	}

	dept, err := s.Repo.Departments.GetByID(ctx, id)
	if err != nil {
		return nil, asDomainError(err)
	}

	if raw, err := json.Marshal(dept); err == nil {
		if err := s.Cache.Set(ctx, key, raw, s.CacheTTL, cache.TagDepartments); err != nil {
			s.Logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return dept, nil
}

func (s *departmentService) Move(ctx context.Context, id uuid.UUID, req *dto.MoveDepartmentRequest) (*domain.Department, error) {
	started := time.Now()

	var dept *domain.Department
	err := runInTx(ctx, s.Transactor, s.Logger, func(tx repository.Tx) error {
		repo := tx.Departments()

		node, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if !node.IsActive {
			return domain.ErrDepartmentNotFound
		}

		descendants, err := repo.LockDescendants(ctx, node.Path)
		if err != nil {
			return err
		}

		var parent *domain.Department
		if req.ParentID != nil {
			parentID := *req.ParentID
			if parentID == node.ID {
				return domain.ErrSelfReference
			}
			// Родитель может быть только что создан, поэтому проверяем принадлежность по id
			if containsDepartment(descendants, parentID) {
				return domain.ErrCyclicMove
			}
			parent, err = lockActiveParent(ctx, repo, parentID)
			if err != nil {
				return err
			}
		}

		if err := reparentSubtree(ctx, repo, node, parent, descendants, s.now()); err != nil {
			return err
		}
		dept = node
		return nil
	})
	metrics.ObserveMutation("move", started, err)
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(cache.TagDepartments)
	return dept, nil
}

func (s *departmentService) Delete(ctx context.Context, id uuid.UUID) error {
	started := time.Now()

	err := runInTx(ctx, s.Transactor, s.Logger, func(tx repository.Tx) error {
		repo := tx.Departments()
		now := s.now()

		node, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := repo.LockDescendants(ctx, node.Path); err != nil {
			return err
		}

		if _, err := tx.Locations().SoftDeleteRelatedToDepartment(ctx, node.ID, now); err != nil {
			return err
		}
		if _, err := tx.Positions().SoftDeleteRelatedToDepartment(ctx, node.ID, now); err != nil {
			return err
		}

		oldPath := node.Path
		if err := node.Delete(now); err != nil {
			return err
		}
		if err := repo.Save(ctx, node); err != nil {
			return err
		}

		// Потомки остаются активными: меняется только префикс их пути
		_, err = repo.RewriteDescendants(ctx, oldPath, node.Path, 0, nil, now)
		return err
	})
	metrics.ObserveMutation("delete", started, err)
	if err != nil {
		return err
	}

	s.Notifier.Notify(cache.TagDepartments)
	return nil
}

// reparentSubtree переносит узел под parent и одним запросом переписывает его потомков.
// Узел и его потомки должны быть уже заблокированы.
func reparentSubtree(
	ctx context.Context,
	repo repository.DepartmentRepository,
	node, parent *domain.Department,
	descendants []domain.Department,
	now time.Time,
) error {
	oldPath := node.Path

	delta, err := node.SetParent(parent, now)
	if err != nil {
		return err
	}
	if err := repo.Save(ctx, node); err != nil {
		return err
	}

	_, err = repo.RewriteDescendants(ctx, oldPath, node.Path, delta, deletedBranches(descendants), now)
	return err
}

// deletedBranches возвращает пути верхних неактивных узлов поддерева.
// Их ветки сохраняют маркер при любом переносе.
func deletedBranches(descendants []domain.Department) []domain.Path {
	var inactive []domain.Path
	for i := range descendants {
		if !descendants[i].IsActive {
			inactive = append(inactive, descendants[i].Path)
		}
	}

	var roots []domain.Path
	for _, p := range inactive {
		nested := false
		for _, q := range inactive {
			if p.IsDescendantOf(q) {
				nested = true
				break
			}
		}
		if !nested {
			roots = append(roots, p)
		}
	}
	return roots
}

func lockActiveParent(ctx context.Context, repo repository.DepartmentRepository, id uuid.UUID) (*domain.Department, error) {
	parent, err := repo.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrDepartmentNotFound) {
			return nil, domain.ErrParentNotFound
		}
		return nil, err
	}
	if !parent.IsActive {
		return nil, domain.ErrParentNotFound
	}
	return parent, nil
}

func containsDepartment(departments []domain.Department, id uuid.UUID) bool {
	for i := range departments {
		if departments[i].ID == id {
			return true
		}
	}
	return false
}

func validateCreate(req *dto.CreateDepartmentRequest) (domain.Identifier, error) {
	var errs domain.Errors

	if err := domain.ValidateName(req.Name); err != nil {
		errs = append(errs, domain.ErrInvalidName)
	}

	identifier, err := domain.NewIdentifier(req.Identifier)
	if err != nil {
		errs = append(errs, domain.ErrInvalidIdentifier)
	}

	if len(req.LocationIDs) == 0 {
		errs = append(errs, domain.ErrEmptyLocationIDs)
	} else if hasDuplicates(req.LocationIDs) {
		errs = append(errs, domain.ErrDuplicateLocationIDs)
	}

	if hasDuplicates(req.PositionIDs) {
		errs = append(errs, domain.ErrDuplicatePositionIDs)
	}

	if len(errs) > 0 {
		return "", errs
	}
	return identifier, nil
}

func hasDuplicates(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
