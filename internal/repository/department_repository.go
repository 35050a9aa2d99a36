package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/department-tree/internal/domain"
)

// DepartmentRepository - операции блокировки и массового изменения дерева подразделений
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error)
	ExistsByIdentifier(ctx context.Context, identifier domain.Identifier) (bool, error)
	Save(ctx context.Context, dept *domain.Department) error

	// LockByID берёт строку подразделения под FOR UPDATE
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Department, error)
	// LockDescendants одним запросом блокирует и возвращает всех потомков пути,
	// включая ветки, помеченные удалением промежуточного узла
	LockDescendants(ctx context.Context, path domain.Path) ([]domain.Department, error)
	// LockChildren блокирует прямых детей подразделения
	LockChildren(ctx context.Context, parentID uuid.UUID) ([]domain.Department, error)
	// RewriteDescendants заменяет префикс пути у всех потомков и сдвигает их глубину.
	// Маркер получают все потомки, если помечен newPrefix, иначе только ветки из masked.
	RewriteDescendants(ctx context.Context, oldPrefix, newPrefix domain.Path, depthDelta int, masked []domain.Path, now time.Time) (int64, error)

	LockInactiveBefore(ctx context.Context, cutoff time.Time) ([]domain.Department, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type departmentRepository struct {
	db *gorm.DB
}

// NewDepartmentRepository создаёт новый экземпляр репозитория
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepository{db: db}
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	err := r.db.WithContext(ctx).Create(dept).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateIdentifier
	}
	return err
}

func (r *departmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	var dept domain.Department
	err := r.db.WithContext(ctx).First(&dept, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) ExistsByIdentifier(ctx context.Context, identifier domain.Identifier) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Department{}).
		Where("identifier = ?", identifier).
		Count(&count).Error
	return count > 0, err
}

// Save сохраняет только собственную строку подразделения, без связей
func (r *departmentRepository) Save(ctx context.Context, dept *domain.Department) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(dept).Error
}

func (r *departmentRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	var dept domain.Department
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&dept, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDepartmentNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func (r *departmentRepository) LockDescendants(ctx context.Context, path domain.Path) ([]domain.Department, error) {
	var descendants []domain.Department
	plain, marked := path.SubtreePatterns()
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(`path LIKE ? ESCAPE '\' OR path LIKE ? ESCAPE '\'`, plain, marked).
		Order("path ASC").
		Find(&descendants).Error
	return descendants, err
}

func (r *departmentRepository) LockChildren(ctx context.Context, parentID uuid.UUID) ([]domain.Department, error) {
	var children []domain.Department
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("parent_id = ?", parentID).
		Order("path ASC").
		Find(&children).Error
	return children, err
}

func (r *departmentRepository) RewriteDescendants(
	ctx context.Context,
	oldPrefix, newPrefix domain.Path,
	depthDelta int,
	masked []domain.Path,
	now time.Time,
) (int64, error) {
	if oldPrefix == newPrefix && depthDelta == 0 {
		return 0, nil
	}

	base := oldPrefix.Undecorated()
	newBase := newPrefix.Undecorated()
	plain, marked := oldPrefix.SubtreePatterns()
	markCond, markArgs := markedCondition(newPrefix, masked)

	// Остаток пути берётся после старого префикса с учётом собственного маркера строки
	args := append(markArgs,
		domain.DeletedMarker+newBase, newBase,
		domain.MarkedPattern(), len(domain.DeletedMarker)+len(base)+1, len(base)+1,
	)
	pathExpr := gorm.Expr(
		`CASE WHEN `+markCond+` THEN CAST(? AS TEXT) ELSE CAST(? AS TEXT) END || `+
			`substr(path, CASE WHEN path LIKE ? ESCAPE '\' THEN CAST(? AS INTEGER) ELSE CAST(? AS INTEGER) END)`,
		args...,
	)

	result := r.db.WithContext(ctx).
		Model(&domain.Department{}).
		Where(`path LIKE ? ESCAPE '\' OR path LIKE ? ESCAPE '\'`, plain, marked).
		Updates(map[string]any{
			"path":       pathExpr,
			"depth":      gorm.Expr("depth + ?", depthDelta),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

// markedCondition строит условие по старому пути строки: остаётся ли она под маркером
func markedCondition(newPrefix domain.Path, masked []domain.Path) (string, []any) {
	if newPrefix.IsDeleted() {
		return "1 = 1", nil
	}
	if len(masked) == 0 {
		return "1 = 0", nil
	}

	conds := make([]string, 0, len(masked))
	args := make([]any, 0, 2*len(masked))
	for _, p := range masked {
		conds = append(conds, `path = ? OR path LIKE ? ESCAPE '\'`)
		args = append(args, p.String(), p.DescendantPattern())
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

func (r *departmentRepository) LockInactiveBefore(ctx context.Context, cutoff time.Time) ([]domain.Department, error) {
	var departments []domain.Department
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("is_active = ? AND deleted_at IS NOT NULL AND deleted_at < ?", false, cutoff).
		Order("depth ASC, path ASC").
		Find(&departments).Error
	return departments, err
}

// DeleteByIDs физически удаляет подразделения вместе со связями с локациями и должностями
func (r *departmentRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)

	if err := db.Where("department_id IN ?", ids).Delete(&domain.DepartmentLocation{}).Error; err != nil {
		return 0, err
	}
	if err := db.Where("department_id IN ?", ids).Delete(&domain.DepartmentPosition{}).Error; err != nil {
		return 0, err
	}

	result := db.Where("id IN ?", ids).Delete(&domain.Department{})
	return result.RowsAffected, result.Error
}
