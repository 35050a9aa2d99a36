package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/department-tree/internal/domain"
)

// PositionRepository определяет интерфейс для работы с должностями
type PositionRepository interface {
	Create(ctx context.Context, pos *domain.Position) error
	AllExist(ctx context.Context, ids []uuid.UUID) (bool, error)
	// SoftDeleteRelatedToDepartment деактивирует должности, для которых подразделение
	// остаётся единственным активным владельцем
	SoftDeleteRelatedToDepartment(ctx context.Context, departmentID uuid.UUID, now time.Time) (int64, error)
	IDsLinkedToDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]uuid.UUID, error)
	// PurgeUnlinked удаляет должности без связей: переданные и любые неактивные
	PurgeUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type positionRepository struct {
	db *gorm.DB
}

// NewPositionRepository создаёт новый экземпляр репозитория
func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

func (r *positionRepository) Create(ctx context.Context, pos *domain.Position) error {
	return r.db.WithContext(ctx).Create(pos).Error
}

func (r *positionRepository) AllExist(ctx context.Context, ids []uuid.UUID) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Position{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&count).Error
	return count == int64(len(ids)), err
}

func (r *positionRepository) SoftDeleteRelatedToDepartment(ctx context.Context, departmentID uuid.UUID, now time.Time) (int64, error) {
	db := r.db.WithContext(ctx)

	linked := db.Session(&gorm.Session{NewDB: true}).
		Model(&domain.DepartmentPosition{}).
		Select("position_id").
		Where("department_id = ?", departmentID)

	activeOwners := db.Session(&gorm.Session{NewDB: true}).
		Table("department_positions AS dp").
		Select("COUNT(*)").
		Joins("JOIN departments d ON d.id = dp.department_id").
		Where("dp.position_id = positions.id AND d.is_active = ?", true)

	result := db.Model(&domain.Position{}).
		Where("is_active = ?", true).
		Where("id IN (?)", linked).
		Where("(?) = 1", activeOwners).
		Updates(map[string]any{
			"is_active":  false,
			"deleted_at": now,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}

func (r *positionRepository) IDsLinkedToDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(departmentIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.DepartmentPosition{}).
		Distinct().
		Where("department_id IN ?", departmentIDs).
		Pluck("position_id", &ids).Error
	return ids, err
}

func (r *positionRepository) PurgeUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)

	links := db.Session(&gorm.Session{NewDB: true}).
		Table("department_positions AS dp").
		Select("1").
		Where("dp.position_id = positions.id")

	scope := r.db.Session(&gorm.Session{NewDB: true}).Where("is_active = ?", false)
	if len(ids) > 0 {
		scope = scope.Or("id IN ?", ids)
	}

	result := db.
		Where(scope).
		Where("NOT EXISTS (?)", links).
		Delete(&domain.Position{})
	return result.RowsAffected, result.Error
}
