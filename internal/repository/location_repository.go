package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/department-tree/internal/domain"
)

// LocationRepository определяет интерфейс для работы с локациями
type LocationRepository interface {
	Create(ctx context.Context, loc *domain.Location) error
	AllExist(ctx context.Context, ids []uuid.UUID) (bool, error)
	// SoftDeleteRelatedToDepartment деактивирует локации, для которых подразделение
	// остаётся единственным активным владельцем
	SoftDeleteRelatedToDepartment(ctx context.Context, departmentID uuid.UUID, now time.Time) (int64, error)
	IDsLinkedToDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]uuid.UUID, error)
	// PurgeUnlinked удаляет локации без связей: переданные и любые неактивные
	PurgeUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type locationRepository struct {
	db *gorm.DB
}

// NewLocationRepository создаёт новый экземпляр репозитория
func NewLocationRepository(db *gorm.DB) LocationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) Create(ctx context.Context, loc *domain.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

func (r *locationRepository) AllExist(ctx context.Context, ids []uuid.UUID) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Location{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&count).Error
	return count == int64(len(ids)), err
}

func (r *locationRepository) SoftDeleteRelatedToDepartment(ctx context.Context, departmentID uuid.UUID, now time.Time) (int64, error) {
	db := r.db.WithContext(ctx)

	linked := db.Session(&gorm.Session{NewDB: true}).
		Model(&domain.DepartmentLocation{}).
		Select("location_id").
		Where("department_id = ?", departmentID)

	activeOwners := db.Session(&gorm.Session{NewDB: true}).
		Table("department_locations AS dl").
		Select("COUNT(*)").
		Joins("JOIN departments d ON d.id = dl.department_id").
		Where("dl.location_id = locations.id AND d.is_active = ?", true)

	result := db.Model(&domain.Location{}).
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

func (r *locationRepository) IDsLinkedToDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(departmentIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.DepartmentLocation{}).
		Distinct().
		Where("department_id IN ?", departmentIDs).
		Pluck("location_id", &ids).Error
	return ids, err
}

func (r *locationRepository) PurgeUnlinked(ctx context.Context, ids []uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)

	links := db.Session(&gorm.Session{NewDB: true}).
		Table("department_locations AS dl").
		Select("1").
		Where("dl.location_id = locations.id")

	scope := r.db.Session(&gorm.Session{NewDB: true}).Where("is_active = ?", false)
	if len(ids) > 0 {
		scope = scope.Or("id IN ?", ids)
	}

	result := db.
		Where(scope).
		Where("NOT EXISTS (?)", links).
		Delete(&domain.Location{})
	return result.RowsAffected, result.Error
}
