package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/metrics"
	"github.com/department-tree/internal/repository"
)

// DefaultRetention - сколько неактивное подразделение хранится до физического удаления
const DefaultRetention = 30 * 24 * time.Hour

// ReapResult - итог одного прохода сборщика
type ReapResult struct {
	Deleted         int   `json:"deleted"`
	Reparented      int   `json:"reparented"`
	PurgedLocations int64 `json:"purged_locations"`
	PurgedPositions int64 `json:"purged_positions"`
}

// ReaperService удаляет давно неактивные подразделения, поднимая их детей на уровень выше
type ReaperService interface {
	DeleteInactive(ctx context.Context) (*ReapResult, error)
}

type reaperService struct {
	Deps
	retention time.Duration
}

// NewReaperService создаёт сборщик; retention <= 0 означает DefaultRetention
func NewReaperService(deps Deps, retention time.Duration) ReaperService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &reaperService{Deps: deps, retention: retention}
}

func (s *reaperService) DeleteInactive(ctx context.Context) (*ReapResult, error) {
	started := time.Now()
	now := s.now()
	cutoff := now.Add(-s.retention)

	result := &ReapResult{}
	err := runInTx(ctx, s.Transactor, s.Logger, func(tx repository.Tx) error {
		repo := tx.Departments()

		expired, err := repo.LockInactiveBefore(ctx, cutoff)
		if err != nil {
			return err
		}

		var locationIDs, positionIDs []uuid.UUID
		if len(expired) > 0 {
			if locationIDs, positionIDs, err = reapBatch(ctx, tx, expired, now, result); err != nil {
				return err
			}
		}

		// Сироты: связанные с партией и любые неактивные без связей
		if result.PurgedLocations, err = tx.Locations().PurgeUnlinked(ctx, locationIDs); err != nil {
			return err
		}
		if result.PurgedPositions, err = tx.Positions().PurgeUnlinked(ctx, positionIDs); err != nil {
			return err
		}
		return nil
	})
	metrics.ObserveMutation("reap", started, err)
	if err != nil {
		return nil, err
	}

	metrics.AddReaped("deleted", result.Deleted)
	metrics.AddReaped("reparented", result.Reparented)
	metrics.AddReaped("purged_locations", int(result.PurgedLocations))
	metrics.AddReaped("purged_positions", int(result.PurgedPositions))

	s.Logger.Info("inactive departments reaped",
		slog.Time("cutoff", cutoff),
		slog.Int("deleted", result.Deleted),
		slog.Int("reparented", result.Reparented),
		slog.Int64("purged_locations", result.PurgedLocations),
		slog.Int64("purged_positions", result.PurgedPositions),
	)

	if result.Deleted > 0 || result.Reparented > 0 {
		s.Notifier.Notify(cache.TagDepartments)
	}
	return result, nil
}

// reapBatch поднимает детей просроченных подразделений к ближайшему выжившему предку
// и удаляет партию. Возвращает локации и должности, которые были с ней связаны.
func reapBatch(
	ctx context.Context,
	tx repository.Tx,
	expired []domain.Department,
	now time.Time,
	result *ReapResult,
) (locationIDs, positionIDs []uuid.UUID, err error) {
	repo := tx.Departments()

	byID := make(map[uuid.UUID]*domain.Department, len(expired))
	ids := make([]uuid.UUID, 0, len(expired))
	for i := range expired {
		byID[expired[i].ID] = &expired[i]
		ids = append(ids, expired[i].ID)
	}

	for i := range expired {
		survivor, err := nearestSurvivor(ctx, repo, expired[i].ParentID, byID)
		if err != nil {
			return nil, nil, err
		}

		children, err := repo.LockChildren(ctx, expired[i].ID)
		if err != nil {
			return nil, nil, err
		}

		for j := range children {
			child := &children[j]
			if _, gone := byID[child.ID]; gone {
				continue
			}
			descendants, err := repo.LockDescendants(ctx, child.Path)
			if err != nil {
				return nil, nil, err
			}
			if err := reparentSubtree(ctx, repo, child, survivor, descendants, now); err != nil {
				return nil, nil, err
			}
			result.Reparented++
		}
	}

	if locationIDs, err = tx.Locations().IDsLinkedToDepartments(ctx, ids); err != nil {
		return nil, nil, err
	}
	if positionIDs, err = tx.Positions().IDsLinkedToDepartments(ctx, ids); err != nil {
		return nil, nil, err
	}

	deleted, err := repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	result.Deleted = int(deleted)
	return locationIDs, positionIDs, nil
}

// nearestSurvivor поднимается по предкам, пропуская удаляемые в этом проходе.
// nil означает, что выживших предков нет и дети станут корнями.
func nearestSurvivor(
	ctx context.Context,
	repo repository.DepartmentRepository,
	parentID *uuid.UUID,
	expired map[uuid.UUID]*domain.Department,
) (*domain.Department, error) {
	for parentID != nil {
		gone, ok := expired[*parentID]
		if !ok {
			return repo.LockByID(ctx, *parentID)
		}
		parentID = gone.ParentID
	}
	return nil, nil
}
