package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/dto"
)

// CatalogService создаёт локации и должности, к которым привязываются подразделения
type CatalogService interface {
	CreateLocation(ctx context.Context, req *dto.CreateLocationRequest) (*domain.Location, error)
	CreatePosition(ctx context.Context, req *dto.CreatePositionRequest) (*domain.Position, error)
}

type catalogService struct {
	Deps
}

// NewCatalogService создаёт новый экземпляр сервиса
func NewCatalogService(deps Deps) CatalogService {
	return &catalogService{Deps: deps}
}

func (s *catalogService) CreateLocation(ctx context.Context, req *dto.CreateLocationRequest) (*domain.Location, error) {
	now := s.now()
	loc := &domain.Location{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.Locations.Create(ctx, loc); err != nil {
		return nil, asDomainError(err)
	}
	return loc, nil
}

func (s *catalogService) CreatePosition(ctx context.Context, req *dto.CreatePositionRequest) (*domain.Position, error) {
	now := s.now()
	pos := &domain.Position{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Repo.Positions.Create(ctx, pos); err != nil {
		return nil, asDomainError(err)
	}
	return pos, nil
}
