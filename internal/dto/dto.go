package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateDepartmentRequest - запрос на создание подразделения
type CreateDepartmentRequest struct {
	Name        string      `json:"name" validate:"required,min=3,max=150"`
	Identifier  string      `json:"identifier" validate:"required,min=2,max=150"`
	ParentID    *uuid.UUID  `json:"parent_id"`
	LocationIDs []uuid.UUID `json:"location_ids" validate:"required,min=1"`
	PositionIDs []uuid.UUID `json:"position_ids"`
}

// MoveDepartmentRequest - запрос на перенос подразделения; пустой parent_id делает его корнем
type MoveDepartmentRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// CreateLocationRequest - запрос на создание локации
type CreateLocationRequest struct {
	Name    string `json:"name" validate:"required,min=3,max=120"`
	Address string `json:"address" validate:"required,min=1,max=500"`
}

// CreatePositionRequest - запрос на создание должности
type CreatePositionRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// DepartmentResponse - ответ с данными подразделения
type DepartmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Identifier string     `json:"identifier"`
	ParentID   *uuid.UUID `json:"parent_id"`
	Path       string     `json:"path"`
	Depth      int        `json:"depth"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// LocationResponse - ответ с данными локации
type LocationResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PositionResponse - ответ с данными должности
type PositionResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ErrorDetail - одна типизированная ошибка
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse - стандартный ответ с ошибкой
type ErrorResponse struct {
	Error   string        `json:"error"`
	Message string        `json:"message,omitempty"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}
