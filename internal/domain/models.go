package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	nameMinLen = 3
	nameMaxLen = 150
)

// Department представляет узел дерева подразделений
type Department struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string     `json:"name" gorm:"type:varchar(150);not null"`
	Identifier Identifier `json:"identifier" gorm:"type:varchar(150);not null;uniqueIndex"`
	ParentID   *uuid.UUID `json:"parent_id" gorm:"type:uuid;index"`
	Path       Path       `json:"path" gorm:"type:text;not null;index"`
	Depth      int        `json:"depth" gorm:"not null"`
	IsActive   bool       `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"not null"`
	DeletedAt  *time.Time `json:"deleted_at" gorm:"index"`

	Locations []DepartmentLocation `json:"-" gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE"`
	Positions []DepartmentPosition `json:"-" gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (Department) TableName() string {
	return "departments"
}

// NewDepartment создаёт корневое подразделение (parent == nil) или дочернее
func NewDepartment(
	name string,
	identifier Identifier,
	parent *Department,
	locationIDs []uuid.UUID,
	positionIDs []uuid.UUID,
	now time.Time,
) (*Department, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	dept := &Department{
		ID:         uuid.New(),
		Name:       name,
		Identifier: identifier,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := dept.SetParent(parent, now); err != nil {
		return nil, err
	}

	for _, id := range locationIDs {
		dept.Locations = append(dept.Locations, DepartmentLocation{
			ID:           uuid.New(),
			DepartmentID: dept.ID,
			LocationID:   id,
		})
	}
	for _, id := range positionIDs {
		dept.Positions = append(dept.Positions, DepartmentPosition{
			ID:           uuid.New(),
			DepartmentID: dept.ID,
			PositionID:   id,
		})
	}

	return dept, nil
}

// ValidateName проверяет длину названия
func ValidateName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < nameMinLen || n > nameMaxLen {
		return ErrInvalidName
	}
	return nil
}

// SetParent пересчитывает путь и глубину относительно нового родителя.
// Возвращает разницу глубин, которую вызывающий применяет к потомкам.
func (d *Department) SetParent(parent *Department, now time.Time) (int, error) {
	var (
		path Path
		err  error
	)

	if parent == nil {
		path, err = NewRootPath(d.Identifier)
	} else {
		if parent.ID == d.ID {
			return 0, ErrSelfReference
		}
		path, err = parent.Path.Child(d.Identifier)
	}
	if err != nil {
		return 0, err
	}

	oldDepth := d.Depth
	d.Path = path
	d.Depth = path.Depth()
	if parent == nil {
		d.ParentID = nil
	} else {
		parentID := parent.ID
		d.ParentID = &parentID
	}
	d.UpdatedAt = now

	return d.Depth - oldDepth, nil
}

// Delete деактивирует подразделение и помечает только его собственный путь
func (d *Department) Delete(now time.Time) error {
	if !d.IsActive {
		return ErrDepartmentDeleted
	}
	if d.Path.IsDeleted() {
		return ErrDeletedLineage
	}

	path, err := d.Path.AddDeletedMarker()
	if err != nil {
		return err
	}

	d.Path = path
	d.IsActive = false
	d.DeletedAt = &now
	d.UpdatedAt = now
	return nil
}

// IsRoot сообщает, что у подразделения нет родителя
func (d *Department) IsRoot() bool {
	return d.ParentID == nil
}

// DepartmentLocation - связь подразделения с локацией
type DepartmentLocation struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DepartmentID uuid.UUID `json:"department_id" gorm:"type:uuid;not null;index"`
	LocationID   uuid.UUID `json:"location_id" gorm:"type:uuid;not null;index"`

	Location *Location `json:"-" gorm:"foreignKey:LocationID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (DepartmentLocation) TableName() string {
	return "department_locations"
}

// DepartmentPosition - связь подразделения с должностью
type DepartmentPosition struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	DepartmentID uuid.UUID `json:"department_id" gorm:"type:uuid;not null;index"`
	PositionID   uuid.UUID `json:"position_id" gorm:"type:uuid;not null;index"`

	Position *Position `json:"-" gorm:"foreignKey:PositionID;constraint:OnDelete:CASCADE"`
}

// TableName задаёт имя таблицы для GORM
func (DepartmentPosition) TableName() string {
	return "department_positions"
}

// Location представляет локацию
type Location struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string     `json:"name" gorm:"type:varchar(120);not null"`
	Address   string     `json:"address" gorm:"type:text;not null"`
	IsActive  bool       `json:"is_active" gorm:"not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"not null"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// TableName задаёт имя таблицы для GORM
func (Location) TableName() string {
	return "locations"
}

// Position представляет должность
type Position struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string     `json:"name" gorm:"type:varchar(100);not null"`
	Description string     `json:"description" gorm:"type:text"`
	IsActive    bool       `json:"is_active" gorm:"not null"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

// TableName задаёт имя таблицы для GORM
func (Position) TableName() string {
	return "positions"
}
