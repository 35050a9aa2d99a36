package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository - точка входа ко всем репозиториям вне транзакции
type Repository struct {
	Departments DepartmentRepository
	Locations   LocationRepository
	Positions   PositionRepository
}

// NewRepository создаёт набор репозиториев поверх одного подключения
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Departments: NewDepartmentRepository(db),
		Locations:   NewLocationRepository(db),
		Positions:   NewPositionRepository(db),
	}
}

// Transactor открывает транзакции
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx - область транзакции: репозитории, привязанные к ней, и её завершение
type Tx interface {
	Departments() DepartmentRepository
	Locations() LocationRepository
	Positions() PositionRepository
	Commit() error
	Rollback() error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor создаёт Transactor поверх GORM
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Begin(ctx context.Context) (Tx, error) {
	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormTx{db: tx, repo: NewRepository(tx)}, nil
}

type gormTx struct {
	db   *gorm.DB
	repo *Repository
}

func (t *gormTx) Departments() DepartmentRepository { return t.repo.Departments }
func (t *gormTx) Locations() LocationRepository     { return t.repo.Locations }
func (t *gormTx) Positions() PositionRepository     { return t.repo.Positions }

func (t *gormTx) Commit() error {
	return t.db.Commit().Error
}

func (t *gormTx) Rollback() error {
	return t.db.Rollback().Error
}
