package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/department-tree/internal/domain"
	"github.com/department-tree/internal/repository"
)

// runInTx выполняет fn в одной транзакции. Первая ошибка откатывает всё;
// отменённый контекст тоже приводит к откату, а не к коммиту.
func runInTx(ctx context.Context, t repository.Transactor, logger *slog.Logger, fn func(tx repository.Tx) error) (err error) {
	tx, err := t.Begin(ctx)
	if err != nil {
		return domain.ErrTransaction.Wrap(err)
	}

	defer func() {
		if r := recover(); r != nil {
			rollback(tx, logger)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		rollback(tx, logger)
		return asDomainError(err)
	}

	if err := ctx.Err(); err != nil {
		rollback(tx, logger)
		return domain.ErrTransaction.Wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ErrTransaction.Wrap(err)
	}
	return nil
}

func rollback(tx repository.Tx, logger *slog.Logger) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("failed to rollback transaction", slog.Any("error", err))
	}
}

// asDomainError оставляет типизированные ошибки как есть, остальное считает сбоем хранилища
func asDomainError(err error) error {
	var list domain.Errors
	if errors.As(err, &list) {
		return err
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTransaction.Wrap(err)
	}
	return domain.ErrPersistence.Wrap(err)
}
