package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notifier получает уведомления об изменениях после коммита
type Notifier interface {
	Notify(tags ...string)
}

// AsyncNotifier сбрасывает теги в фоне, не блокируя вызывающего.
// Ошибки только логируются: кэш согласуется в пределах TTL.
type AsyncNotifier struct {
	inv     Invalidator
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsyncNotifier(inv Invalidator, logger *slog.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		inv:     inv,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (n *AsyncNotifier) Notify(tags ...string) {
	if len(tags) == 0 {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		for _, tag := range tags {
			if err := n.inv.InvalidateByTag(ctx, tag); err != nil {
				n.logger.Warn("cache invalidation failed",
					slog.String("tag", tag),
					slog.Any("error", err),
				)
			}
		}
	}()
}

// Wait дожидается завершения всех запущенных сбросов
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}
