package cache

import (
	"context"
	"time"
)

// TagDepartments помечает все закэшированные представления дерева подразделений
const TagDepartments = "departments"

// Invalidator сбрасывает записи кэша по тегу
type Invalidator interface {
	InvalidateByTag(ctx context.Context, tag string) error
}

// Store - кэш с тегами
type Store interface {
	Invalidator
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	Close() error
}

// DepartmentKey - ключ кэша для одного подразделения
func DepartmentKey(id string) string {
	return "department:" + id
}
