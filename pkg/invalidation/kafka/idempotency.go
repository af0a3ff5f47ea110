package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
)

// versionDedupe remembers the highest ingest version applied per variable.
// Redelivered or reordered events at or below it are skipped.
type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[model.Variable, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 64
	}
	c, _ := lru.New[model.Variable, uint64](size)
	return &versionDedupe{lru: c}
}

func (d *versionDedupe) shouldApply(v model.Variable, version uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(v); ok && version <= last {
		return false
	}
	d.lru.Add(v, version)
	return true
}

// forget rolls back a version recorded by shouldApply whose bump failed.
func (d *versionDedupe) forget(v model.Variable, version uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(v); ok && last == version {
		d.lru.Remove(v)
	}
}

func (d *versionDedupe) last(v model.Variable) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lru.Get(v)
}
