package runs

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
)

// Registry keeps pipeline runs in memory for polling and retry. Runs expire ttl after their
// last save.
type Registry struct {
	cache *cache.Cache
}

func NewRegistry(ttl, cleanupInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &Registry{cache: cache.New(ttl, cleanupInterval)}
}

func (r *Registry) Save(run *pipeline.Run) {
	r.cache.Set(run.ID(), run, cache.DefaultExpiration)
}

func (r *Registry) Get(id string) (*pipeline.Run, bool) {
	if x, found := r.cache.Get(id); found {
		run, ok := x.(*pipeline.Run)
		return run, ok
	}
	return nil, false
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
