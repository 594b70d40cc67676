package cache

import (
	"sync"

	"github.com/okian/robodash/internal/domain/model"
)

// Handle is one subscription to a key.
type Handle struct {
	c    *Cache
	e    *entry // nil when obtained from a closed cache
	key  model.ResourceKey
	ch   chan struct{}
	once sync.Once
}

// Key returns the subscribed key.
func (h *Handle) Key() model.ResourceKey { return h.key }

// State returns a snapshot of the entry. Data is shared with other
// subscribers and must be treated as read-only.
func (h *Handle) State() model.QueryState[any] {
	if h.e == nil {
		return model.QueryState[any]{
			Status: model.StatusError,
			Err:    model.NewCanceled("cache.subscribe", ErrClosed),
		}
	}
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.e.state
}

// Changed signals after the state changed. Signals coalesce: a receiver
// that falls behind sees one pending signal, then reads the latest State.
func (h *Handle) Changed() <-chan struct{} { return h.ch }

// Unsubscribe releases the subscription. Extra calls are no-ops.
func (h *Handle) Unsubscribe() {
	h.once.Do(func() {
		if h.e != nil {
			h.c.release(h)
		}
	})
}
