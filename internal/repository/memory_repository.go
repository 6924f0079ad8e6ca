package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/anime-shed/ocr-chat-go/internal/session"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// entry pairs a state with a one-slot semaphore serialising its operations.
type entry struct {
	lock  chan struct{}
	state *session.State
}

// MemorySessionRepository stores sessions in process memory and drops them
// after ttl without activity.
type MemorySessionRepository struct {
	cache *cache.Cache
}

// NewMemorySessionRepository creates the repository. onEnd, when non-nil, is
// called with the ID of every session that expires or is deleted.
func NewMemorySessionRepository(ttl, cleanupInterval time.Duration, onEnd func(id string)) *MemorySessionRepository {
	c := cache.New(ttl, cleanupInterval)
	if onEnd != nil {
		c.OnEvicted(func(id string, _ interface{}) {
			onEnd(id)
		})
	}
	return &MemorySessionRepository{cache: c}
}

func (r *MemorySessionRepository) Create() (string, error) {
	id := uuid.NewString()
	e := &entry{
		lock:  make(chan struct{}, 1),
		state: session.New(),
	}
	if err := r.cache.Add(id, e, cache.DefaultExpiration); err != nil {
		return "", fmt.Errorf("register session: %w", err)
	}
	return id, nil
}

func (r *MemorySessionRepository) Exists(id string) error {
	_, err := r.get(id)
	return err
}

func (r *MemorySessionRepository) Snapshot(ctx context.Context, id string) (session.Snapshot, error) {
	var snap session.Snapshot
	err := r.Update(ctx, id, func(s *session.State) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

func (r *MemorySessionRepository) Update(ctx context.Context, id string, fn func(*session.State) error) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.lock }()

	// Refresh the idle timer only if the session is still registered.
	if _, found := r.cache.Get(id); found {
		r.cache.Set(id, e, cache.DefaultExpiration)
	}
	return fn(e.state)
}

func (r *MemorySessionRepository) Delete(id string) error {
	if _, err := r.get(id); err != nil {
		return err
	}
	r.cache.Delete(id)
	return nil
}

func (r *MemorySessionRepository) Count() int {
	return r.cache.ItemCount()
}

func (r *MemorySessionRepository) get(id string) (*entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSessionID
	}
	x, found := r.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	return x.(*entry), nil
}
