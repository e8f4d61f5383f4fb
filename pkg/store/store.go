// Package store fetches and caches full entity records for a session.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vanderheijden86/civicmap/pkg/logging"
	"github.com/vanderheijden86/civicmap/pkg/metrics"
	"github.com/vanderheijden86/civicmap/pkg/model"
)

// ErrNotFound is reported for any failed fetch, whether the service said 404
// or never answered. The underlying cause stays reachable via errors.As.
var ErrNotFound = errors.New("entity not found")

// FetchError is returned by Fetch on failure.
type FetchError struct {
	ID  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes every FetchError match ErrNotFound.
func (e *FetchError) Is(target error) bool { return target == ErrNotFound }

// Source is the subset of the data service the store needs.
type Source interface {
	County(ctx context.Context, fips string) (*model.Entity, error)
	State(ctx context.Context, code string) (*model.StateSummary, error)
}

// Status is the cache state of one id.
type Status int

const (
	Absent Status = iota
	Pending
	Resolved
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "absent"
	}
}

// Store caches entities for the life of a session. Concurrent fetches of the
// same id share one request. Failures are not cached.
type Store struct {
	src    Source
	logger *zap.Logger

	group singleflight.Group

	mu       sync.RWMutex
	entities map[string]*model.Entity
	pending  map[string]int
}

// New creates a store backed by src.
func New(src Source, logger *zap.Logger) *Store {
	return &Store{
		src:      src,
		logger:   logging.OrNop(logger).Named("store"),
		entities: make(map[string]*model.Entity),
		pending:  make(map[string]int),
	}
}

// Fetch returns the entity for id, from cache when possible. Digit ids are
// counties; anything else is a state code.
func (s *Store) Fetch(ctx context.Context, id string) (*model.Entity, error) {
	key := model.NormalizeID(id)
	if key == "" {
		return nil, &FetchError{ID: id, Err: errors.New("empty id")}
	}
	if e, ok := s.Cached(key); ok {
		metrics.EntityCache.Hit()
		return e, nil
	}

	s.mu.Lock()
	s.pending[key]++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.pending[key]--; s.pending[key] <= 0 {
			delete(s.pending, key)
		}
		s.mu.Unlock()
	}()

	// The flight is detached from ctx: callers sharing it, possibly from
	// other sessions, must not fail because the first caller went away.
	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		if e, ok := s.Cached(key); ok {
			metrics.EntityCache.Hit()
			return e, nil
		}
		metrics.EntityCache.Miss()
		defer metrics.Timer(metrics.EntityFetch)()
		e, err := s.load(flight, key)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entities[key] = e
		s.mu.Unlock()
		return e, nil
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, &FetchError{ID: key, Err: ctx.Err()}
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if shared {
		metrics.EntityCache.Coalesced()
	}
	if err != nil {
		s.logger.Debug("fetch failed", zap.String("id", key), zap.Error(err))
		return nil, &FetchError{ID: key, Err: err}
	}
	return v.(*model.Entity), nil
}

func (s *Store) load(ctx context.Context, key string) (*model.Entity, error) {
	if model.IsCountyID(key) {
		return s.src.County(ctx, key)
	}
	sum, err := s.src.State(ctx, key)
	if err != nil {
		return nil, err
	}
	return model.StateEntity(*sum), nil
}

// Cached returns the entity if it has been fetched successfully.
func (s *Store) Cached(id string) (*model.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[model.NormalizeID(id)]
	return e, ok
}

// Lookup reports the cache state of id. The entity is only returned when
// resolved.
func (s *Store) Lookup(id string) (Status, *model.Entity) {
	key := model.NormalizeID(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entities[key]; ok {
		return Resolved, e
	}
	if s.pending[key] > 0 {
		return Pending, nil
	}
	return Absent, nil
}

// Len returns the number of cached entities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}
