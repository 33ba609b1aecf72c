package store

import (
	"context"
	"sync"
	"time"

	"countdown.share/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	countdowns    map[string]models.SharedCountdown
	retention     time.Duration
	mu            sync.RWMutex
	cleanupCancel context.CancelFunc
}

// NewMemoryStore keeps records in process memory. With a positive retention,
// records are purged once they have been expired for longer than retention;
// otherwise they are kept for the life of the process.
func NewMemoryStore(retention, cleanupInterval time.Duration) *MemoryStore {
	store := &MemoryStore{
		countdowns: make(map[string]models.SharedCountdown),
		retention:  retention,
	}
	if retention > 0 && cleanupInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		store.cleanupCancel = cancel
		go store.cleanupLoop(ctx, cleanupInterval)
	}
	return store
}

func (s *MemoryStore) Create(ctx context.Context, c *models.SharedCountdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.countdowns[c.ShareID]; ok {
		return ErrConflict
	}
	s.countdowns[c.ShareID] = *c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, shareID string) (*models.SharedCountdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.countdowns[shareID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countdowns = make(map[string]models.SharedCountdown)
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(time.Now())
		}
	}
}

func (s *MemoryStore) cleanup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, c := range s.countdowns {
		if now.After(c.ExpiresAt.Add(s.retention)) {
			delete(s.countdowns, id)
			purged++
		}
	}
	return purged
}
