// Package share publishes countdowns under opaque ids and resolves them.
package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"countdown.share/internal/crypto"
	"countdown.share/internal/log"
	"countdown.share/internal/models"
	"countdown.share/internal/store"
)

var (
	ErrRemoteUnavailable = errors.New("sharing is unavailable")
	ErrNotFound          = errors.New("shared countdown not found")
	ErrExpired           = errors.New("shared countdown has expired")
	ErrInvariant         = errors.New("share id resolves to more than one countdown")
)

const maxIDAttempts = 3

// Sharer creates and resolves shared countdowns.
type Sharer interface {
	Share(ctx context.Context, spec models.CountdownSpec) (*models.SharedCountdown, error)
	Resolve(ctx context.Context, shareID string) (*models.SharedCountdown, error)
}

var (
	_ Sharer = (*Service)(nil)
	_ Sharer = Unconfigured{}
)

// Config tunes a Service.
type Config struct {
	TTL     time.Duration
	Timeout time.Duration
	Now     func() time.Time
	NewID   func() string
}

// Service shares countdowns through a remote store.
type Service struct {
	store   store.Store
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	newID   func() string
	logger  zerolog.Logger
}

func NewService(st store.Store, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = models.ShareTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = crypto.GenerateShareID
	}
	return &Service{
		store:   st,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		now:     cfg.Now,
		newID:   cfg.NewID,
		logger:  log.WithComponent("share"),
	}
}

// Share stores spec as a new record expiring TTL from now. A taken id is
// regenerated a bounded number of times.
func (s *Service) Share(ctx context.Context, spec models.CountdownSpec) (*models.SharedCountdown, error) {
	if spec.Name == "" || spec.Target.IsZero() {
		return nil, fmt.Errorf("%w: name and target date are required", models.ErrValidation)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	c := &models.SharedCountdown{
		Name:       spec.Name,
		Target:     spec.Target.UTC(),
		EndMessage: spec.Message(),
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		c.ShareID = s.newID()
		err := s.store.Create(ctx, c)
		if err == nil {
			s.logger.Info().Str("share_id", c.ShareID).Time("expires_at", c.ExpiresAt).Msg("countdown shared")
			return c, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
		}
		s.logger.Warn().Str("share_id", c.ShareID).Int("attempt", attempt).Msg("share id collision")
	}
	return nil, fmt.Errorf("%w: could not allocate a unique share id", ErrRemoteUnavailable)
}

// Resolve looks up exactly one record. Expired records still exist in the
// store but resolve to ErrExpired.
func (s *Service) Resolve(ctx context.Context, shareID string) (*models.SharedCountdown, error) {
	if shareID == "" {
		return nil, ErrNotFound
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.store.Get(ctx, shareID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, store.ErrDuplicate):
		s.logger.Error().Str("share_id", shareID).Msg("share id is not unique")
		return nil, fmt.Errorf("%w: %s", ErrInvariant, shareID)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}

	if c.Expired(s.now()) {
		return nil, ErrExpired
	}
	return c, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Unconfigured is the Sharer used when no remote store is available.
type Unconfigured struct {
	Reason string
}

func (u Unconfigured) Share(context.Context, models.CountdownSpec) (*models.SharedCountdown, error) {
	return nil, u.err()
}

func (u Unconfigured) Resolve(context.Context, string) (*models.SharedCountdown, error) {
	return nil, u.err()
}

func (u Unconfigured) err() error {
	if u.Reason == "" {
		return ErrRemoteUnavailable
	}
	return fmt.Errorf("%w: %s", ErrRemoteUnavailable, u.Reason)
}
