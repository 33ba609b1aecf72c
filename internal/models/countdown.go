package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrValidation is returned when a countdown cannot be created as requested.
var ErrValidation = errors.New("invalid countdown")

// ShareTTL is how long a shared countdown stays resolvable.
const ShareTTL = 30 * 24 * time.Hour

// Length limits, in characters. Each field travels in its own sealed
// cookie, which browsers cap at 4096 bytes.
const (
	MaxNameLength       = 200
	MaxEndMessageLength = 500
)

// CountdownSpec holds the parameters of one countdown.
type CountdownSpec struct {
	Name       string    `json:"name"`
	Target     time.Time `json:"target_date"`
	EndMessage string    `json:"end_message"`
}

// SharedCountdown is a CountdownSpec published under an opaque share id.
type SharedCountdown struct {
	ShareID    string    `json:"share_id"`
	Name       string    `json:"name"`
	Target     time.Time `json:"target_date"`
	EndMessage string    `json:"end_message"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// DefaultEndMessage is shown when a countdown has no custom end message.
func DefaultEndMessage(name string) string {
	return fmt.Sprintf("Woohoo! Countdown to %s has ended!", name)
}

// NewCountdownSpec trims input and fills in the default end message.
func NewCountdownSpec(name string, target time.Time, endMessage string) CountdownSpec {
	name = strings.TrimSpace(name)
	endMessage = strings.TrimSpace(endMessage)
	if endMessage == "" {
		endMessage = DefaultEndMessage(name)
	}
	return CountdownSpec{
		Name:       name,
		Target:     target.UTC(),
		EndMessage: endMessage,
	}
}

// Validate checks creation-time constraints. The target is only compared
// against now here; a stored spec is never re-validated.
func (s CountdownSpec) Validate(now time.Time) error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if utf8.RuneCountInString(s.Name) > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrValidation, MaxNameLength)
	}
	if utf8.RuneCountInString(s.EndMessage) > MaxEndMessageLength {
		return fmt.Errorf("%w: end message must be at most %d characters", ErrValidation, MaxEndMessageLength)
	}
	if s.Target.IsZero() {
		return fmt.Errorf("%w: target date is required", ErrValidation)
	}
	if !s.Target.After(now) {
		return fmt.Errorf("%w: you can't set a countdown to the past", ErrValidation)
	}
	return nil
}

// Message returns the end message, falling back to the default.
func (s CountdownSpec) Message() string {
	if s.EndMessage == "" {
		return DefaultEndMessage(s.Name)
	}
	return s.EndMessage
}

// Spec strips the distribution metadata.
func (c *SharedCountdown) Spec() CountdownSpec {
	return CountdownSpec{
		Name:       c.Name,
		Target:     c.Target,
		EndMessage: c.EndMessage,
	}
}

// Expired reports whether the share is past its expiry at now.
func (c *SharedCountdown) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
