package share

import (
	"errors"

	"countdown.share/internal/models"
)

// State is the outcome of resolving a share id. It is exactly one of Ready,
// NotFound, Expired, TransportError or Broken.
type State interface {
	state()
}

type (
	// Ready carries the resolved countdown.
	Ready struct{ Countdown *models.SharedCountdown }
	// NotFound means no countdown was ever shared under the id.
	NotFound struct{}
	// Expired means the countdown exists but its share has lapsed.
	Expired struct{}
	// TransportError means the remote store could not be reached or is
	// not configured.
	TransportError struct{ Err error }
	// Broken means the remote store violated an invariant.
	Broken struct{ Err error }
)

func (Ready) state()          {}
func (NotFound) state()       {}
func (Expired) state()        {}
func (TransportError) state() {}
func (Broken) state()         {}

// Classify folds a Resolve result into a State.
func Classify(c *models.SharedCountdown, err error) State {
	switch {
	case err == nil && c != nil:
		return Ready{Countdown: c}
	case errors.Is(err, ErrNotFound):
		return NotFound{}
	case errors.Is(err, ErrExpired):
		return Expired{}
	case errors.Is(err, ErrInvariant):
		return Broken{Err: err}
	case err == nil:
		return NotFound{}
	default:
		return TransportError{Err: err}
	}
}
