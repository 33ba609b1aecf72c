// Package session keeps the current countdown of one browser profile in a
// single slot of key-value storage.
package session

import (
	"fmt"
	"time"

	"countdown.share/internal/models"
)

// Storage keys, shared by every backend.
const (
	KeyTarget     = "countdownTarget"
	KeyName       = "countdownName"
	KeyEndMessage = "countdownEndMessage"
)

// Storage is a synchronous string key-value store scoped to one profile.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// Store saves and loads the single current countdown.
type Store struct {
	kv Storage
}

func New(kv Storage) *Store {
	return &Store{kv: kv}
}

// Save overwrites the saved countdown.
func (s *Store) Save(spec models.CountdownSpec) error {
	values := []struct{ key, value string }{
		{KeyTarget, spec.Target.UTC().Format(time.RFC3339Nano)},
		{KeyName, spec.Name},
		{KeyEndMessage, spec.Message()},
	}
	for _, v := range values {
		if err := s.kv.Set(v.key, v.value); err != nil {
			return fmt.Errorf("saving %s: %w", v.key, err)
		}
	}
	return nil
}

// Load returns the saved countdown. It reports false when nothing was saved
// or the saved record lacks a name or a readable target. The target is not
// checked for freshness.
func (s *Store) Load() (models.CountdownSpec, bool) {
	name, ok := s.kv.Get(KeyName)
	if !ok || name == "" {
		return models.CountdownSpec{}, false
	}
	raw, ok := s.kv.Get(KeyTarget)
	if !ok || raw == "" {
		return models.CountdownSpec{}, false
	}
	target, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return models.CountdownSpec{}, false
	}

	endMessage, _ := s.kv.Get(KeyEndMessage)
	spec := models.CountdownSpec{
		Name:       name,
		Target:     target.UTC(),
		EndMessage: endMessage,
	}
	spec.EndMessage = spec.Message()
	return spec, true
}

// MapStorage is an in-memory Storage.
type MapStorage map[string]string

func (m MapStorage) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStorage) Set(key, value string) error {
	m[key] = value
	return nil
}
