package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"countdown.share/internal/models"
)

var _ Store = (*RESTStore)(nil)

// RESTConfig points at a PostgREST endpoint, such as a Supabase project.
type RESTConfig struct {
	URL     string
	Key     string
	Table   string
	Timeout time.Duration
}

// RESTStore talks to the countdowns table over the PostgREST HTTP API.
type RESTStore struct {
	base   string
	key    string
	client *http.Client
}

// StatusError is a non-success response from the REST endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest store: unexpected status %d: %s", e.Status, e.Body)
}

func NewRESTStore(cfg RESTConfig) (*RESTStore, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("rest store: endpoint url and access key are required")
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("rest store: invalid url: %w", err)
	}
	if cfg.Table == "" {
		cfg.Table = "countdowns"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RESTStore{
		base:   strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + cfg.Table,
		key:    cfg.Key,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (s *RESTStore) Create(ctx context.Context, c *models.SharedCountdown) error {
	body, err := json.Marshal([]row{toRow(c)})
	if err != nil {
		return err
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.base, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	var rows []row
	if err := s.do(req, &rows); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusConflict {
			return ErrConflict
		}
		return err
	}
	if len(rows) != 1 {
		return fmt.Errorf("rest store: insert returned %d rows", len(rows))
	}
	return nil
}

func (s *RESTStore) Get(ctx context.Context, shareID string) (*models.SharedCountdown, error) {
	q := url.Values{}
	q.Set("share_id", "eq."+shareID)
	q.Set("select", "*")
	q.Set("limit", "2")

	req, err := s.newRequest(ctx, http.MethodGet, s.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := s.do(req, &rows); err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return rows[0].countdown()
	default:
		return nil, ErrDuplicate
	}
}

func (s *RESTStore) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, s.base+"?select=share_id&limit=1", nil)
	if err != nil {
		return err
	}
	var rows []row
	return s.do(req, &rows)
}

func (s *RESTStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RESTStore) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (s *RESTStore) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("rest store: decoding response: %w", err)
	}
	return nil
}
