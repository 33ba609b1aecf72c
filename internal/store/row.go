package store

import (
	"fmt"
	"time"

	"countdown.share/internal/models"
)

// row mirrors the countdowns table, instants as ISO-8601 text.
type row struct {
	ShareID    string `json:"share_id"`
	Name       string `json:"name"`
	TargetDate string `json:"target_date"`
	EndMessage string `json:"end_message"`
	ExpiresAt  string `json:"expires_at"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toRow(c *models.SharedCountdown) row {
	r := row{
		ShareID:    c.ShareID,
		Name:       c.Name,
		TargetDate: formatInstant(c.Target),
		EndMessage: c.EndMessage,
		ExpiresAt:  formatInstant(c.ExpiresAt),
	}
	if !c.CreatedAt.IsZero() {
		r.CreatedAt = formatInstant(c.CreatedAt)
	}
	return r
}

func (r row) countdown() (*models.SharedCountdown, error) {
	target, err := parseInstant(r.TargetDate)
	if err != nil {
		return nil, fmt.Errorf("target_date: %w", err)
	}
	expiresAt, err := parseInstant(r.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	c := &models.SharedCountdown{
		ShareID:    r.ShareID,
		Name:       r.Name,
		Target:     target,
		EndMessage: r.EndMessage,
		ExpiresAt:  expiresAt,
	}
	if r.CreatedAt != "" {
		if c.CreatedAt, err = parseInstant(r.CreatedAt); err != nil {
			return nil, fmt.Errorf("created_at: %w", err)
		}
	}
	return c, nil
}

func (r row) fields() map[string]any {
	return map[string]any{
		"share_id":    r.ShareID,
		"name":        r.Name,
		"target_date": r.TargetDate,
		"end_message": r.EndMessage,
		"expires_at":  r.ExpiresAt,
		"created_at":  r.CreatedAt,
	}
}

func rowFromFields(m map[string]string) row {
	return row{
		ShareID:    m["share_id"],
		Name:       m["name"],
		TargetDate: m["target_date"],
		EndMessage: m["end_message"],
		ExpiresAt:  m["expires_at"],
		CreatedAt:  m["created_at"],
	}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseInstant accepts RFC 3339 and the text form Postgres prints for
// timestamptz values.
func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant %q", s)
}
