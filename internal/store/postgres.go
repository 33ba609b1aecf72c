package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"countdown.share/internal/models"
)

var _ Store = (*PostgresStore)(nil)

// Schema is the countdowns table. Instants are ISO-8601 text.
const Schema = `
CREATE TABLE IF NOT EXISTS countdowns (
	share_id    TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	target_date TEXT NOT NULL,
	end_message TEXT NOT NULL,
	expires_at  TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT ''
)`

const pgUniqueViolation = "23505"

// PostgresStore keeps countdowns in a Postgres table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to dsn and makes sure the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create countdowns table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Create inserts a countdown.
func (s *PostgresStore) Create(ctx context.Context, c *models.SharedCountdown) error {
	r := toRow(c)
	query := `
		INSERT INTO countdowns (share_id, name, target_date, end_message, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		r.ShareID, r.Name, r.TargetDate, r.EndMessage, r.ExpiresAt, r.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}

// Get retrieves a countdown by share id. More than one match means the
// table lost its uniqueness guarantee and is reported as ErrDuplicate.
func (s *PostgresStore) Get(ctx context.Context, shareID string) (*models.SharedCountdown, error) {
	query := `SELECT share_id, name, target_date, end_message, expires_at, created_at
	          FROM countdowns WHERE share_id = $1 LIMIT 2`

	rows, err := s.db.Query(ctx, query, shareID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.ShareID, &r.Name, &r.TargetDate, &r.EndMessage, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return found[0].countdown()
	default:
		return nil, ErrDuplicate
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
