// Package sqlite persists routing entries in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/dialtone/pkg/domain"

	_ "modernc.org/sqlite"
)

const routeSchema = `
CREATE TABLE IF NOT EXISTS routes (
	number TEXT PRIMARY KEY,
	flow_id TEXT NOT NULL,
	flow_name TEXT NOT NULL DEFAULT '',
	voice TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_routes_flow ON routes(flow_id);`

// RouteStore implements ports.RouteStore on SQLite.
type RouteStore struct {
	db *sql.DB
}

// NewRouteStore opens (or creates) the database at dsn.
func NewRouteStore(dsn string) (*RouteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("route store sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("route sqlite store open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("route sqlite store set WAL mode: %w", err)
	}
	if _, err := db.Exec(routeSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("route sqlite store create schema: %w", err)
	}
	return &RouteStore{db: db}, nil
}

func (s *RouteStore) Put(ctx context.Context, entry domain.RouteEntry) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO routes (number, flow_id, flow_name, voice, language, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(number) DO UPDATE SET
	flow_id = excluded.flow_id,
	flow_name = excluded.flow_name,
	voice = excluded.voice,
	language = excluded.language,
	updated_at = excluded.updated_at`,
		entry.Number, entry.FlowID, entry.FlowName,
		entry.Voice.Voice, entry.Voice.Language,
		entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("route sqlite store put: %w", err)
	}
	return nil
}

func (s *RouteStore) Get(ctx context.Context, number string) (domain.RouteEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT number, flow_id, flow_name, voice, language, updated_at
FROM routes WHERE number = ?`, number)
	entry, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteEntry{}, domain.ErrRouteNotFound
	}
	if err != nil {
		return domain.RouteEntry{}, fmt.Errorf("route sqlite store get: %w", err)
	}
	return entry, nil
}

func (s *RouteStore) Delete(ctx context.Context, number string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM routes WHERE number = ?", number); err != nil {
		return fmt.Errorf("route sqlite store delete: %w", err)
	}
	return nil
}

func (s *RouteStore) List(ctx context.Context) ([]domain.RouteEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT number, flow_id, flow_name, voice, language, updated_at
FROM routes ORDER BY number ASC`)
	if err != nil {
		return nil, fmt.Errorf("route sqlite store list: %w", err)
	}
	defer rows.Close()

	var out []domain.RouteEntry
	for rows.Next() {
		entry, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("route sqlite store scan: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *RouteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoute(row scanner) (domain.RouteEntry, error) {
	var (
		entry   domain.RouteEntry
		updated string
	)
	err := row.Scan(&entry.Number, &entry.FlowID, &entry.FlowName,
		&entry.Voice.Voice, &entry.Voice.Language, &updated)
	if err != nil {
		return domain.RouteEntry{}, err
	}
	if updated != "" {
		t, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			return domain.RouteEntry{}, fmt.Errorf("parse updated_at: %w", err)
		}
		entry.UpdatedAt = t
	}
	return entry, nil
}
