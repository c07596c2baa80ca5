package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial.sql
var sqliteMigration string

// SQLiteStore implements Store on an SQLite database. It is suitable for
// single-node deployments; use ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dsn.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Append pragmas to the DSN so they apply to every connection in the pool.
	if dsn != ":memory:" {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One open connection serializes writes and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert implements Store.
func (s *SQLiteStore) Upsert(ctx context.Context, rec ResourceRecord) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resource_records (kind, id, name, region, tags, status, fingerprint, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, id) DO UPDATE SET
			name = excluded.name,
			region = excluded.region,
			tags = excluded.tags,
			status = excluded.status,
			fingerprint = excluded.fingerprint,
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`, rec.Kind, rec.ID, rec.Name, rec.Region, string(tags), string(rec.Status), rec.Fingerprint,
		string(attrs), rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, kind, id string) (ResourceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, id, name, region, tags, status, fingerprint, attributes, created_at, updated_at
		FROM resource_records
		WHERE kind = ? AND id = ?
	`, kind, id)
	return scanRecord(row)
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, kind string) ([]ResourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, name, region, tags, status, fingerprint, attributes, created_at, updated_at
		FROM resource_records
		WHERE kind = ?
		ORDER BY created_at, name, id
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListAll implements Store.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]ResourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, name, region, tags, status, fingerprint, attributes, created_at, updated_at
		FROM resource_records
		ORDER BY created_at, name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, kind, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM resource_records WHERE kind = ? AND id = ?
	`, kind, id)
	return err
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (ResourceRecord, error) {
	var rec ResourceRecord
	var tagsJSON, status, attrsJSON, createdAt, updatedAt string

	if err := s.Scan(&rec.Kind, &rec.ID, &rec.Name, &rec.Region, &tagsJSON, &status,
		&rec.Fingerprint, &attrsJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ResourceRecord{}, ErrNotFound
		}
		return ResourceRecord{}, err
	}

	rec.Status = Status(status)
	if tagsJSON != "" && tagsJSON != "{}" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &rec.Tags); err != nil {
			return ResourceRecord{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if attrsJSON != "" && attrsJSON != "{}" {
		if err := json.Unmarshal([]byte(attrsJSON), &rec.Attributes); err != nil {
			return ResourceRecord{}, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]ResourceRecord, error) {
	var out []ResourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
