package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/okian/arenawatch/internal/domain/cachegate"
	"github.com/okian/arenawatch/internal/domain/model"
)

// DB is SQLite-backed storage for snapshots and cache entries.
type DB struct {
	db   *sql.DB
	path string
}

var (
	_ Persister       = (*DB)(nil)
	_ cachegate.Store = (*DB)(nil)
)

// Open opens or creates the database file at path and its directory.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrDatabaseOpen, err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpen, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %w", ErrDatabaseOpen, err)
	}

	d := &DB{db: db, path: path}
	if err := d.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create tables: %w", ErrDatabaseOpen, err)
	}
	return d, nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		category TEXT NOT NULL,
		slot TEXT NOT NULL,
		as_of INTEGER NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		records_json TEXT NOT NULL,
		PRIMARY KEY (category, slot)
	);

	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		computed_at INTEGER NOT NULL
	);
	`
	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// SaveSnapshot implements Persister.SaveSnapshot.
func (d *DB) SaveSnapshot(ctx context.Context, slot model.Slot, s *model.Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	records, err := json.Marshal(s.Records)
	if err != nil {
		return fmt.Errorf("serialize records: %w", err)
	}

	query := `
	INSERT INTO snapshots (category, slot, as_of, source, records_json)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(category, slot) DO UPDATE SET
		as_of = excluded.as_of,
		source = excluded.source,
		records_json = excluded.records_json
	`
	if _, err := d.db.ExecContext(ctx, query,
		string(s.Category), string(slot), s.AsOf.UnixNano(), s.Source, string(records)); err != nil {
		return fmt.Errorf("save snapshot %s/%s: %w", s.Category, slot, err)
	}
	return nil
}

// LoadSnapshots implements Persister.LoadSnapshots. Rows naming unknown
// categories or slots are ignored.
func (d *DB) LoadSnapshots(ctx context.Context) ([]model.SnapshotSet, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT category, slot, as_of, source, records_json FROM snapshots ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byCategory := make(map[model.Category]*model.SnapshotSet)
	var order []model.Category
	for rows.Next() {
		var (
			category, slot, source, records string
			asOf                            int64
		)
		if err := rows.Scan(&category, &slot, &asOf, &source, &records); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		cat, err := model.ParseCategory(category)
		if err != nil {
			continue
		}
		snap := &model.Snapshot{
			Category: cat,
			AsOf:     time.Unix(0, asOf).UTC(),
			Source:   source,
		}
		if err := json.Unmarshal([]byte(records), &snap.Records); err != nil {
			return nil, fmt.Errorf("decode snapshot %s/%s: %w", category, slot, err)
		}

		set, ok := byCategory[cat]
		if !ok {
			set = &model.SnapshotSet{Category: cat}
			byCategory[cat] = set
			order = append(order, cat)
		}
		switch model.Slot(slot) {
		case model.SlotLive:
			set.Live = snap
		case model.SlotWeek:
			set.Week = snap
		case model.SlotMonth:
			set.Month = snap
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	out := make([]model.SnapshotSet, 0, len(order))
	for _, cat := range order {
		out = append(out, *byCategory[cat])
	}
	return out, nil
}

// Get implements cachegate.Store.Get.
func (d *DB) Get(ctx context.Context, key string) (cachegate.Entry, error) {
	var (
		payload    []byte
		computedAt int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT payload, computed_at FROM cache_entries WHERE key = ?`, key).Scan(&payload, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cachegate.Entry{}, cachegate.ErrNotFound
	}
	if err != nil {
		return cachegate.Entry{}, fmt.Errorf("get cache entry %s: %w", key, err)
	}
	return cachegate.Entry{Key: key, Payload: payload, ComputedAt: time.Unix(0, computedAt).UTC()}, nil
}

// Put implements cachegate.Store.Put. The whole entry is replaced.
func (d *DB) Put(ctx context.Context, e cachegate.Entry) error {
	query := `
	INSERT INTO cache_entries (key, payload, computed_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		payload = excluded.payload,
		computed_at = excluded.computed_at
	`
	payload := e.Payload
	if payload == nil {
		payload = []byte{}
	}
	if _, err := d.db.ExecContext(ctx, query, e.Key, payload, e.ComputedAt.UnixNano()); err != nil {
		return fmt.Errorf("put cache entry %s: %w", e.Key, err)
	}
	return nil
}

// Delete removes a cache entry.
func (d *DB) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}
