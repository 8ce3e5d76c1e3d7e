package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath. Call
// Migrate before use.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("database path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers; concurrent saves queue in the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Lookup returns the profile for the header set, or ErrNotFound. A hit
// bumps the usage statistics; failing to do so is logged, not returned.
func (s *SQLiteStore) Lookup(ctx context.Context, tenantID string, labels []string) (*FormatProfile, error) {
	if err := validateKey(ctx, tenantID, labels); err != nil {
		return nil, err
	}
	fp := Fingerprint(labels)

	p, err := s.load(ctx, tenantID, fp)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO profile_meta (profile_id, tenant_id, last_used, usage_count, column_count)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			last_used = excluded.last_used,
			usage_count = profile_meta.usage_count + 1
		RETURNING usage_count`,
		p.ID, tenantID, now, len(p.Mappings)).Scan(&p.UsageCount)
	if err != nil {
		s.logger.Warn("failed to update profile usage", "profile_id", p.ID, "error", err)
	} else {
		p.LastUsed = now
	}
	return p, nil
}

func (s *SQLiteStore) load(ctx context.Context, tenantID, fp string) (*FormatProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := &FormatProfile{TenantID: tenantID, Fingerprint: fp}
	var headers string
	var lastUsed sql.NullTime
	var usage sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT p.id, p.headers, p.created_at, p.updated_at, m.last_used, m.usage_count
		FROM format_profiles p
		LEFT JOIN profile_meta m ON m.profile_id = p.id
		WHERE p.tenant_id = ? AND p.format_signature = ?`,
		tenantID, fp).Scan(&p.ID, &headers, &p.CreatedAt, &p.UpdatedAt, &lastUsed, &usage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	if err := json.Unmarshal([]byte(headers), &p.HeaderLabels); err != nil {
		return nil, fmt.Errorf("failed to decode headers for profile %s: %w", p.ID, err)
	}
	if lastUsed.Valid {
		p.LastUsed = lastUsed.Time
	}
	p.UsageCount = int(usage.Int64)

	p.Mappings, err = queryMappings(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return p, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMappings(ctx context.Context, q queryer, profileID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT source_header, target_field FROM column_mappings WHERE profile_id = ?`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]string{}
	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		out[source] = target
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}
	return out, nil
}

// Save upserts the profile for (tenantID, labels) and replaces its mappings
// in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, tenantID string, labels []string, mappings map[string]string) (*FormatProfile, error) {
	if err := validateKey(ctx, tenantID, labels); err != nil {
		return nil, err
	}
	fp := Fingerprint(labels)
	kept := FilterMappings(mappings)
	headers, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode headers: %w", err)
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p := &FormatProfile{
		TenantID:     tenantID,
		Fingerprint:  fp,
		HeaderLabels: append([]string(nil), labels...),
		Mappings:     kept,
		UpdatedAt:    now,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO format_profiles (id, tenant_id, format_signature, headers, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, format_signature) DO UPDATE SET
			headers = excluded.headers,
			updated_at = excluded.updated_at
		RETURNING id`,
		uuid.NewString(), tenantID, fp, string(headers), now, now).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM format_profiles WHERE id = ?`, p.ID).Scan(&p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM column_mappings WHERE profile_id = ?`, p.ID); err != nil {
		return nil, fmt.Errorf("failed to clear mappings: %w", err)
	}

	sources := make([]string, 0, len(kept))
	for source := range kept {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO column_mappings (id, profile_id, source_header, target_field, confidence, created_at)
		VALUES (?, ?, ?, ?, 1.0, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare mapping insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, source := range sources {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), p.ID, source, kept[source], now); err != nil {
			return nil, fmt.Errorf("failed to insert mapping %q: %w", source, err)
		}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO profile_meta (profile_id, tenant_id, last_used, usage_count, column_count)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(profile_id) DO UPDATE SET
			last_used = excluded.last_used,
			column_count = excluded.column_count
		RETURNING usage_count`,
		p.ID, tenantID, now, len(kept)).Scan(&p.UsageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile meta: %w", err)
	}
	p.LastUsed = now

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit profile: %w", err)
	}
	s.logger.Debug("saved format profile",
		"profile_id", p.ID,
		"tenant_id", tenantID,
		"mappings", len(kept),
		"dropped", len(mappings)-len(kept))
	return p, nil
}

// List returns all profiles of a tenant, most recently updated first.
func (s *SQLiteStore) List(ctx context.Context, tenantID string) ([]FormatProfile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.format_signature, p.headers, p.created_at, p.updated_at,
			COALESCE(m.usage_count, 0)
		FROM format_profiles p
		LEFT JOIN profile_meta m ON m.profile_id = p.id
		WHERE p.tenant_id = ?
		ORDER BY p.updated_at DESC, p.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	out, err := scanProfiles(rows, tenantID)
	if err != nil {
		return nil, err
	}
	// The single connection is free again once rows are closed.
	for i := range out {
		if out[i].Mappings, err = queryMappings(ctx, s.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanProfiles(rows *sql.Rows, tenantID string) ([]FormatProfile, error) {
	defer func() { _ = rows.Close() }()
	var out []FormatProfile
	for rows.Next() {
		p := FormatProfile{TenantID: tenantID}
		var headers string
		if err := rows.Scan(&p.ID, &p.Fingerprint, &headers, &p.CreatedAt, &p.UpdatedAt, &p.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		if err := json.Unmarshal([]byte(headers), &p.HeaderLabels); err != nil {
			return nil, fmt.Errorf("failed to decode headers for profile %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return out, nil
}
