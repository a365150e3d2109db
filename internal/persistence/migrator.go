package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// migrationLockKey is the advisory lock held while a migration step runs so
// two vaultledger instances starting together do not race on the schema.
const migrationLockKey = 0x7661756c74 // "vault"

// Migration is one versioned schema step with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationStatus reports whether a known migration has been applied.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// LoadMigrations reads {version}_{name}.up.sql / .down.sql pairs from fsys.
// Every up file needs a matching down file and versions must be unique.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var up bool
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up = true
		case strings.HasSuffix(e.Name(), ".down.sql"):
		default:
			continue
		}
		version, name, err := parseMigrationName(e.Name())
		if err != nil {
			return nil, err
		}
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %d: conflicting names %q and %q", version, m.Name, name)
		}
		if up {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d_%s: missing up or down file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func parseMigrationName(filename string) (int, string, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(filename, ".up.sql"), ".down.sql")
	prefix, name, ok := strings.Cut(base, "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("migration %s: want {version}_{name}", filename)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", fmt.Errorf("migration %s: bad version %q", filename, prefix)
	}
	return version, name, nil
}

// Migrator applies the event_log and projections schemas.
type Migrator struct {
	db     *sql.DB
	source fs.FS
	logger zerolog.Logger
}

// NewMigrator reads migrations from fsys, normally the embedded
// migrations.FS or os.DirFS for an override directory.
func NewMigrator(db *sql.DB, fsys fs.FS, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, source: fsys, logger: logger}
}

// Up applies every pending migration in version order, one transaction each.
func (m *Migrator) Up(ctx context.Context) error {
	all, err := LoadMigrations(m.source)
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	pending := 0
	for _, mg := range all {
		if _, done := applied[mg.Version]; done {
			continue
		}
		pending++
		err := m.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, mg.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO public.schema_migrations (version, name) VALUES ($1, $2)
				 ON CONFLICT (version) DO NOTHING`,
				mg.Version, mg.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d_%s up: %w", mg.Version, mg.Name, err)
		}
		m.logger.Info().Int("version", mg.Version).Str("name", mg.Name).Msg("migration applied")
	}
	if pending == 0 {
		m.logger.Debug().Int("known", len(all)).Msg("schema up to date")
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	all, err := LoadMigrations(m.source)
	if err != nil {
		return err
	}
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	var version int
	err = m.db.QueryRowContext(ctx,
		`SELECT version FROM public.schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		m.logger.Info().Msg("nothing to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest migration: %w", err)
	}

	idx := sort.Search(len(all), func(i int) bool { return all[i].Version >= version })
	if idx == len(all) || all[idx].Version != version {
		return fmt.Errorf("migration %d is applied but has no source files", version)
	}
	mg := all[idx]

	err = m.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mg.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM public.schema_migrations WHERE version = $1`, mg.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("migration %d_%s down: %w", mg.Version, mg.Name, err)
	}
	m.logger.Info().Int("version", mg.Version).Str("name", mg.Name).Msg("migration rolled back")
	return nil
}

// Status lists every known migration with its apply time, nil when pending.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	all, err := LoadMigrations(m.source)
	if err != nil {
		return nil, err
	}
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, len(all))
	for i, mg := range all {
		out[i].Migration = mg
		if at, ok := applied[mg.Version]; ok {
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

func (m *Migrator) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		tx.Rollback()
		return fmt.Errorf("advisory lock: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS public.schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM public.schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = at
	}
	return out, rows.Err()
}
