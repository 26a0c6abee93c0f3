package sqlite

import (
	"cmp"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// <version>_<name>.<up|down>.sql
var migrationName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// ErrNoMigration is returned by MigrateDown on an empty schema.
var ErrNoMigration = errors.New("no applied migration")

// Migration is one numbered schema step with its rollback.
type Migration struct {
	Version     int
	Description string
	UpSQL       string
	DownSQL     string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// Migrator moves the catalog schema between versions. Each step and its
// schema_migrations row are written in the same transaction.
type Migrator struct {
	db     *sql.DB
	source fs.FS
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db, source: migrationsFS}
}

// LoadMigrations reads the embedded scripts, ordered by version.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	files, err := fs.Glob(m.source, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)

	for _, file := range files {
		parts := migrationName.FindStringSubmatch(path.Base(file))
		if parts == nil {
			continue
		}

		version, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", file, err)
		}

		body, err := fs.ReadFile(m.source, file)
		if err != nil {
			return nil, fmt.Errorf("reading migration %s: %w", file, err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Description: strings.ReplaceAll(parts[2], "_", " ")}
			byVersion[version] = mig
		}

		switch parts[3] {
		case "up":
			mig.UpSQL = string(body)
		case "down":
			mig.DownSQL = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, *mig)
	}

	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })

	return out, nil
}

// CurrentVersion is the highest applied version, 0 on a fresh database.
func (m *Migrator) CurrentVersion() (int, error) {
	var exists int

	if err := m.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("looking up schema_migrations: %w", err)
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := m.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}

	return version, nil
}

func (m *Migrator) AppliedMigrations() ([]MigrationRecord, error) {
	version, err := m.CurrentVersion()
	if err != nil || version == 0 {
		return nil, err
	}

	rows, err := m.db.Query(
		`SELECT version, applied_at, COALESCE(description, '') FROM schema_migrations ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord

	for rows.Next() {
		var (
			rec       MigrationRecord
			appliedAt string
		)

		if err := rows.Scan(&rec.Version, &appliedAt, &rec.Description); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}

		rec.AppliedAt, _ = parseTime(appliedAt)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// PendingMigrations lists the steps above the current version.
func (m *Migrator) PendingMigrations() ([]Migration, error) {
	all, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	version, err := m.CurrentVersion()
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(all, func(mig Migration) bool { return mig.Version <= version }), nil
}

// MigrateUp applies every pending step in version order.
func (m *Migrator) MigrateUp() error {
	if _, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		applied_at  TEXT NOT NULL,
		description TEXT
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}

	for _, mig := range pending {
		if mig.UpSQL == "" {
			return fmt.Errorf("migration %d: empty up script", mig.Version)
		}

		err := m.apply(mig.UpSQL,
			`INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)`,
			mig.Version, formatTime(time.Now()), mig.Description,
		)
		if err != nil {
			return fmt.Errorf("migration %d (%s) up: %w", mig.Version, mig.Description, err)
		}
	}

	return nil
}

// MigrateDown reverts the latest applied step.
func (m *Migrator) MigrateDown() error {
	version, err := m.CurrentVersion()
	if err != nil {
		return err
	}

	if version == 0 {
		return ErrNoMigration
	}

	all, err := m.LoadMigrations()
	if err != nil {
		return err
	}

	i := slices.IndexFunc(all, func(mig Migration) bool { return mig.Version == version })
	if i < 0 {
		return fmt.Errorf("migration %d: script missing from this build", version)
	}

	mig := all[i]
	if mig.DownSQL == "" {
		return fmt.Errorf("migration %d: empty down script", version)
	}

	if err := m.apply(mig.DownSQL, `DELETE FROM schema_migrations WHERE version = ?`, version); err != nil {
		return fmt.Errorf("migration %d (%s) down: %w", version, mig.Description, err)
	}

	return nil
}

func (m *Migrator) apply(script, bookkeeping string, args ...any) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(script); err != nil {
		return err
	}

	if _, err := tx.Exec(bookkeeping, args...); err != nil {
		return fmt.Errorf("bookkeeping: %w", err)
	}

	return tx.Commit()
}
