// Package sqlite provides SQLite database storage for the repository catalog.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/inovacc/repoload/internal/model"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("sqlite: not found")

	// ErrConflict is returned when a create collides with an existing row.
	ErrConflict = errors.New("sqlite: already exists")
)

// UpsertRepoParams carries one repository registration.
type UpsertRepoParams struct {
	URL         string
	Owner       string
	Name        string
	GroupID     int64
	Source      string
	ResetStatus bool
	ArchivedAt  *time.Time
	Now         time.Time
}

// UpsertResult reports the stable row id and whether the row was inserted.
type UpsertResult struct {
	ID      int64
	Created bool
}

// CreateGroupParams describes a new repo group.
type CreateGroupParams struct {
	Name        string
	OwnerID     *int64
	Description string
	Now         time.Time
}

// Store implements the catalog on SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle multiple writers well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	migrator := NewMigrator(db)
	if err := migrator.MigrateUp(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for migrations tooling and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks if the database is accessible.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}

	return formatTime(t)
}

// ============================================================================
// Repository Operations
// ============================================================================

const upsertRepoSQL = `
INSERT INTO repos (url, owner, name, group_id, status, source, added_at, updated_at, archived_at, submissions)
VALUES (?, ?, ?, ?, 'New', ?, ?, ?, ?, 1)
ON CONFLICT (url) DO UPDATE SET
    group_id    = excluded.group_id,
    source      = excluded.source,
    updated_at  = excluded.updated_at,
    archived_at = COALESCE(repos.archived_at, excluded.archived_at),
    status      = CASE WHEN ? THEN 'New' ELSE repos.status END,
    submissions = repos.submissions + 1
RETURNING id, submissions`

// UpsertRepo inserts the repository if its URL is unknown and otherwise
// updates the existing row in place. Status is preserved unless ResetStatus
// is set.
func (s *Store) UpsertRepo(ctx context.Context, p UpsertRepoParams) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := stamp(p.Now)

	var (
		id          int64
		submissions int
	)

	err := s.db.QueryRowContext(ctx, upsertRepoSQL,
		p.URL, p.Owner, p.Name, p.GroupID, p.Source, now, now, nullTime(p.ArchivedAt),
		p.ResetStatus,
	).Scan(&id, &submissions)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upserting repo %s: %w", p.URL, err)
	}

	return UpsertResult{ID: id, Created: submissions == 1}, nil
}

// GetRepo returns the repository with the given id.
func (s *Store) GetRepo(ctx context.Context, id int64) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE id = ?`, id)

	repo, err := scanRepo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repo %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting repo %d: %w", id, err)
	}

	return repo, nil
}

// GetRepoByURL returns the repository registered under url. The lookup is
// case-insensitive.
func (s *Store) GetRepoByURL(ctx context.Context, url string) (*model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+repoColumns+` FROM repos WHERE url = ?`, url)

	repo, err := scanRepo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repo %s: %w", url, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting repo %s: %w", url, err)
	}

	return repo, nil
}

// ListRepos returns repositories ordered by id. A non-zero groupID keeps only
// repositories owned by that group.
func (s *Store) ListRepos(ctx context.Context, groupID int64) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + repoColumns + ` FROM repos`
	args := []any{}

	if groupID != 0 {
		query += ` WHERE group_id = ?`
		args = append(args, groupID)
	}

	query += ` ORDER BY id`

	return s.queryRepos(ctx, query, args...)
}

// ListReposByGroup returns the repositories that are members of groupID.
func (s *Store) ListReposByGroup(ctx context.Context, groupID int64) ([]model.Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.url, r.owner, r.name, r.group_id, r.status, r.source,
		       r.added_at, r.updated_at, r.archived_at, r.submissions
		FROM repos r
		JOIN user_repos m ON m.repo_id = r.id
		WHERE m.group_id = ?
		ORDER BY r.id`

	return s.queryRepos(ctx, query, groupID)
}

// SetRepoStatus records a lifecycle transition made by the collection
// pipeline.
func (s *Store) SetRepoStatus(ctx context.Context, id int64, status model.RepoStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE repos SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), stamp(time.Time{}), id,
	)
	if err != nil {
		return fmt.Errorf("setting status of repo %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting status of repo %d: %w", id, err)
	}

	if n == 0 {
		return fmt.Errorf("repo %d: %w", id, ErrNotFound)
	}

	return nil
}

func (s *Store) queryRepos(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing repos: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository

	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repo: %w", err)
		}

		repos = append(repos, *repo)
	}

	return repos, rows.Err()
}

// ============================================================================
// Membership Operations
// ============================================================================

// AddMembership links repoID to groupID. It reports false when the link
// already existed.
func (s *Store) AddMembership(ctx context.Context, repoID, groupID int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_repos (repo_id, group_id, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT (repo_id, group_id) DO NOTHING`,
		repoID, groupID, stamp(now),
	)
	if err != nil {
		return false, fmt.Errorf("adding repo %d to group %d: %w", repoID, groupID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding repo %d to group %d: %w", repoID, groupID, err)
	}

	return n == 1, nil
}

// ListMemberships returns membership rows, all of them when groupID is 0.
func (s *Store) ListMemberships(ctx context.Context, groupID int64) ([]model.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT repo_id, group_id, added_at FROM user_repos`
	args := []any{}

	if groupID != 0 {
		query += ` WHERE group_id = ?`
		args = append(args, groupID)
	}

	query += ` ORDER BY group_id, repo_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var memberships []model.Membership

	for rows.Next() {
		var (
			m       model.Membership
			addedAt string
		)

		if err := rows.Scan(&m.RepoID, &m.GroupID, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}

		m.AddedAt, _ = parseTime(addedAt)
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// ============================================================================
// Group Operations
// ============================================================================

// CreateGroup inserts a repo group. System-owned names are unique.
func (s *Store) CreateGroup(ctx context.Context, p CreateGroupParams) (*model.RepoGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.OwnerID == nil {
		if _, err := getSystemGroup(ctx, tx, p.Name); err == nil {
			return nil, fmt.Errorf("group %q: %w", p.Name, ErrConflict)
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	group, err := insertGroup(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing group: %w", err)
	}

	return group, nil
}

// EnsureGroup returns the system-owned group called name, creating it when
// missing. The boolean reports whether it was created.
func (s *Store) EnsureGroup(ctx context.Context, name, description string, now time.Time) (*model.RepoGroup, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	group, err := getSystemGroup(ctx, tx, name)
	if err == nil {
		return group, false, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	group, err = insertGroup(ctx, tx, CreateGroupParams{Name: name, Description: description, Now: now})
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing group: %w", err)
	}

	return group, true, nil
}

// GetGroup returns the group with the given id.
func (s *Store) GetGroup(ctx context.Context, id int64) (*model.RepoGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM repo_groups WHERE id = ?`, id)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting group %d: %w", id, err)
	}

	return group, nil
}

// GetGroupByName returns the system-owned group called name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (*model.RepoGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getSystemGroup(ctx, s.db, name)
}

// UpdateGroup renames and re-describes a group. Renaming a user-owned group
// moves the owner's name mapping with it.
func (s *Store) UpdateGroup(ctx context.Context, id int64, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	group, err := scanGroup(tx.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM repo_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %d: %w", id, ErrNotFound)
	}

	if err != nil {
		return fmt.Errorf("getting group %d: %w", id, err)
	}

	if group.Name != name {
		if group.OwnerID == nil {
			other, err := getSystemGroup(ctx, tx, name)
			if err == nil && other.ID != id {
				return fmt.Errorf("group %q: %w", name, ErrConflict)
			}

			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		} else if err := renameUserGroup(ctx, tx, *group.OwnerID, id, group.Name, name); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE repo_groups SET name = ?, description = ? WHERE id = ?`,
		name, description, id,
	); err != nil {
		return fmt.Errorf("updating group %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group: %w", err)
	}

	return nil
}

// renameUserGroup points the actor's mapping for group id at the new name.
func renameUserGroup(ctx context.Context, tx *sql.Tx, actorID, id int64, oldName, newName string) error {
	var existing int64

	err := tx.QueryRowContext(ctx,
		`SELECT group_id FROM user_groups WHERE actor_id = ? AND name = ?`, actorID, newName,
	).Scan(&existing)
	if err == nil && existing != id {
		return fmt.Errorf("user group %d/%s: %w", actorID, newName, ErrConflict)
	}

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking user group: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_groups SET name = ? WHERE actor_id = ? AND name = ? AND group_id = ?`,
		newName, actorID, oldName, id,
	); err != nil {
		return fmt.Errorf("renaming user group %d/%s: %w", actorID, oldName, err)
	}

	return nil
}

// ListGroups returns every group ordered by id.
func (s *Store) ListGroups(ctx context.Context) ([]model.RepoGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+groupColumns+` FROM repo_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var groups []model.RepoGroup

	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}

		groups = append(groups, *group)
	}

	return groups, rows.Err()
}

// ============================================================================
// User Group Operations
// ============================================================================

// CreateUserGroup creates a group owned by actorID and records it under name
// for that actor, in one transaction.
func (s *Store) CreateUserGroup(ctx context.Context, actorID int64, name, description string, now time.Time) (*model.UserGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int64

	err = tx.QueryRowContext(ctx,
		`SELECT group_id FROM user_groups WHERE actor_id = ? AND name = ?`, actorID, name,
	).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("user group %d/%s: %w", actorID, name, ErrConflict)
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking user group: %w", err)
	}

	owner := actorID

	group, err := insertGroup(ctx, tx, CreateGroupParams{
		Name:        name,
		OwnerID:     &owner,
		Description: description,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_groups (actor_id, name, group_id) VALUES (?, ?, ?)`,
		actorID, name, group.ID,
	); err != nil {
		return nil, fmt.Errorf("inserting user group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user group: %w", err)
	}

	return &model.UserGroup{ActorID: actorID, Name: name, GroupID: group.ID}, nil
}

// GetUserGroupID resolves an actor's group name to a group id.
func (s *Store) GetUserGroupID(ctx context.Context, actorID int64, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64

	err := s.db.QueryRowContext(ctx,
		`SELECT group_id FROM user_groups WHERE actor_id = ? AND name = ?`, actorID, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user group %d/%s: %w", actorID, name, ErrNotFound)
	}

	if err != nil {
		return 0, fmt.Errorf("getting user group %d/%s: %w", actorID, name, err)
	}

	return id, nil
}

// ListUserGroups returns the groups named by actorID, ordered by name.
func (s *Store) ListUserGroups(ctx context.Context, actorID int64) ([]model.UserGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT actor_id, name, group_id FROM user_groups WHERE actor_id = ? ORDER BY name`, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user groups: %w", err)
	}
	defer rows.Close()

	var groups []model.UserGroup

	for rows.Next() {
		var g model.UserGroup
		if err := rows.Scan(&g.ActorID, &g.Name, &g.GroupID); err != nil {
			return nil, fmt.Errorf("scanning user group: %w", err)
		}

		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSystemGroup(ctx context.Context, q querier, name string) (*model.RepoGroup, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM repo_groups WHERE name = ? AND owner_id IS NULL`, name,
	)

	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %q: %w", name, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("getting group %q: %w", name, err)
	}

	return group, nil
}

func insertGroup(ctx context.Context, tx *sql.Tx, p CreateGroupParams) (*model.RepoGroup, error) {
	now := stamp(p.Now)

	var ownerID sql.NullInt64
	if p.OwnerID != nil {
		ownerID = sql.NullInt64{Int64: *p.OwnerID, Valid: true}
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO repo_groups (name, owner_id, description, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING `+groupColumns,
		p.Name, ownerID, p.Description, now,
	)

	group, err := scanGroup(row)
	if err != nil {
		return nil, fmt.Errorf("inserting group %q: %w", p.Name, err)
	}

	return group, nil
}
