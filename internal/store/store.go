package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inovacc/repoload/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a create collides with an existing record.
	ErrConflict = errors.New("already exists")
)

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// UpsertRepoParams carries one repository registration. URL must already be
// normalized.
type UpsertRepoParams struct {
	URL     string
	Owner   string
	Name    string
	GroupID int64
	Source  string

	// ResetStatus forces status back to New on an existing row.
	ResetStatus bool

	// ArchivedAt is recorded only when the row has no archive timestamp yet.
	ArchivedAt *time.Time

	// Now defaults to time.Now when zero.
	Now time.Time
}

// UpsertResult reports the stable row id and whether the row was inserted.
type UpsertResult struct {
	ID      int64
	Created bool
}

// CreateGroupParams describes a new repo group. A nil OwnerID makes the group
// system owned, and system-owned names are unique.
type CreateGroupParams struct {
	Name        string
	OwnerID     *int64
	Description string
}

// Store defines the catalog operations used by the registration core and the
// transports.
//
//nolint:interfacebloat // all methods are required for catalog operations
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// Repository operations
	UpsertRepo(ctx context.Context, p UpsertRepoParams) (UpsertResult, error)
	GetRepo(ctx context.Context, id int64) (*model.Repository, error)
	GetRepoByURL(ctx context.Context, url string) (*model.Repository, error)
	ListRepos(ctx context.Context, groupID int64) ([]model.Repository, error)
	ListReposByGroup(ctx context.Context, groupID int64) ([]model.Repository, error)
	SetRepoStatus(ctx context.Context, id int64, status model.RepoStatus) error

	// Membership operations
	AddMembership(ctx context.Context, repoID, groupID int64) (bool, error)
	ListMemberships(ctx context.Context, groupID int64) ([]model.Membership, error)

	// Group operations
	CreateGroup(ctx context.Context, p CreateGroupParams) (*model.RepoGroup, error)
	EnsureGroup(ctx context.Context, name, description string) (*model.RepoGroup, bool, error)
	GetGroup(ctx context.Context, id int64) (*model.RepoGroup, error)
	GetGroupByName(ctx context.Context, name string) (*model.RepoGroup, error)
	UpdateGroup(ctx context.Context, id int64, name, description string) error
	ListGroups(ctx context.Context) ([]model.RepoGroup, error)

	// User group operations
	CreateUserGroup(ctx context.Context, actorID int64, name, description string) (*model.UserGroup, error)
	GetUserGroupID(ctx context.Context, actorID int64, name string) (int64, error)
	ListUserGroups(ctx context.Context, actorID int64) ([]model.UserGroup, error)
}

// Open returns the backend named by driver, stored at path. An empty driver
// selects SQLite.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLite(path)
	case DriverBolt:
		return NewBolt(path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
