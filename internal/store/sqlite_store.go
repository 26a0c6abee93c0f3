package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/store/sqlite"
)

// SQLiteWrapper wraps the sqlite.Store to implement the Store interface.
type SQLiteWrapper struct {
	store *sqlite.Store
}

// NewSQLite opens (and migrates) the SQLite catalog at path.
func NewSQLite(path string) (*SQLiteWrapper, error) {
	s, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteWrapper{store: s}, nil
}

// mapErr translates the backend sentinels into the package ones.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sqlite.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, sqlite.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}

func (w *SQLiteWrapper) Ping(ctx context.Context) error {
	return w.store.Ping(ctx)
}

func (w *SQLiteWrapper) Close() error {
	return w.store.Close()
}

func (w *SQLiteWrapper) UpsertRepo(ctx context.Context, p UpsertRepoParams) (UpsertResult, error) {
	res, err := w.store.UpsertRepo(ctx, sqlite.UpsertRepoParams{
		URL:         p.URL,
		Owner:       p.Owner,
		Name:        p.Name,
		GroupID:     p.GroupID,
		Source:      p.Source,
		ResetStatus: p.ResetStatus,
		ArchivedAt:  p.ArchivedAt,
		Now:         p.Now,
	})
	if err != nil {
		return UpsertResult{}, mapErr(err)
	}

	return UpsertResult{ID: res.ID, Created: res.Created}, nil
}

func (w *SQLiteWrapper) GetRepo(ctx context.Context, id int64) (*model.Repository, error) {
	repo, err := w.store.GetRepo(ctx, id)
	return repo, mapErr(err)
}

func (w *SQLiteWrapper) GetRepoByURL(ctx context.Context, url string) (*model.Repository, error) {
	repo, err := w.store.GetRepoByURL(ctx, url)
	return repo, mapErr(err)
}

func (w *SQLiteWrapper) ListRepos(ctx context.Context, groupID int64) ([]model.Repository, error) {
	return w.store.ListRepos(ctx, groupID)
}

func (w *SQLiteWrapper) ListReposByGroup(ctx context.Context, groupID int64) ([]model.Repository, error) {
	return w.store.ListReposByGroup(ctx, groupID)
}

func (w *SQLiteWrapper) SetRepoStatus(ctx context.Context, id int64, status model.RepoStatus) error {
	return mapErr(w.store.SetRepoStatus(ctx, id, status))
}

func (w *SQLiteWrapper) AddMembership(ctx context.Context, repoID, groupID int64) (bool, error) {
	return w.store.AddMembership(ctx, repoID, groupID, time.Now())
}

func (w *SQLiteWrapper) ListMemberships(ctx context.Context, groupID int64) ([]model.Membership, error) {
	return w.store.ListMemberships(ctx, groupID)
}

func (w *SQLiteWrapper) CreateGroup(ctx context.Context, p CreateGroupParams) (*model.RepoGroup, error) {
	group, err := w.store.CreateGroup(ctx, sqlite.CreateGroupParams{
		Name:        p.Name,
		OwnerID:     p.OwnerID,
		Description: p.Description,
		Now:         time.Now(),
	})

	return group, mapErr(err)
}

func (w *SQLiteWrapper) EnsureGroup(ctx context.Context, name, description string) (*model.RepoGroup, bool, error) {
	group, created, err := w.store.EnsureGroup(ctx, name, description, time.Now())
	return group, created, mapErr(err)
}

func (w *SQLiteWrapper) GetGroup(ctx context.Context, id int64) (*model.RepoGroup, error) {
	group, err := w.store.GetGroup(ctx, id)
	return group, mapErr(err)
}

func (w *SQLiteWrapper) GetGroupByName(ctx context.Context, name string) (*model.RepoGroup, error) {
	group, err := w.store.GetGroupByName(ctx, name)
	return group, mapErr(err)
}

func (w *SQLiteWrapper) UpdateGroup(ctx context.Context, id int64, name, description string) error {
	return mapErr(w.store.UpdateGroup(ctx, id, name, description))
}

func (w *SQLiteWrapper) ListGroups(ctx context.Context) ([]model.RepoGroup, error) {
	return w.store.ListGroups(ctx)
}

func (w *SQLiteWrapper) CreateUserGroup(ctx context.Context, actorID int64, name, description string) (*model.UserGroup, error) {
	group, err := w.store.CreateUserGroup(ctx, actorID, name, description, time.Now())
	return group, mapErr(err)
}

func (w *SQLiteWrapper) GetUserGroupID(ctx context.Context, actorID int64, name string) (int64, error) {
	id, err := w.store.GetUserGroupID(ctx, actorID, name)
	return id, mapErr(err)
}

func (w *SQLiteWrapper) ListUserGroups(ctx context.Context, actorID int64) ([]model.UserGroup, error) {
	return w.store.ListUserGroups(ctx, actorID)
}
