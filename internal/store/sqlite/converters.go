package sqlite

import (
	"database/sql"
	"time"

	"github.com/inovacc/repoload/internal/model"
)

// Timestamps are stored as RFC3339Nano text in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}

	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}

	return &t
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}

	return &n.Int64
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const repoColumns = `id, url, owner, name, group_id, status, source, added_at, updated_at, archived_at, submissions`

func scanRepo(sc scanner) (*model.Repository, error) {
	var (
		repo       model.Repository
		status     string
		addedAt    string
		updatedAt  string
		archivedAt sql.NullString
	)

	if err := sc.Scan(
		&repo.ID, &repo.URL, &repo.Owner, &repo.Name, &repo.GroupID,
		&status, &repo.Source, &addedAt, &updatedAt, &archivedAt, &repo.Submissions,
	); err != nil {
		return nil, err
	}

	repo.Status = model.RepoStatus(status)
	repo.AddedAt, _ = parseTime(addedAt)
	repo.UpdatedAt, _ = parseTime(updatedAt)
	repo.ArchivedAt = timePtr(archivedAt)

	return &repo, nil
}

const groupColumns = `id, name, owner_id, description, created_at`

func scanGroup(sc scanner) (*model.RepoGroup, error) {
	var (
		group     model.RepoGroup
		ownerID   sql.NullInt64
		createdAt string
	)

	if err := sc.Scan(&group.ID, &group.Name, &ownerID, &group.Description, &createdAt); err != nil {
		return nil, err
	}

	group.OwnerID = int64Ptr(ownerID)
	group.CreatedAt, _ = parseTime(createdAt)

	return &group, nil
}
