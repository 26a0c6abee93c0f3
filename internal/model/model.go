package model

import "time"

// RepoStatus is the lifecycle state of a catalog repository.
type RepoStatus string

const (
	StatusNew        RepoStatus = "New"
	StatusUpdating   RepoStatus = "Updating"
	StatusCollecting RepoStatus = "Collecting"
	StatusComplete   RepoStatus = "Complete"
	StatusError      RepoStatus = "Error"
)

// Valid reports whether s is one of the known statuses.
func (s RepoStatus) Valid() bool {
	switch s {
	case StatusNew, StatusUpdating, StatusCollecting, StatusComplete, StatusError:
		return true
	}

	return false
}

// Source tags recorded on catalog rows.
const (
	SourceFrontend = "Frontend"
	SourceCLI      = "CLI"
)

// Repository is a registered repository.
type Repository struct {
	// ID is the primary key
	ID int64 `json:"id"`

	// URL is the normalized repository URL, unique across the catalog
	URL string `json:"url"`

	// Owner and Name are the path segments of URL
	Owner string `json:"owner"`
	Name  string `json:"name"`

	// GroupID is the owning repo group
	GroupID int64 `json:"group_id"`

	// Status is owned by the collection pipeline; registration writes New only
	Status RepoStatus `json:"status"`

	// Source records which submission path last touched the row
	Source string `json:"source"`

	// AddedAt is when the row was first inserted
	AddedAt time.Time `json:"added_at"`

	// UpdatedAt is the last registration touching the row
	UpdatedAt time.Time `json:"updated_at"`

	// ArchivedAt is set the first time the host reports the repository archived
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// Submissions counts registrations of this URL, 1 after the first insert
	Submissions int `json:"submissions"`
}
