package model

import "time"

// Reserved identifiers. The groups are created by every storage backend at
// bootstrap and are never removed.
const (
	// FrontendDefaultGroupID owns repositories registered through the frontend.
	FrontendDefaultGroupID int64 = 1

	// CLIDefaultGroupID collects every repository registered from the CLI.
	CLIDefaultGroupID int64 = 10

	// CLIActorID is the non-interactive actor used for batch registrations.
	CLIActorID int64 = 1

	// CLIDefaultGroupName is the CLI actor's name for CLIDefaultGroupID.
	CLIDefaultGroupName = "default"
)

// IsReservedGroup reports whether id is one of the system groups.
func IsReservedGroup(id int64) bool {
	return id == FrontendDefaultGroupID || id == CLIDefaultGroupID
}

// ReservedGroups returns the rows every backend seeds at bootstrap.
func ReservedGroups() []RepoGroup {
	cliActor := CLIActorID

	return []RepoGroup{
		{
			ID:          FrontendDefaultGroupID,
			Name:        "Default Repo Group",
			Description: "Repositories registered through the frontend",
		},
		{
			ID:          CLIDefaultGroupID,
			Name:        "CLI Repo Group",
			OwnerID:     &cliActor,
			Description: "Repositories registered from the command line",
		},
	}
}

// RepoGroup is a collection of repositories.
type RepoGroup struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	OwnerID     *int64    `json:"owner_id,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserGroup maps a name chosen by an actor to a RepoGroup id.
type UserGroup struct {
	ActorID int64  `json:"actor_id"`
	Name    string `json:"name"`
	GroupID int64  `json:"group_id"`
}

// Membership links a repository to a group.
type Membership struct {
	RepoID  int64     `json:"repo_id"`
	GroupID int64     `json:"group_id"`
	AddedAt time.Time `json:"added_at"`
}
