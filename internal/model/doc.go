// Package model defines the catalog records shared by the storage backends,
// the registration core and the transports.
//
// # Repository
//
// The [Repository] struct is one catalog row, unique by normalized URL:
//
//	type Repository struct {
//	    ID         int64      // Assigned on first insert, stable afterwards
//	    URL        string     // https://github.com/<owner>/<repo>
//	    GroupID    int64      // Owning repo group
//	    Status     RepoStatus // Driven by the collection pipeline
//	    Source     string     // "Frontend" or "CLI"
//	    ArchivedAt *time.Time // First time the host reported it archived
//	}
//
// # Groups
//
// [RepoGroup] rows scope repositories; [UserGroup] maps a name an actor typed
// to a group id; [Membership] links a repository to a group at most once.
// [FrontendDefaultGroupID] and [CLIDefaultGroupID] always exist.
package model
