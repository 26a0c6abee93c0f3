// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/store"
)

// Factory opens an empty store. The store is closed by the suite.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against the backend built by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"ReservedGroupsSeeded", testReservedGroupsSeeded},
		{"UpsertInsertThenUpdate", testUpsertInsertThenUpdate},
		{"UpsertPreservesStatus", testUpsertPreservesStatus},
		{"UpsertResetStatus", testUpsertResetStatus},
		{"UpsertArchivedAtSetOnce", testUpsertArchivedAtSetOnce},
		{"UpsertCaseInsensitiveURL", testUpsertCaseInsensitiveURL},
		{"ConcurrentUpsertSingleRow", testConcurrentUpsertSingleRow},
		{"MembershipIdempotent", testMembershipIdempotent},
		{"ConcurrentMembership", testConcurrentMembership},
		{"ListRepos", testListRepos},
		{"Groups", testGroups},
		{"EnsureGroup", testEnsureGroup},
		{"UserGroups", testUserGroups},
		{"UserGroupRename", testUserGroupRename},
		{"NotFound", testNotFound},
		{"UpsertProperty", testUpsertProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })

			tt.fn(t, s)
		})
	}
}

func upsert(t *testing.T, s store.Store, url string, groupID int64, source string) store.UpsertResult {
	t.Helper()

	owner, name := splitURL(url)

	res, err := s.UpsertRepo(context.Background(), store.UpsertRepoParams{
		URL:     url,
		Owner:   owner,
		Name:    name,
		GroupID: groupID,
		Source:  source,
	})
	require.NoError(t, err)

	return res
}

func splitURL(url string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(url, "https://github.com/"), "/")
	if len(parts) != 2 {
		return "", ""
	}

	return parts[0], parts[1]
}

func testReservedGroupsSeeded(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))

	for _, want := range model.ReservedGroups() {
		got, err := s.GetGroup(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.OwnerID == nil, got.OwnerID == nil)
	}

	id, err := s.GetUserGroupID(ctx, model.CLIActorID, model.CLIDefaultGroupName)
	require.NoError(t, err)
	assert.Equal(t, model.CLIDefaultGroupID, id)
}

func testUpsertInsertThenUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	url := "https://github.com/chaoss/augur"

	first := upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)
	require.True(t, first.Created)
	require.NotZero(t, first.ID)

	repo, err := s.GetRepo(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, url, repo.URL)
	assert.Equal(t, "chaoss", repo.Owner)
	assert.Equal(t, "augur", repo.Name)
	assert.Equal(t, model.StatusNew, repo.Status)
	assert.Equal(t, model.SourceFrontend, repo.Source)
	assert.Equal(t, 1, repo.Submissions)
	assert.Nil(t, repo.ArchivedAt)

	second := upsert(t, s, url, model.CLIDefaultGroupID, model.SourceCLI)
	require.False(t, second.Created)
	require.Equal(t, first.ID, second.ID)

	repo, err = s.GetRepoByURL(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, first.ID, repo.ID)
	assert.Equal(t, model.CLIDefaultGroupID, repo.GroupID)
	assert.Equal(t, model.SourceCLI, repo.Source)
	assert.Equal(t, 2, repo.Submissions)
	assert.False(t, repo.UpdatedAt.Before(repo.AddedAt))
}

func testUpsertPreservesStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	url := "https://github.com/chaoss/grimoirelab"

	res := upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)
	require.NoError(t, s.SetRepoStatus(ctx, res.ID, model.StatusComplete))

	upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)

	repo, err := s.GetRepo(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, repo.Status)
}

func testUpsertResetStatus(t *testing.T, s store.Store) {
	ctx := context.Background()
	url := "https://github.com/chaoss/website"

	res := upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)
	require.NoError(t, s.SetRepoStatus(ctx, res.ID, model.StatusError))

	_, err := s.UpsertRepo(ctx, store.UpsertRepoParams{
		URL:         url,
		Owner:       "chaoss",
		Name:        "website",
		GroupID:     model.CLIDefaultGroupID,
		Source:      model.SourceCLI,
		ResetStatus: true,
	})
	require.NoError(t, err)

	repo, err := s.GetRepo(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, repo.Status)

	require.Error(t, s.SetRepoStatus(ctx, res.ID, model.RepoStatus("Archived")))
}

func testUpsertArchivedAtSetOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	url := "https://github.com/chaoss/old-thing"

	res := upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(48 * time.Hour)

	for _, at := range []time.Time{first, later} {
		_, err := s.UpsertRepo(ctx, store.UpsertRepoParams{
			URL:        url,
			Owner:      "chaoss",
			Name:       "old-thing",
			GroupID:    model.FrontendDefaultGroupID,
			Source:     model.SourceFrontend,
			ArchivedAt: &at,
		})
		require.NoError(t, err)
	}

	upsert(t, s, url, model.FrontendDefaultGroupID, model.SourceFrontend)

	repo, err := s.GetRepo(ctx, res.ID)
	require.NoError(t, err)
	require.NotNil(t, repo.ArchivedAt)
	assert.True(t, first.Equal(*repo.ArchivedAt), "archived_at = %v, want %v", repo.ArchivedAt, first)
}

func testUpsertCaseInsensitiveURL(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := upsert(t, s, "https://github.com/CDCgov/prime", model.FrontendDefaultGroupID, model.SourceFrontend)
	b := upsert(t, s, "https://github.com/cdcgov/PRIME", model.FrontendDefaultGroupID, model.SourceFrontend)

	require.Equal(t, a.ID, b.ID)
	require.False(t, b.Created)

	repos, err := s.ListRepos(ctx, 0)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "https://github.com/CDCgov/prime", repos[0].URL)
}

func testConcurrentUpsertSingleRow(t *testing.T, s store.Store) {
	ctx := context.Background()
	url := "https://github.com/chaoss/augur"

	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = make(map[int64]struct{})
		created int
		errs    []error
	)

	for i := range workers {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			groupID := model.FrontendDefaultGroupID
			if i%2 == 0 {
				groupID = model.CLIDefaultGroupID
			}

			res, err := s.UpsertRepo(ctx, store.UpsertRepoParams{
				URL:     url,
				Owner:   "chaoss",
				Name:    "augur",
				GroupID: groupID,
				Source:  model.SourceCLI,
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, err)
				return
			}

			ids[res.ID] = struct{}{}

			if res.Created {
				created++
			}
		}(i)
	}

	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, ids, 1)
	require.Equal(t, 1, created)

	repos, err := s.ListRepos(ctx, 0)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, workers, repos[0].Submissions)
}

func testMembershipIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()

	res := upsert(t, s, "https://github.com/chaoss/augur", model.FrontendDefaultGroupID, model.SourceFrontend)

	added, err := s.AddMembership(ctx, res.ID, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.AddMembership(ctx, res.ID, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.False(t, added)

	added, err = s.AddMembership(ctx, res.ID, model.FrontendDefaultGroupID)
	require.NoError(t, err)
	require.True(t, added)

	members, err := s.ListMemberships(ctx, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, res.ID, members[0].RepoID)

	all, err := s.ListMemberships(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.FrontendDefaultGroupID, all[0].GroupID)
	assert.Equal(t, model.CLIDefaultGroupID, all[1].GroupID)
}

func testConcurrentMembership(t *testing.T, s store.Store) {
	ctx := context.Background()

	res := upsert(t, s, "https://github.com/chaoss/augur", model.FrontendDefaultGroupID, model.SourceFrontend)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)

	for range 12 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := s.AddMembership(ctx, res.ID, model.CLIDefaultGroupID)
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	require.Equal(t, 1, added)

	members, err := s.ListMemberships(ctx, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func testListRepos(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := upsert(t, s, "https://github.com/chaoss/augur", model.FrontendDefaultGroupID, model.SourceFrontend)
	b := upsert(t, s, "https://github.com/chaoss/grimoirelab", model.CLIDefaultGroupID, model.SourceCLI)

	all, err := s.ListRepos(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	owned, err := s.ListRepos(ctx, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, b.ID, owned[0].ID)

	_, err = s.AddMembership(ctx, a.ID, model.CLIDefaultGroupID)
	require.NoError(t, err)

	members, err := s.ListReposByGroup(ctx, model.CLIDefaultGroupID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, a.ID, members[0].ID)

	empty, err := s.ListReposByGroup(ctx, model.FrontendDefaultGroupID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testGroups(t *testing.T, s store.Store) {
	ctx := context.Background()

	group, err := s.CreateGroup(ctx, store.CreateGroupParams{Name: "chaoss", Description: "GitHub organization"})
	require.NoError(t, err)
	assert.Greater(t, group.ID, model.CLIDefaultGroupID)
	assert.Nil(t, group.OwnerID)

	_, err = s.CreateGroup(ctx, store.CreateGroupParams{Name: "chaoss"})
	require.ErrorIs(t, err, store.ErrConflict)

	owner := int64(7)
	owned, err := s.CreateGroup(ctx, store.CreateGroupParams{Name: "chaoss", OwnerID: &owner})
	require.NoError(t, err, "user-owned groups may reuse a system name")
	require.NotNil(t, owned.OwnerID)
	assert.Equal(t, owner, *owned.OwnerID)

	byName, err := s.GetGroupByName(ctx, "chaoss")
	require.NoError(t, err)
	assert.Equal(t, group.ID, byName.ID)

	require.NoError(t, s.UpdateGroup(ctx, group.ID, "chaoss-project", "renamed"))

	got, err := s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "chaoss-project", got.Name)
	assert.Equal(t, "renamed", got.Description)

	_, err = s.GetGroupByName(ctx, "chaoss")
	require.ErrorIs(t, err, store.ErrNotFound)

	other, err := s.CreateGroup(ctx, store.CreateGroupParams{Name: "grimoirelab"})
	require.NoError(t, err)

	err = s.UpdateGroup(ctx, group.ID, "grimoirelab", "taken")
	require.ErrorIs(t, err, store.ErrConflict)

	got, err = s.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "chaoss-project", got.Name, "a refused rename changes nothing")

	byName, err = s.GetGroupByName(ctx, "grimoirelab")
	require.NoError(t, err)
	assert.Equal(t, other.ID, byName.ID)

	require.NoError(t, s.UpdateGroup(ctx, group.ID, "chaoss-project", "same name"))

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 5)
	assert.Equal(t, model.FrontendDefaultGroupID, groups[0].ID)
	assert.Equal(t, model.CLIDefaultGroupID, groups[1].ID)
}

func testEnsureGroup(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, created, err := s.EnsureGroup(ctx, "CDCgov", "GitHub organization")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.EnsureGroup(ctx, "CDCgov", "ignored")
	require.NoError(t, err)
	require.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "GitHub organization", second.Description)

	reserved, created, err := s.EnsureGroup(ctx, "Default Repo Group", "")
	require.NoError(t, err)
	require.False(t, created)
	assert.Equal(t, model.FrontendDefaultGroupID, reserved.ID)
}

func testUserGroupRename(t *testing.T, s store.Store) {
	ctx := context.Background()

	team, err := s.CreateUserGroup(ctx, 5, "team", "")
	require.NoError(t, err)

	_, err = s.CreateUserGroup(ctx, 5, "ops", "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateGroup(ctx, team.GroupID, "crew", "renamed"))

	id, err := s.GetUserGroupID(ctx, 5, "crew")
	require.NoError(t, err)
	assert.Equal(t, team.GroupID, id)

	_, err = s.GetUserGroupID(ctx, 5, "team")
	require.ErrorIs(t, err, store.ErrNotFound)

	groups, err := s.ListUserGroups(ctx, 5)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "crew", groups[0].Name)
	assert.Equal(t, team.GroupID, groups[0].GroupID)
	assert.Equal(t, "ops", groups[1].Name)

	err = s.UpdateGroup(ctx, team.GroupID, "ops", "")
	require.ErrorIs(t, err, store.ErrConflict)

	id, err = s.GetUserGroupID(ctx, 5, "crew")
	require.NoError(t, err, "a refused rename keeps the mapping")
	assert.Equal(t, team.GroupID, id)

	// another actor's names do not collide
	_, err = s.CreateUserGroup(ctx, 6, "crew", "")
	require.NoError(t, err)
}

func testUserGroups(t *testing.T, s store.Store) {
	ctx := context.Background()

	ug, err := s.CreateUserGroup(ctx, 42, "research", "my repos")
	require.NoError(t, err)
	assert.Equal(t, int64(42), ug.ActorID)

	_, err = s.CreateUserGroup(ctx, 42, "research", "again")
	require.ErrorIs(t, err, store.ErrConflict)

	other, err := s.CreateUserGroup(ctx, 43, "research", "")
	require.NoError(t, err)
	assert.NotEqual(t, ug.GroupID, other.GroupID)

	_, err = s.CreateUserGroup(ctx, 42, "archive", "")
	require.NoError(t, err)

	id, err := s.GetUserGroupID(ctx, 42, "research")
	require.NoError(t, err)
	assert.Equal(t, ug.GroupID, id)

	group, err := s.GetGroup(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, group.OwnerID)
	assert.Equal(t, int64(42), *group.OwnerID)

	list, err := s.ListUserGroups(ctx, 42)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "archive", list[0].Name)
	assert.Equal(t, "research", list[1].Name)

	_, err = s.GetUserGroupID(ctx, 42, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetRepo(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetRepoByURL(ctx, "https://github.com/nobody/nothing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetGroup(ctx, 999)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.UpdateGroup(ctx, 999, "x", ""), store.ErrNotFound)
	require.ErrorIs(t, s.SetRepoStatus(ctx, 999, model.StatusComplete), store.ErrNotFound)
}

// testUpsertProperty checks that any interleaving of submissions leaves one
// row per distinct URL, each carrying the id of its first insert.
func testUpsertProperty(t *testing.T, s store.Store) {
	ctx := context.Background()
	round := 0

	rapid.Check(t, func(rt *rapid.T) {
		round++
		prefix := fmt.Sprintf("r%d-", round)

		names := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c", "d"}), 1, 20).Draw(rt, "names")

		first := make(map[string]int64)

		for _, name := range names {
			url := "https://github.com/prop/" + prefix + name

			res, err := s.UpsertRepo(ctx, store.UpsertRepoParams{
				URL:     url,
				Owner:   "prop",
				Name:    prefix + name,
				GroupID: model.FrontendDefaultGroupID,
				Source:  model.SourceFrontend,
			})
			if err != nil {
				rt.Fatalf("UpsertRepo(%s) error = %v", url, err)
			}

			id, seen := first[url]
			if seen && id != res.ID {
				rt.Fatalf("UpsertRepo(%s) id = %d, want %d", url, res.ID, id)
			}

			if seen == res.Created {
				rt.Fatalf("UpsertRepo(%s) created = %v on seen = %v", url, res.Created, seen)
			}

			first[url] = res.ID
		}

		for url, id := range first {
			repo, err := s.GetRepoByURL(ctx, url)
			if err != nil || repo.ID != id {
				rt.Fatalf("GetRepoByURL(%s) = %v, %v; want id %d", url, repo, err, id)
			}
		}
	})
}
