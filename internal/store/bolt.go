package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/inovacc/repoload/internal/model"
	"go.etcd.io/bbolt"
)

const (
	boltBucketRepos       = "repos"       // key: id -> Repository JSON
	boltBucketRepoURLs    = "repo_urls"   // key: lower(url) -> id
	boltBucketGroups      = "groups"      // key: id -> RepoGroup JSON
	boltBucketGroupNames  = "group_names" // key: system group name -> id
	boltBucketMemberships = "memberships" // key: group id + repo id -> Membership JSON
	boltBucketUserGroups  = "user_groups" // key: "actor:name" -> UserGroup JSON
)

var boltBuckets = []string{
	boltBucketRepos,
	boltBucketRepoURLs,
	boltBucketGroups,
	boltBucketGroupNames,
	boltBucketMemberships,
	boltBucketUserGroups,
}

// Bolt is the bbolt implementation of Store. bbolt runs one writer at a
// time, so every check-then-put happens inside a single Update.
type Bolt struct {
	storage *bbolt.DB
}

// NewBolt opens the bbolt catalog at path, creating buckets and the reserved
// groups on first use.
func NewBolt(path string) (*Bolt, error) {
	instance, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := instance.Update(bootstrapBolt); err != nil {
		_ = instance.Close()

		return nil, err
	}

	return &Bolt{storage: instance}, nil
}

func bootstrapBolt(tx *bbolt.Tx) error {
	for _, name := range boltBuckets {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}

	groups := tx.Bucket([]byte(boltBucketGroups))
	names := tx.Bucket([]byte(boltBucketGroupNames))
	userGroups := tx.Bucket([]byte(boltBucketUserGroups))

	for _, g := range model.ReservedGroups() {
		if groups.Get(itob(g.ID)) != nil {
			continue
		}

		g.CreatedAt = time.Now().UTC()
		if err := putJSON(groups, itob(g.ID), g); err != nil {
			return err
		}

		if g.OwnerID == nil {
			if err := names.Put([]byte(g.Name), itob(g.ID)); err != nil {
				return err
			}
		}

		if seq := groups.Sequence(); seq < uint64(g.ID) {
			if err := groups.SetSequence(uint64(g.ID)); err != nil {
				return err
			}
		}
	}

	key := userGroupKey(model.CLIActorID, model.CLIDefaultGroupName)
	if userGroups.Get(key) == nil {
		ug := model.UserGroup{
			ActorID: model.CLIActorID,
			Name:    model.CLIDefaultGroupName,
			GroupID: model.CLIDefaultGroupID,
		}
		if err := putJSON(userGroups, key, ug); err != nil {
			return err
		}
	}

	return nil
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))

	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func membershipKey(groupID, repoID int64) []byte {
	return append(itob(groupID), itob(repoID)...)
}

func userGroupKey(actorID int64, name string) []byte {
	return []byte(strconv.FormatInt(actorID, 10) + ":" + name)
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.Put(key, data)
}

func (b *Bolt) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.storage.View(func(tx *bbolt.Tx) error {
		return nil
	})
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.storage.Close()
}

func (b *Bolt) UpsertRepo(ctx context.Context, p UpsertRepoParams) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}

	now = now.UTC()

	var res UpsertResult

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		var (
			repos  = tx.Bucket([]byte(boltBucketRepos))
			urls   = tx.Bucket([]byte(boltBucketRepoURLs))
			groups = tx.Bucket([]byte(boltBucketGroups))
			urlKey = []byte(strings.ToLower(p.URL))
		)

		if groups.Get(itob(p.GroupID)) == nil {
			return fmt.Errorf("repo %s: group %d: %w", p.URL, p.GroupID, ErrNotFound)
		}

		if idBytes := urls.Get(urlKey); idBytes != nil {
			var repo model.Repository
			if err := json.Unmarshal(repos.Get(idBytes), &repo); err != nil {
				return err
			}

			repo.GroupID = p.GroupID
			repo.Source = p.Source
			repo.UpdatedAt = now
			repo.Submissions++

			if repo.ArchivedAt == nil && p.ArchivedAt != nil {
				archived := p.ArchivedAt.UTC()
				repo.ArchivedAt = &archived
			}

			if p.ResetStatus {
				repo.Status = model.StatusNew
			}

			res = UpsertResult{ID: repo.ID}

			return putJSON(repos, idBytes, repo)
		}

		seq, err := repos.NextSequence()
		if err != nil {
			return err
		}

		repo := model.Repository{
			ID:          int64(seq),
			URL:         p.URL,
			Owner:       p.Owner,
			Name:        p.Name,
			GroupID:     p.GroupID,
			Status:      model.StatusNew,
			Source:      p.Source,
			AddedAt:     now,
			UpdatedAt:   now,
			Submissions: 1,
		}

		if p.ArchivedAt != nil {
			archived := p.ArchivedAt.UTC()
			repo.ArchivedAt = &archived
		}

		if err := putJSON(repos, itob(repo.ID), repo); err != nil {
			return err
		}

		res = UpsertResult{ID: repo.ID, Created: true}

		return urls.Put(urlKey, itob(repo.ID))
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upserting repo %s: %w", p.URL, err)
	}

	return res, nil
}

func (b *Bolt) GetRepo(ctx context.Context, id int64) (*model.Repository, error) {
	var repo *model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketRepos)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("repo %d: %w", id, ErrNotFound)
		}

		repo = &model.Repository{}

		return json.Unmarshal(data, repo)
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (b *Bolt) GetRepoByURL(ctx context.Context, url string) (*model.Repository, error) {
	var repo *model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket([]byte(boltBucketRepoURLs)).Get([]byte(strings.ToLower(url)))
		if idBytes == nil {
			return fmt.Errorf("repo %s: %w", url, ErrNotFound)
		}

		repo = &model.Repository{}

		return json.Unmarshal(tx.Bucket([]byte(boltBucketRepos)).Get(idBytes), repo)
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (b *Bolt) ListRepos(ctx context.Context, groupID int64) ([]model.Repository, error) {
	var out []model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketRepos)).ForEach(func(_, v []byte) error {
			var repo model.Repository
			if err := json.Unmarshal(v, &repo); err != nil {
				return err
			}

			if groupID == 0 || repo.GroupID == groupID {
				out = append(out, repo)
			}

			return nil
		})
	})

	return out, err
}

func (b *Bolt) ListReposByGroup(ctx context.Context, groupID int64) ([]model.Repository, error) {
	var out []model.Repository

	err := b.storage.View(func(tx *bbolt.Tx) error {
		repos := tx.Bucket([]byte(boltBucketRepos))
		prefix := itob(groupID)
		c := tx.Bucket([]byte(boltBucketMemberships)).Cursor()

		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := repos.Get(k[8:])
			if data == nil {
				continue
			}

			var repo model.Repository
			if err := json.Unmarshal(data, &repo); err != nil {
				return err
			}

			out = append(out, repo)
		}

		return nil
	})

	return out, err
}

func (b *Bolt) SetRepoStatus(ctx context.Context, id int64, status model.RepoStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	return b.storage.Update(func(tx *bbolt.Tx) error {
		repos := tx.Bucket([]byte(boltBucketRepos))

		data := repos.Get(itob(id))
		if data == nil {
			return fmt.Errorf("repo %d: %w", id, ErrNotFound)
		}

		var repo model.Repository
		if err := json.Unmarshal(data, &repo); err != nil {
			return err
		}

		repo.Status = status
		repo.UpdatedAt = time.Now().UTC()

		return putJSON(repos, itob(id), repo)
	})
}

func (b *Bolt) AddMembership(ctx context.Context, repoID, groupID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var added bool

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(boltBucketRepos)).Get(itob(repoID)) == nil {
			return fmt.Errorf("repo %d: %w", repoID, ErrNotFound)
		}

		if tx.Bucket([]byte(boltBucketGroups)).Get(itob(groupID)) == nil {
			return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
		}

		memberships := tx.Bucket([]byte(boltBucketMemberships))
		key := membershipKey(groupID, repoID)

		if memberships.Get(key) != nil {
			return nil
		}

		added = true

		return putJSON(memberships, key, model.Membership{
			RepoID:  repoID,
			GroupID: groupID,
			AddedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return false, fmt.Errorf("adding repo %d to group %d: %w", repoID, groupID, err)
	}

	return added, nil
}

func (b *Bolt) ListMemberships(ctx context.Context, groupID int64) ([]model.Membership, error) {
	var out []model.Membership

	err := b.storage.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(boltBucketMemberships)).Cursor()

		var prefix []byte
		if groupID != 0 {
			prefix = itob(groupID)
		}

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var m model.Membership
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}

			out = append(out, m)
		}

		return nil
	})

	return out, err
}

func (b *Bolt) CreateGroup(ctx context.Context, p CreateGroupParams) (*model.RepoGroup, error) {
	var group *model.RepoGroup

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		if p.OwnerID == nil && tx.Bucket([]byte(boltBucketGroupNames)).Get([]byte(p.Name)) != nil {
			return fmt.Errorf("group %q: %w", p.Name, ErrConflict)
		}

		var err error
		group, err = insertBoltGroup(tx, p)

		return err
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

func (b *Bolt) EnsureGroup(ctx context.Context, name, description string) (*model.RepoGroup, bool, error) {
	var (
		group   *model.RepoGroup
		created bool
	)

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		if idBytes := tx.Bucket([]byte(boltBucketGroupNames)).Get([]byte(name)); idBytes != nil {
			group = &model.RepoGroup{}
			return json.Unmarshal(tx.Bucket([]byte(boltBucketGroups)).Get(idBytes), group)
		}

		var err error
		group, err = insertBoltGroup(tx, CreateGroupParams{Name: name, Description: description})
		created = err == nil

		return err
	})
	if err != nil {
		return nil, false, err
	}

	return group, created, nil
}

func insertBoltGroup(tx *bbolt.Tx, p CreateGroupParams) (*model.RepoGroup, error) {
	groups := tx.Bucket([]byte(boltBucketGroups))

	seq, err := groups.NextSequence()
	if err != nil {
		return nil, err
	}

	group := &model.RepoGroup{
		ID:          int64(seq),
		Name:        p.Name,
		OwnerID:     p.OwnerID,
		Description: p.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := putJSON(groups, itob(group.ID), group); err != nil {
		return nil, err
	}

	if p.OwnerID == nil {
		if err := tx.Bucket([]byte(boltBucketGroupNames)).Put([]byte(p.Name), itob(group.ID)); err != nil {
			return nil, err
		}
	}

	return group, nil
}

func (b *Bolt) GetGroup(ctx context.Context, id int64) (*model.RepoGroup, error) {
	var group *model.RepoGroup

	err := b.storage.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketGroups)).Get(itob(id))
		if data == nil {
			return fmt.Errorf("group %d: %w", id, ErrNotFound)
		}

		group = &model.RepoGroup{}

		return json.Unmarshal(data, group)
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

func (b *Bolt) GetGroupByName(ctx context.Context, name string) (*model.RepoGroup, error) {
	var group *model.RepoGroup

	err := b.storage.View(func(tx *bbolt.Tx) error {
		idBytes := tx.Bucket([]byte(boltBucketGroupNames)).Get([]byte(name))
		if idBytes == nil {
			return fmt.Errorf("group %q: %w", name, ErrNotFound)
		}

		group = &model.RepoGroup{}

		return json.Unmarshal(tx.Bucket([]byte(boltBucketGroups)).Get(idBytes), group)
	})
	if err != nil {
		return nil, err
	}

	return group, nil
}

func (b *Bolt) UpdateGroup(ctx context.Context, id int64, name, description string) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		var (
			groups = tx.Bucket([]byte(boltBucketGroups))
			names  = tx.Bucket([]byte(boltBucketGroupNames))
		)

		data := groups.Get(itob(id))
		if data == nil {
			return fmt.Errorf("group %d: %w", id, ErrNotFound)
		}

		var group model.RepoGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return err
		}

		if group.OwnerID == nil && group.Name != name {
			if other := names.Get([]byte(name)); other != nil && btoi(other) != id {
				return fmt.Errorf("group %q: %w", name, ErrConflict)
			}

			if err := names.Delete([]byte(group.Name)); err != nil {
				return err
			}

			if err := names.Put([]byte(name), itob(id)); err != nil {
				return err
			}
		}

		if group.OwnerID != nil && group.Name != name {
			if err := renameBoltUserGroup(tx, *group.OwnerID, id, group.Name, name); err != nil {
				return err
			}
		}

		group.Name = name
		group.Description = description

		return putJSON(groups, itob(id), group)
	})
}

// renameBoltUserGroup moves the actor's "actor:name" key for group id to the
// new name.
func renameBoltUserGroup(tx *bbolt.Tx, actorID, id int64, oldName, newName string) error {
	userGroups := tx.Bucket([]byte(boltBucketUserGroups))

	if data := userGroups.Get(userGroupKey(actorID, newName)); data != nil {
		var other model.UserGroup
		if err := json.Unmarshal(data, &other); err != nil {
			return err
		}

		if other.GroupID != id {
			return fmt.Errorf("user group %d/%s: %w", actorID, newName, ErrConflict)
		}
	}

	oldKey := userGroupKey(actorID, oldName)

	data := userGroups.Get(oldKey)
	if data == nil {
		return nil
	}

	var ug model.UserGroup
	if err := json.Unmarshal(data, &ug); err != nil {
		return err
	}

	if ug.GroupID != id {
		return nil
	}

	if err := userGroups.Delete(oldKey); err != nil {
		return err
	}

	ug.Name = newName

	return putJSON(userGroups, userGroupKey(actorID, newName), ug)
}

func (b *Bolt) ListGroups(ctx context.Context) ([]model.RepoGroup, error) {
	var out []model.RepoGroup

	err := b.storage.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketGroups)).ForEach(func(_, v []byte) error {
			var group model.RepoGroup
			if err := json.Unmarshal(v, &group); err != nil {
				return err
			}

			out = append(out, group)

			return nil
		})
	})

	return out, err
}

func (b *Bolt) CreateUserGroup(ctx context.Context, actorID int64, name, description string) (*model.UserGroup, error) {
	var ug *model.UserGroup

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		userGroups := tx.Bucket([]byte(boltBucketUserGroups))
		key := userGroupKey(actorID, name)

		if userGroups.Get(key) != nil {
			return fmt.Errorf("user group %d/%s: %w", actorID, name, ErrConflict)
		}

		owner := actorID

		group, err := insertBoltGroup(tx, CreateGroupParams{
			Name:        name,
			OwnerID:     &owner,
			Description: description,
		})
		if err != nil {
			return err
		}

		ug = &model.UserGroup{ActorID: actorID, Name: name, GroupID: group.ID}

		return putJSON(userGroups, key, ug)
	})
	if err != nil {
		return nil, err
	}

	return ug, nil
}

func (b *Bolt) GetUserGroupID(ctx context.Context, actorID int64, name string) (int64, error) {
	var id int64

	err := b.storage.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketUserGroups)).Get(userGroupKey(actorID, name))
		if data == nil {
			return fmt.Errorf("user group %d/%s: %w", actorID, name, ErrNotFound)
		}

		var ug model.UserGroup
		if err := json.Unmarshal(data, &ug); err != nil {
			return err
		}

		id = ug.GroupID

		return nil
	})

	return id, err
}

func (b *Bolt) ListUserGroups(ctx context.Context, actorID int64) ([]model.UserGroup, error) {
	var out []model.UserGroup

	err := b.storage.View(func(tx *bbolt.Tx) error {
		prefix := []byte(strconv.FormatInt(actorID, 10) + ":")
		c := tx.Bucket([]byte(boltBucketUserGroups)).Cursor()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ug model.UserGroup
			if err := json.Unmarshal(v, &ug); err != nil {
				return err
			}

			out = append(out, ug)
		}

		return nil
	})

	return out, err
}
