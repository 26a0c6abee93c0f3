package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/inovacc/repoload/internal/giturl"
	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/store"
)

const (
	groupCacheExpiration      = 10 * time.Minute
	groupCacheCleanupInterval = 30 * time.Minute

	orgGroupDescription = "GitHub organization"
)

// Options configures a Controller.
type Options struct {
	Logger *slog.Logger

	// Host is the accepted code-hosting domain, github.com when empty.
	Host string

	// VerifyRepos makes AddFrontendRepo confirm the repository exists on the
	// hosting site before registering it.
	VerifyRepos bool

	// Now overrides the clock, time.Now when nil.
	Now func() time.Time
}

// Controller registers repositories and organizations in the catalog.
type Controller struct {
	store     store.Store
	resolver  *resolver.Resolver
	validator giturl.Validator
	logger    *slog.Logger
	verify    bool
	now       func() time.Time
	groups    *gocache.Cache
}

// New creates a Controller over the given catalog and org resolver.
func New(s store.Store, r *resolver.Resolver, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Controller{
		store:     s,
		resolver:  r,
		validator: giturl.NewValidator(opts.Host),
		logger:    logger,
		verify:    opts.VerifyRepos,
		now:       now,
		groups:    gocache.New(groupCacheExpiration, groupCacheCleanupInterval),
	}
}

// UpsertOptions describes one repository row write.
type UpsertOptions struct {
	URL         string
	GroupID     int64
	Source      string
	ResetStatus bool
	ArchivedAt  *time.Time
}

// CLIRepo is one repository submitted from the command line.
type CLIRepo struct {
	URL         string
	RepoGroupID int64
	ResetStatus bool
}

// OrgSummary reports a command-line organization registration.
type OrgSummary struct {
	BatchID  string        `json:"batch_id"`
	Org      string        `json:"org"`
	GroupID  int64         `json:"group_id"`
	Added    int           `json:"added"`
	Created  int           `json:"created"`
	Duration time.Duration `json:"duration"`
}

// IsValidRepo reports whether url is a well-formed repository URL.
func (c *Controller) IsValidRepo(url string) bool {
	return c.validator.IsValidRepo(url)
}

// AddRepoRow registers url in groupID and returns its stable id.
func (c *Controller) AddRepoRow(ctx context.Context, url string, groupID int64, source string) (int64, error) {
	res, err := c.AddRepoRowWithOptions(ctx, UpsertOptions{URL: url, GroupID: groupID, Source: source})
	if err != nil {
		return 0, err
	}

	return res.ID, nil
}

// AddRepoRowWithOptions normalizes the URL and upserts the catalog row.
// Re-submitting a URL updates the group and source and keeps the id and the
// status, unless ResetStatus is set.
func (c *Controller) AddRepoRowWithOptions(ctx context.Context, o UpsertOptions) (store.UpsertResult, error) {
	target, err := c.validator.Validate(o.URL)
	if err != nil {
		return store.UpsertResult{}, &InputError{Input: o.URL, Err: fmt.Errorf("%w: %w", ErrInvalidRepo, err)}
	}

	if target.IsOrg() {
		return store.UpsertResult{}, &InputError{Input: o.URL, Err: ErrInvalidRepo}
	}

	url := c.validator.RepoURL(target.Owner, target.Repo)

	res, err := c.store.UpsertRepo(ctx, store.UpsertRepoParams{
		URL:         url,
		Owner:       target.Owner,
		Name:        target.Repo,
		GroupID:     o.GroupID,
		Source:      o.Source,
		ResetStatus: o.ResetStatus,
		ArchivedAt:  o.ArchivedAt,
		Now:         c.now(),
	})
	if err != nil {
		return store.UpsertResult{}, fmt.Errorf("registering %s: %w", url, err)
	}

	c.logger.Debug("repo upserted",
		slog.String("url", url),
		slog.Int64("repo_id", res.ID),
		slog.Int64("group_id", o.GroupID),
		slog.Bool("created", res.Created),
	)

	return res, nil
}

// AddRepoToUserGroup links repoID to groupID. Repeating it is a no-op.
func (c *Controller) AddRepoToUserGroup(ctx context.Context, repoID, groupID int64) error {
	added, err := c.store.AddMembership(ctx, repoID, groupID)
	if err != nil {
		return fmt.Errorf("adding repo %d to group %d: %w", repoID, groupID, err)
	}

	if added {
		c.logger.Debug("membership added", slog.Int64("repo_id", repoID), slog.Int64("group_id", groupID))
	}

	return nil
}

// ConvertGroupNameToID resolves the group an actor calls name.
func (c *Controller) ConvertGroupNameToID(ctx context.Context, actorID int64, name string) (int64, error) {
	key := fmt.Sprintf("%d/%s", actorID, name)

	if v, found := c.groups.Get(key); found {
		if id, ok := v.(int64); ok {
			return id, nil
		}
	}

	id, err := c.store.GetUserGroupID(ctx, actorID, name)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: %q for actor %d", ErrGroupNotFound, name, actorID)
	}

	if err != nil {
		return 0, fmt.Errorf("looking up group %q: %w", name, err)
	}

	c.groups.SetDefault(key, id)

	return id, nil
}

// AddFrontendRepo registers one repository for an interactive user and adds
// it to the user's group. Expected failures are reported in the Result; the
// error is non-nil when storage fails or the existence check cannot reach
// the hosting API.
func (c *Controller) AddFrontendRepo(ctx context.Context, url string, actorID int64, groupName string) (Result, error) {
	target, err := c.validator.Validate(url)
	if err != nil {
		return newResult(ResultInvalidRepo, 0, err), nil
	}

	if target.IsOrg() {
		return newResult(ResultInvalidRepo, 0, ErrInvalidRepo), nil
	}

	groupID, err := c.ConvertGroupNameToID(ctx, actorID, groupName)
	if errors.Is(err, ErrGroupNotFound) {
		return newResult(ResultInvalidGroup, 0, err), nil
	}

	if err != nil {
		return Result{}, err
	}

	if c.verify {
		exists, err := c.resolver.RepoExists(ctx, target.Owner, target.Repo)
		if err != nil {
			c.logger.Warn("repository check failed",
				slog.String("url", url),
				slog.String("error", err.Error()),
			)

			return Result{}, fmt.Errorf("checking %s: %w", target.FullName(), err)
		}

		if !exists {
			return newResult(ResultInvalidRepo, 0, fmt.Errorf("%w: %s", ErrRepoNotFound, target.FullName())), nil
		}
	}

	res, err := c.AddRepoRowWithOptions(ctx, UpsertOptions{
		URL:     url,
		GroupID: model.FrontendDefaultGroupID,
		Source:  model.SourceFrontend,
	})
	if err != nil {
		return Result{}, err
	}

	if err := c.AddRepoToUserGroup(ctx, res.ID, groupID); err != nil {
		return Result{}, err
	}

	c.logger.Info("repo added",
		slog.String("url", url),
		slog.Int64("actor_id", actorID),
		slog.String("group", groupName),
		slog.Int64("repo_id", res.ID),
	)

	return newResult(ResultRepoAdded, 1, nil), nil
}

// AddFrontendOrg registers every repository of an organization for an
// interactive user. Repositories registered before an enumeration failure
// stay registered.
func (c *Controller) AddFrontendOrg(ctx context.Context, orgURL string, actorID int64, groupName string) (Result, error) {
	target, err := c.validator.Validate(orgURL)
	if err != nil {
		return newResult(ResultInvalidOrg, 0, err), nil
	}

	if !target.IsOrg() {
		return newResult(ResultInvalidOrg, 0, ErrInvalidOrg), nil
	}

	groupID, err := c.ConvertGroupNameToID(ctx, actorID, groupName)
	if errors.Is(err, ErrGroupNotFound) {
		return newResult(ResultInvalidGroup, 0, err), nil
	}

	if err != nil {
		return Result{}, err
	}

	count := 0

	for d, err := range c.resolver.Repos(ctx, target.Owner) {
		if errors.Is(err, resolver.ErrNotFound) {
			return newResult(ResultInvalidOrg, count, err), nil
		}

		if err != nil {
			c.logger.Warn("org enumeration failed",
				slog.String("org", target.Owner),
				slog.Int("registered", count),
				slog.String("error", err.Error()),
			)

			return newResult(ResultOrgFailed, count, err), nil
		}

		if _, err := c.registerDescriptor(ctx, d, model.FrontendDefaultGroupID, model.SourceFrontend, groupID); err != nil {
			return Result{}, err
		}

		count++
	}

	c.logger.Info("org repos added",
		slog.String("org", target.Owner),
		slog.Int64("actor_id", actorID),
		slog.String("group", groupName),
		slog.Int("count", count),
	)

	return newResult(ResultOrgAdded, count, nil), nil
}

// AddCLIRepo registers one repository into an existing group on behalf of
// the CLI actor.
func (c *Controller) AddCLIRepo(ctx context.Context, repo CLIRepo) (int64, error) {
	target, err := c.validator.Validate(repo.URL)
	if err != nil {
		return 0, &InputError{Input: repo.URL, Err: fmt.Errorf("%w: %w", ErrInvalidRepo, err)}
	}

	if target.IsOrg() {
		return 0, &InputError{Input: repo.URL, Err: ErrInvalidRepo}
	}

	if _, err := c.store.GetGroup(ctx, repo.RepoGroupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: id %d", ErrGroupNotFound, repo.RepoGroupID)
		}

		return 0, fmt.Errorf("looking up group %d: %w", repo.RepoGroupID, err)
	}

	res, err := c.AddRepoRowWithOptions(ctx, UpsertOptions{
		URL:         repo.URL,
		GroupID:     repo.RepoGroupID,
		Source:      model.SourceCLI,
		ResetStatus: repo.ResetStatus,
	})
	if err != nil {
		return 0, err
	}

	if err := c.AddRepoToUserGroup(ctx, res.ID, model.CLIDefaultGroupID); err != nil {
		return 0, err
	}

	c.logger.Info("repo added",
		slog.String("url", repo.URL),
		slog.Int64("group_id", repo.RepoGroupID),
		slog.Int64("repo_id", res.ID),
		slog.Bool("created", res.Created),
	)

	return res.ID, nil
}

// AddCLIOrg registers every repository of an organization into a group named
// after it, creating the group on first use. name may be a bare login or an
// organization URL.
func (c *Controller) AddCLIOrg(ctx context.Context, name string) (OrgSummary, error) {
	start := c.now()
	summary := OrgSummary{BatchID: uuid.NewString(), Org: name}

	raw := name
	if !giturl.IsURL(name) {
		raw = c.validator.OrgURL(name)
	}

	target, err := c.validator.Validate(raw)
	if err != nil {
		return summary, &InputError{Input: name, Err: fmt.Errorf("%w: %w", ErrInvalidOrg, err)}
	}

	if !target.IsOrg() {
		return summary, &InputError{Input: name, Err: ErrInvalidOrg}
	}

	summary.Org = target.Owner

	logger := c.logger.With(slog.String("batch_id", summary.BatchID), slog.String("org", target.Owner))

	fail := func(err error) (OrgSummary, error) {
		summary.Duration = c.now().Sub(start)
		return summary, err
	}

	var groupID int64

	for d, err := range c.resolver.Repos(ctx, target.Owner) {
		if errors.Is(err, resolver.ErrNotFound) {
			return fail(fmt.Errorf("%w: %s: %w", ErrOrgNotFound, target.Owner, err))
		}

		if err != nil {
			return fail(fmt.Errorf("listing %s: %w", target.Owner, err))
		}

		// the group is only created once the org is known to exist
		if groupID == 0 {
			group, created, err := c.store.EnsureGroup(ctx, target.Owner, orgGroupDescription)
			if err != nil {
				return fail(fmt.Errorf("creating group for %s: %w", target.Owner, err))
			}

			if created {
				logger.Info("org group created", slog.Int64("group_id", group.ID))
			}

			groupID = group.ID
			summary.GroupID = groupID
		}

		created, err := c.registerDescriptor(ctx, d, groupID, model.SourceCLI, model.CLIDefaultGroupID)
		if err != nil {
			return fail(err)
		}

		summary.Added++

		if created {
			summary.Created++
		}
	}

	summary.Duration = c.now().Sub(start)

	logger.Info("org repos added",
		slog.Int64("group_id", summary.GroupID),
		slog.Int("added", summary.Added),
		slog.Int("created", summary.Created),
		slog.Duration("duration", summary.Duration),
	)

	return summary, nil
}

// registerDescriptor upserts one enumerated repository into ownerGroup and
// links it to memberGroup.
func (c *Controller) registerDescriptor(ctx context.Context, d resolver.Descriptor, ownerGroup int64, source string, memberGroup int64) (bool, error) {
	var archivedAt *time.Time
	if d.Archived {
		at := c.now()
		archivedAt = &at
	}

	res, err := c.AddRepoRowWithOptions(ctx, UpsertOptions{
		URL:        d.HTMLURL,
		GroupID:    ownerGroup,
		Source:     source,
		ArchivedAt: archivedAt,
	})
	if err != nil {
		return false, err
	}

	if err := c.AddRepoToUserGroup(ctx, res.ID, memberGroup); err != nil {
		return false, err
	}

	return res.Created, nil
}
