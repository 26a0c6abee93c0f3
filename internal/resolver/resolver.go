// Package resolver expands an organization into its repositories through a
// paginated listing API, retrying transient failures within a bounded policy.
package resolver

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_page_fetcher.go -package=mocks github.com/inovacc/repoload/internal/resolver PageFetcher,RepoChecker

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/inovacc/repoload/internal/giturl"
)

// Descriptor is one repository reported by the listing API.
type Descriptor struct {
	Owner    string
	Name     string
	HTMLURL  string
	Archived bool
	Fork     bool
}

// Page is one listing page. NextPage is 0 once the listing is exhausted.
type Page struct {
	Repos    []Descriptor
	NextPage int
}

// PageFetcher requests single listing pages. Implementations return
// ErrNotFound for a missing organization and RetryableError (or any error
// isTransientError accepts) for failures worth retrying.
type PageFetcher interface {
	FetchPage(ctx context.Context, org string, page int) (Page, error)
}

// RepoChecker is implemented by fetchers that can probe a single repository.
type RepoChecker interface {
	RepoExists(ctx context.Context, owner, repo string) (bool, error)
}

// Options configures a Resolver.
type Options struct {
	Policy Policy
	Logger *slog.Logger

	// Host is the code-hosting domain descriptors are normalized against.
	Host string
}

// Resolver turns organizations into repository descriptors.
type Resolver struct {
	fetcher   PageFetcher
	policy    Policy
	logger    *slog.Logger
	validator giturl.Validator
}

// New creates a Resolver over fetcher.
func New(fetcher PageFetcher, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		fetcher:   fetcher,
		policy:    opts.Policy.withDefaults(),
		logger:    logger,
		validator: giturl.NewValidator(opts.Host),
	}
}

// Repos lazily enumerates the repositories of org. The sequence ends
// normally when the listing is exhausted. Otherwise its last element carries
// an error: ErrNotFound when the organization does not exist or its first
// page never succeeded, a *TransientError when a later page ran out of
// retries, or a permanent fetch error.
func (r *Resolver) Repos(ctx context.Context, org string) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		page := 1

		for {
			p, err := r.fetchPage(ctx, org, page)
			if err != nil {
				yield(Descriptor{}, err)
				return
			}

			for _, d := range p.Repos {
				normalized, ok := r.normalize(d)
				if !ok {
					continue
				}

				if !yield(normalized, nil) {
					return
				}
			}

			if p.NextPage == 0 || p.NextPage <= page {
				return
			}

			page = p.NextPage
		}
	}
}

// ResolveAll collects Repos. On error the descriptors gathered so far are
// returned alongside it.
func (r *Resolver) ResolveAll(ctx context.Context, org string) ([]Descriptor, error) {
	var out []Descriptor

	for d, err := range r.Repos(ctx, org) {
		if err != nil {
			return out, err
		}

		out = append(out, d)
	}

	return out, nil
}

// RepoExists probes owner/repo when the fetcher supports it. Fetchers that
// cannot probe report every repository as existing.
func (r *Resolver) RepoExists(ctx context.Context, owner, repo string) (bool, error) {
	checker, ok := r.fetcher.(RepoChecker)
	if !ok {
		return true, nil
	}

	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		exists, err := checker.RepoExists(ctx, owner, repo)
		if err == nil {
			return exists, nil
		}

		if errors.Is(err, ErrNotFound) {
			return false, nil
		}

		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if !isTransientError(err) {
			return false, fmt.Errorf("checking %s/%s: %w: %w", owner, repo, ErrAPI, err)
		}

		lastErr = err

		if attempt < r.policy.MaxAttempts {
			if err := r.wait(ctx, attempt, err); err != nil {
				return false, err
			}
		}
	}

	return false, &TransientError{Org: owner + "/" + repo, Attempts: r.policy.MaxAttempts, Err: lastErr}
}

// fetchPage requests one page, retrying transient failures (and an empty
// first page) up to MaxAttempts.
func (r *Resolver) fetchPage(ctx context.Context, org string, page int) (Page, error) {
	var lastErr error

	attempts := r.policy.MaxAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		p, err := r.fetcher.FetchPage(ctx, org, page)

		switch {
		case err == nil && page == 1 && len(p.Repos) == 0 && r.policy.EmptyIsNotFound:
			err = errEmptyPage
			attempts = min(attempts, r.policy.EmptyAttempts)
		case err == nil:
			return p, nil
		case errors.Is(err, ErrNotFound):
			return Page{}, fmt.Errorf("organization %s: %w", org, err)
		case ctx.Err() != nil:
			return Page{}, ctx.Err()
		case !isTransientError(err):
			return Page{}, fmt.Errorf("listing %s page %d: %w: %w", org, page, ErrAPI, err)
		}

		lastErr = err

		if attempt < attempts {
			if err := r.wait(ctx, attempt, err); err != nil {
				return Page{}, err
			}
		}
	}

	if page == 1 {
		return Page{}, fmt.Errorf("organization %s after %d attempts: %w: %w",
			org, attempts, ErrNotFound, lastErr)
	}

	return Page{}, &TransientError{Org: org, Page: page, Attempts: attempts, Err: lastErr}
}

// wait sleeps before the next attempt, honoring a server-provided delay.
func (r *Resolver) wait(ctx context.Context, attempt int, cause error) error {
	delay := r.policy.backoff(attempt - 1)

	switch after := retryAfter(cause); {
	case errors.Is(cause, errEmptyPage):
		delay = r.policy.EmptyBackoff
	case after > 0:
		delay = r.policy.cap(after)
	}

	r.logger.Warn("transient error, retrying",
		slog.Int("attempt", attempt),
		slog.Duration("backoff", delay),
		slog.String("error", cause.Error()),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// normalize canonicalizes the descriptor URL. Descriptors that do not form a
// valid repository URL are dropped.
func (r *Resolver) normalize(d Descriptor) (Descriptor, bool) {
	raw := d.HTMLURL
	if raw == "" {
		raw = r.validator.RepoURL(d.Owner, d.Name)
	}

	url, err := r.validator.NormalizeRepoURL(raw)
	if err != nil {
		r.logger.Warn("skipping repository with unusable url",
			slog.String("url", raw),
			slog.String("error", err.Error()),
		)

		return Descriptor{}, false
	}

	d.HTMLURL = url

	return d, true
}
