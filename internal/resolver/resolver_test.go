package resolver_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/resolver/mocks"
)

func fastPolicy() resolver.Policy {
	return resolver.Policy{
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		Multiplier:      2,
		EmptyIsNotFound: true,
	}
}

func repos(owner string, names ...string) []resolver.Descriptor {
	out := make([]resolver.Descriptor, 0, len(names))
	for _, n := range names {
		out = append(out, resolver.Descriptor{Owner: owner, Name: n, HTMLURL: "https://github.com/" + owner + "/" + n})
	}

	return out
}

func urls(ds []resolver.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.HTMLURL)
	}

	return out
}

var errUnavailable = &resolver.RetryableError{Err: errors.New("503 service unavailable")}

func TestResolveAll_Paginates(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	gomock.InOrder(
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: repos("chaoss", "augur", "grimoirelab"), NextPage: 2}, nil),
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 2).Return(resolver.Page{Repos: repos("chaoss", "website"), NextPage: 3}, nil),
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 3).Return(resolver.Page{Repos: repos("chaoss", "governance")}, nil),
	)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	got, err := r.ResolveAll(context.Background(), "chaoss")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://github.com/chaoss/augur",
		"https://github.com/chaoss/grimoirelab",
		"https://github.com/chaoss/website",
		"https://github.com/chaoss/governance",
	}, urls(got))
}

func TestResolveAll_NormalizesAndSkipsBadURLs(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: []resolver.Descriptor{
		{Owner: "chaoss", Name: "augur", HTMLURL: "https://www.github.com/chaoss/augur.git", Archived: true},
		{Owner: "chaoss", Name: "broken", HTMLURL: "https://gitlab.com/chaoss/broken"},
		{Owner: "chaoss", Name: "nourl"},
	}}, nil)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	got, err := r.ResolveAll(context.Background(), "chaoss")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://github.com/chaoss/augur", got[0].HTMLURL)
	assert.True(t, got[0].Archived)
	assert.Equal(t, "https://github.com/chaoss/nourl", got[1].HTMLURL)
}

func TestResolveAll_NotFoundIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "ghost", 1).Return(resolver.Page{}, resolver.ErrNotFound).Times(1)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	_, err := r.ResolveAll(context.Background(), "ghost")
	require.ErrorIs(t, err, resolver.ErrNotFound)
}

func TestResolveAll_RetriesTransientFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	gomock.InOrder(
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{}, errUnavailable).Times(2),
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: repos("chaoss", "augur")}, nil),
	)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	got, err := r.ResolveAll(context.Background(), "chaoss")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestResolveAll_FirstPageExhaustedIsNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{}, errUnavailable).Times(3)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	_, err := r.ResolveAll(context.Background(), "chaoss")
	require.ErrorIs(t, err, resolver.ErrNotFound)
	require.ErrorIs(t, err, errUnavailable, "the transient cause stays visible")
}

func TestResolveAll_EmptyFirstPage(t *testing.T) {
	t.Run("not found by default", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockPageFetcher(ctrl)

		fetcher.EXPECT().FetchPage(gomock.Any(), "empty", 1).Return(resolver.Page{}, nil).Times(3)

		r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

		_, err := r.ResolveAll(context.Background(), "empty")
		require.ErrorIs(t, err, resolver.ErrNotFound)
	})

	t.Run("empty result when allowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockPageFetcher(ctrl)

		fetcher.EXPECT().FetchPage(gomock.Any(), "empty", 1).Return(resolver.Page{}, nil).Times(1)

		policy := fastPolicy()
		policy.EmptyIsNotFound = false

		r := resolver.New(fetcher, resolver.Options{Policy: policy})

		got, err := r.ResolveAll(context.Background(), "empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("eventually populated", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := mocks.NewMockPageFetcher(ctrl)

		gomock.InOrder(
			fetcher.EXPECT().FetchPage(gomock.Any(), "fresh", 1).Return(resolver.Page{}, nil),
			fetcher.EXPECT().FetchPage(gomock.Any(), "fresh", 1).Return(resolver.Page{Repos: repos("fresh", "one")}, nil),
		)

		r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

		got, err := r.ResolveAll(context.Background(), "fresh")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestResolveAll_EmptyFirstPageBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "empty", 1).Return(resolver.Page{}, nil).Times(2)

	policy := fastPolicy()
	policy.MaxAttempts = 10
	policy.InitialBackoff = time.Hour
	policy.MaxBackoff = time.Hour
	policy.EmptyAttempts = 2
	policy.EmptyBackoff = time.Millisecond

	r := resolver.New(fetcher, resolver.Options{Policy: policy})

	start := time.Now()

	_, err := r.ResolveAll(context.Background(), "empty")
	require.ErrorIs(t, err, resolver.ErrNotFound)
	assert.Less(t, time.Since(start), time.Second, "empty pages use their own backoff")
}

func TestResolveAll_TransientFirstPageKeepsFullBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	gomock.InOrder(
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{}, errUnavailable).Times(4),
		fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: repos("chaoss", "augur")}, nil),
	)

	policy := fastPolicy()
	policy.MaxAttempts = 5
	policy.EmptyAttempts = 1

	r := resolver.New(fetcher, resolver.Options{Policy: policy})

	got, err := r.ResolveAll(context.Background(), "chaoss")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRepos_LaterPageExhaustedIsTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: repos("chaoss", "augur"), NextPage: 2}, nil)
	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 2).Return(resolver.Page{}, errUnavailable).Times(3)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	var (
		got     []string
		lastErr error
	)

	for d, err := range r.Repos(context.Background(), "chaoss") {
		if err != nil {
			lastErr = err
			break
		}

		got = append(got, d.HTMLURL)
	}

	assert.Equal(t, []string{"https://github.com/chaoss/augur"}, got, "earlier pages are still delivered")

	var transient *resolver.TransientError
	require.ErrorAs(t, lastErr, &transient)
	assert.Equal(t, 2, transient.Page)
	assert.Equal(t, 3, transient.Attempts)
	assert.NotErrorIs(t, lastErr, resolver.ErrNotFound)
}

func TestResolveAll_PermanentErrorIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	boom := errors.New("401 bad credentials")
	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{}, boom).Times(1)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	_, err := r.ResolveAll(context.Background(), "chaoss")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, resolver.ErrAPI)
	require.NotErrorIs(t, err, resolver.ErrNotFound)
}

func TestRepos_StopsWhenConsumerStops(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).Return(resolver.Page{Repos: repos("chaoss", "a", "b"), NextPage: 2}, nil)

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})

	for range r.Repos(context.Background(), "chaoss") {
		break
	}
}

func TestRepos_ContextCancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())

	fetcher.EXPECT().FetchPage(gomock.Any(), "chaoss", 1).DoAndReturn(
		func(context.Context, string, int) (resolver.Page, error) {
			cancel()
			return resolver.Page{}, errUnavailable
		},
	).Times(1)

	policy := fastPolicy()
	policy.InitialBackoff = time.Hour
	policy.MaxBackoff = time.Hour

	r := resolver.New(fetcher, resolver.Options{Policy: policy})

	_, err := r.ResolveAll(ctx, "chaoss")
	require.ErrorIs(t, err, context.Canceled)
}

type checkingFetcher struct {
	*mocks.MockPageFetcher
	*mocks.MockRepoChecker
}

func TestRepoExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockRepoChecker(ctrl)
	fetcher := checkingFetcher{MockPageFetcher: mocks.NewMockPageFetcher(ctrl), MockRepoChecker: checker}

	r := resolver.New(fetcher, resolver.Options{Policy: fastPolicy()})
	ctx := context.Background()

	checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "augur").Return(true, nil)

	ok, err := r.RepoExists(ctx, "chaoss", "augur")
	require.NoError(t, err)
	assert.True(t, ok)

	checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "gone").Return(false, resolver.ErrNotFound)

	ok, err = r.RepoExists(ctx, "chaoss", "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	gomock.InOrder(
		checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "flaky").Return(false, errUnavailable),
		checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "flaky").Return(true, nil),
	)

	ok, err = r.RepoExists(ctx, "chaoss", "flaky")
	require.NoError(t, err)
	assert.True(t, ok)

	checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "down").Return(false, errUnavailable).Times(3)

	_, err = r.RepoExists(ctx, "chaoss", "down")
	require.ErrorIs(t, err, errUnavailable)

	var transient *resolver.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, "chaoss/down", transient.Org)

	checker.EXPECT().RepoExists(gomock.Any(), "chaoss", "private").Return(false, errors.New("401 Bad credentials")).Times(1)

	_, err = r.RepoExists(ctx, "chaoss", "private")
	require.ErrorIs(t, err, resolver.ErrAPI)
}

func TestRepoExists_WithoutChecker(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := resolver.New(mocks.NewMockPageFetcher(ctrl), resolver.Options{})

	ok, err := r.RepoExists(context.Background(), "chaoss", "augur")
	require.NoError(t, err)
	assert.True(t, ok)
}
