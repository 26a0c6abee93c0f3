package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v82/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGitHub(t *testing.T, mux *http.ServeMux) *GitHubFetcher {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)

	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)

	client.BaseURL = base

	return NewGitHubFetcher(client, 2)
}

func TestGitHubFetcher_FetchPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/chaoss/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s/orgs/chaoss/repos?page=2&per_page=2>; rel="next"`, "http://"+r.Host))
			_, _ = fmt.Fprint(w, `[
				{"name":"augur","html_url":"https://github.com/chaoss/augur","owner":{"login":"chaoss"}},
				{"name":"old","html_url":"https://github.com/chaoss/old","archived":true,"fork":true,"owner":{"login":"chaoss"}}
			]`)
		default:
			_, _ = fmt.Fprint(w, `[{"name":"website","html_url":"https://github.com/chaoss/website"}]`)
		}
	})

	f := setupGitHub(t, mux)

	page, err := f.FetchPage(context.Background(), "chaoss", 1)
	require.NoError(t, err)
	require.Len(t, page.Repos, 2)
	assert.Equal(t, 2, page.NextPage)
	assert.Equal(t, Descriptor{Owner: "chaoss", Name: "augur", HTMLURL: "https://github.com/chaoss/augur"}, page.Repos[0])
	assert.True(t, page.Repos[1].Archived)
	assert.True(t, page.Repos[1].Fork)

	page, err = f.FetchPage(context.Background(), "chaoss", 2)
	require.NoError(t, err)
	require.Len(t, page.Repos, 1)
	assert.Equal(t, "chaoss", page.Repos[0].Owner, "owner falls back to the org")
	assert.Zero(t, page.NextPage)
}

func TestGitHubFetcher_ErrorClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/ghost/repos", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	mux.HandleFunc("GET /orgs/flaky/repos", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprint(w, `{"message":"Server Error"}`)
	})
	mux.HandleFunc("GET /orgs/secret/repos", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"message":"Bad credentials"}`)
	})

	f := setupGitHub(t, mux)
	ctx := context.Background()

	_, err := f.FetchPage(ctx, "ghost", 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.FetchPage(ctx, "flaky", 1)

	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.True(t, isTransientError(err))

	_, err = f.FetchPage(ctx, "secret", 1)
	require.Error(t, err)
	assert.False(t, isTransientError(err))
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGitHubFetcher_RepoExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/chaoss/augur", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `{"name":"augur","full_name":"chaoss/augur"}`)
	})
	mux.HandleFunc("GET /repos/chaoss/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	f := setupGitHub(t, mux)
	ctx := context.Background()

	ok, err := f.RepoExists(ctx, "chaoss", "augur")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.RepoExists(ctx, "chaoss", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolver_WithGitHubFetcher(t *testing.T) {
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/chaoss/repos", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		_, _ = fmt.Fprint(w, `[{"name":"augur","html_url":"https://github.com/chaoss/augur"}]`)
	})

	r := New(setupGitHub(t, mux), Options{Policy: Policy{
		MaxAttempts:     3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      time.Millisecond,
		EmptyIsNotFound: true,
	}})

	got, err := r.ResolveAll(context.Background(), "chaoss")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewGitHubClient(t *testing.T) {
	client, err := NewGitHubClient(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", client.BaseURL.String())

	client, err = NewGitHubClient(context.Background(), "token", "https://ghe.example.com/api/v3/")
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", client.BaseURL.String())
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("unexpected status 503"), true},
		{&RetryableError{Err: errors.New("rate limited")}, true},
		{fmt.Errorf("wrapped: %w", &RetryableError{Err: errors.New("x")}), true},
		{errors.New("401 bad credentials"), false},
		{ErrNotFound, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isTransientError(tt.err), "isTransientError(%v)", tt.err)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, Multiplier: 2}.withDefaults()

	for retry, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second} {
		got := p.backoff(retry)
		lo := time.Duration(float64(base) * 0.9)
		hi := time.Duration(float64(base) * 1.1)

		assert.GreaterOrEqual(t, got, lo, "retry %d", retry)
		assert.LessOrEqual(t, got, hi, "retry %d", retry)
	}

	assert.Equal(t, 10*time.Second, p.cap(time.Hour))
	assert.Equal(t, time.Duration(0), p.cap(-time.Second))
	assert.Equal(t, 10, p.MaxAttempts)
	assert.Equal(t, 3, p.EmptyAttempts)
	assert.Equal(t, time.Duration(0), p.EmptyBackoff)

	small := Policy{MaxAttempts: 2, EmptyAttempts: 5, EmptyBackoff: -time.Second}.withDefaults()
	assert.Equal(t, 2, small.EmptyAttempts, "never above MaxAttempts")
	assert.Equal(t, time.Duration(0), small.EmptyBackoff)
}

func TestDefaultPolicy_EmptyOrgIsQuick(t *testing.T) {
	p := DefaultPolicy()

	total := time.Duration(p.EmptyAttempts-1) * p.EmptyBackoff
	assert.LessOrEqual(t, total, time.Second)
	assert.Less(t, p.EmptyAttempts, p.MaxAttempts)
}

func TestRetryableError(t *testing.T) {
	cause := errors.New("secondary rate limit")
	err := &RetryableError{Err: cause, After: 30 * time.Second}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "retry after 30s")
	assert.Equal(t, 30*time.Second, retryAfter(fmt.Errorf("x: %w", err)))
	assert.Zero(t, retryAfter(cause))
}
