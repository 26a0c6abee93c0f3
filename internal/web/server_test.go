package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovacc/repoload/internal/core"
	"github.com/inovacc/repoload/internal/model"
	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/store"
)

// orgListing serves one page per org.
type orgListing map[string][]string

func (o orgListing) FetchPage(_ context.Context, org string, page int) (resolver.Page, error) {
	names, ok := o[org]
	if !ok {
		return resolver.Page{}, resolver.ErrNotFound
	}

	if page > 1 {
		return resolver.Page{}, nil
	}

	var p resolver.Page
	for _, n := range names {
		p.Repos = append(p.Repos, resolver.Descriptor{Owner: org, Name: n})
	}

	return p, nil
}

type brokenStore struct {
	store.Store
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("disk gone")
}

// unreachableHost lists orgs but cannot answer repository checks.
type unreachableHost struct {
	orgListing
}

func (unreachableHost) RepoExists(context.Context, string, string) (bool, error) {
	return false, &resolver.RetryableError{Err: errors.New("504 gateway timeout")}
}

func setupServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	return newTestServer(t, orgListing{"chaoss": {"augur", "grimoirelab"}}, false)
}

func newTestServer(t *testing.T, fetcher resolver.PageFetcher, verify bool) (*httptest.Server, store.Store) {
	t.Helper()

	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.DiscardHandler)
	r := resolver.New(fetcher, resolver.Options{
		Logger: logger,
		Policy: resolver.Policy{MaxAttempts: 1, EmptyIsNotFound: true},
	})

	ctrl := core.New(s, r, core.Options{Logger: logger, VerifyRepos: verify})
	srv := httptest.NewServer(New(ctrl, s, DefaultConfig(), logger).Handler())
	t.Cleanup(srv.Close)

	return srv, s
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, buf.Bytes()
}

func decodeResult(t *testing.T, b []byte) core.Result {
	t.Helper()

	var res core.Result
	require.NoError(t, json.Unmarshal(b, &res))

	return res
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestHealth_StoreDown(t *testing.T) {
	h := New(nil, brokenStore{}, DefaultConfig(), slog.New(slog.DiscardHandler)).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := setupServer(t)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))
}

func TestAddRepo(t *testing.T) {
	srv, s := setupServer(t)
	base := srv.URL + "/api/users/42"

	resp, _ := doJSON(t, http.MethodPost, base+"/groups", `{"name":"mine","description":"my repos"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"added", `{"url":"https://github.com/chaoss/augur","group_name":"mine"}`, core.StatusRepoAdded},
		{"resubmitted", `{"url":"https://github.com/chaoss/augur.git","group_name":"mine"}`, core.StatusRepoAdded},
		{"bad url", `{"url":"https://gitlab.com/chaoss/augur","group_name":"mine"}`, core.StatusInvalidRepo},
		{"org url", `{"url":"https://github.com/chaoss","group_name":"mine"}`, core.StatusInvalidRepo},
		{"unknown group", `{"url":"https://github.com/chaoss/augur","group_name":"nope"}`, core.StatusInvalidGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, base+"/repos", tt.body)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, decodeResult(t, body).Status)
		})
	}

	repos, err := s.ListRepos(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
}

func TestAddRepo_HostUnavailable(t *testing.T) {
	srv, s := newTestServer(t, unreachableHost{orgListing{}}, true)
	base := srv.URL + "/api/users/42"

	resp, _ := doJSON(t, http.MethodPost, base+"/groups", `{"name":"mine"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/repos", `{"url":"https://github.com/chaoss/augur","group_name":"mine"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	repos, err := s.ListRepos(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestAddOrg(t *testing.T) {
	srv, _ := setupServer(t)
	base := srv.URL + "/api/users/42"

	resp, _ := doJSON(t, http.MethodPost, base+"/groups", `{"name":"mine"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, base+"/orgs", `{"url":"https://github.com/chaoss","group_name":"mine"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decodeResult(t, body)
	assert.Equal(t, core.StatusOrgAdded, res.Status)
	assert.Equal(t, 2, res.Count)

	_, body = doJSON(t, http.MethodPost, base+"/orgs", `{"url":"https://github.com/ghost","group_name":"mine"}`)
	assert.Equal(t, core.StatusInvalidOrg, decodeResult(t, body).Status)

	resp, body = doJSON(t, http.MethodGet, base+"/groups/mine/repos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var repos []model.Repository
	require.NoError(t, json.Unmarshal(body, &repos))
	require.Len(t, repos, 2)
	assert.Equal(t, "https://github.com/chaoss/augur", repos[0].URL)
}

func TestGroups(t *testing.T) {
	srv, _ := setupServer(t)
	base := srv.URL + "/api/users/7"

	resp, body := doJSON(t, http.MethodGet, base+"/groups", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	for _, name := range []string{"beta", "alpha"} {
		resp, _ := doJSON(t, http.MethodPost, base+"/groups", fmt.Sprintf(`{"name":%q}`, name))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/groups", `{"name":"alpha"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, base+"/groups", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = doJSON(t, http.MethodGet, base+"/groups", "")

	var groups []model.UserGroup
	require.NoError(t, json.Unmarshal(body, &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Name)

	resp, _ = doJSON(t, http.MethodGet, base+"/groups/missing/repos", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	srv, _ := setupServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/users/42/repos", `{"url":`, http.StatusBadRequest},
		{"non numeric actor", http.MethodPost, "/api/users/abc/repos", `{}`, http.StatusBadRequest},
		{"negative actor", http.MethodGet, "/api/users/-1/groups", "", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/users/42/repos", "", http.StatusMethodNotAllowed},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServe_Shutdown(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(nil, s, DefaultConfig(), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/health")
		if err != nil {
			return false
		}

		_ = resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:5000", DefaultConfig().Addr())
	assert.Equal(t, "[::1]:80", Config{Host: "::1", Port: 80}.Addr())
}
