package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// DefaultPerPage is the listing page size, the API maximum.
const DefaultPerPage = 100

// NewGitHubClient creates a GitHub client authenticated with token. An empty
// token yields an anonymous client; a non-empty apiURL targets a GitHub
// Enterprise server.
func NewGitHubClient(ctx context.Context, token, apiURL string) (*github.Client, error) {
	var httpClient *http.Client

	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := github.NewClient(httpClient)

	if apiURL == "" {
		return client, nil
	}

	client, err := client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("configuring api url %s: %w", apiURL, err)
	}

	return client, nil
}

// GitHubFetcher lists organization repositories through the GitHub REST API.
type GitHubFetcher struct {
	client  *github.Client
	perPage int
}

// NewGitHubFetcher wraps client. perPage <= 0 selects DefaultPerPage.
func NewGitHubFetcher(client *github.Client, perPage int) *GitHubFetcher {
	if perPage <= 0 || perPage > DefaultPerPage {
		perPage = DefaultPerPage
	}

	return &GitHubFetcher{client: client, perPage: perPage}
}

// FetchPage requests one page of GET /orgs/{org}/repos.
func (f *GitHubFetcher) FetchPage(ctx context.Context, org string, page int) (Page, error) {
	opt := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: f.perPage},
	}

	repos, resp, err := f.client.Repositories.ListByOrg(ctx, org, opt)
	if err != nil {
		return Page{}, classifyGitHubError(err, "organization "+org)
	}

	out := Page{Repos: make([]Descriptor, 0, len(repos))}

	for _, r := range repos {
		owner := org
		if login := r.GetOwner().GetLogin(); login != "" {
			owner = login
		}

		out.Repos = append(out.Repos, Descriptor{
			Owner:    owner,
			Name:     r.GetName(),
			HTMLURL:  r.GetHTMLURL(),
			Archived: r.GetArchived(),
			Fork:     r.GetFork(),
		})
	}

	if resp != nil {
		out.NextPage = resp.NextPage
	}

	return out, nil
}

// RepoExists reports whether owner/repo is visible to the client.
func (f *GitHubFetcher) RepoExists(ctx context.Context, owner, repo string) (bool, error) {
	_, _, err := f.client.Repositories.Get(ctx, owner, repo)
	if err == nil {
		return true, nil
	}

	err = classifyGitHubError(err, "repository "+owner+"/"+repo)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}

	return false, err
}

// classifyGitHubError maps go-github errors onto the resolver taxonomy:
// 404 is ErrNotFound, rate limits and server errors are retryable, the rest
// is returned unchanged.
func classifyGitHubError(err error, what string) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		wait := time.Until(rateLimitErr.Rate.Reset.Time) + time.Second // add 1s buffer
		return &RetryableError{Err: err, After: wait}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RetryableError{Err: err, After: abuseErr.GetRetryAfter()}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		case code >= http.StatusInternalServerError, code == http.StatusTooManyRequests:
			return &RetryableError{Err: err}
		case code == http.StatusForbidden && strings.Contains(strings.ToLower(respErr.Message), "rate limit"):
			return &RetryableError{Err: err}
		}
	}

	return err
}
