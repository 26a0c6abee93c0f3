package resolver

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/go-github/v82/github"
)

// ErrNotFound means the organization (or repository) does not exist, or
// produced nothing after the retry budget.
var ErrNotFound = errors.New("not found")

// ErrAPI marks a request the hosting API refused for a reason retries cannot
// fix, such as bad credentials or missing permissions.
var ErrAPI = errors.New("hosting API request failed")

// TransientError reports a page (or, with Page zero, a repository check)
// that kept failing with retryable errors until the retry budget ran out.
type TransientError struct {
	Org      string
	Page     int
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("checking %s failed after %d attempts: %v", e.Org, e.Attempts, e.Err)
	}

	return fmt.Sprintf("listing %s page %d failed after %d attempts: %v",
		e.Org, e.Page, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RetryableError marks a fetch failure worth retrying. After, when set, is
// the wait the server asked for.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%v (retry after %s)", e.Err, e.After)
	}

	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// errEmptyPage is the retry cause recorded for an empty first page.
var errEmptyPage = errors.New("organization listing returned no repositories")

// isTransientError checks if an error is transient and retryable
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}

	// API responses were already classified by classifyGitHubError
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientIndicators := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"network is unreachable",
		"no such host",
		"503",
		"502",
		"504",
	}

	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// retryAfter returns the server-provided wait carried by err, if any.
func retryAfter(err error) time.Duration {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return retryable.After
	}

	return 0
}
