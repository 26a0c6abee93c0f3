package core

import (
	"errors"
	"fmt"

	"github.com/inovacc/repoload/internal/giturl"
	"github.com/inovacc/repoload/internal/resolver"
	"github.com/inovacc/repoload/internal/store"
)

var (
	// ErrInvalidRepo is returned for input that is not a repository URL.
	ErrInvalidRepo = fmt.Errorf("invalid repo: %w", giturl.ErrInvalidURL)

	// ErrInvalidOrg is returned for input that is not an organization.
	ErrInvalidOrg = fmt.Errorf("invalid org: %w", giturl.ErrInvalidURL)

	// ErrOrgNotFound is returned when the organization cannot be enumerated.
	ErrOrgNotFound = fmt.Errorf("org %w", resolver.ErrNotFound)

	// ErrGroupNotFound is returned when a group name or id does not resolve.
	ErrGroupNotFound = fmt.Errorf("group %w", store.ErrNotFound)

	// ErrRepoNotFound is returned when the hosting site does not know the repository.
	ErrRepoNotFound = errors.New("repository does not exist")
)

// InputError ties a validation failure to the input that caused it.
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Input)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ErrorKind categorizes registration failures
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindTransient
	KindLookup
	KindRemote
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindTransient:
		return "transient failure"
	case KindLookup:
		return "lookup failure"
	case KindRemote:
		return "hosting API failure"
	case KindStorage:
		return "storage failure"
	}

	return ""
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var transient *resolver.TransientError

	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, giturl.ErrInvalidURL), errors.Is(err, ErrRepoNotFound):
		return KindInvalidInput
	case errors.Is(err, ErrGroupNotFound):
		return KindLookup
	case errors.Is(err, resolver.ErrNotFound):
		return KindNotFound
	case errors.As(err, &transient):
		return KindTransient
	case errors.Is(err, resolver.ErrAPI):
		return KindRemote
	default:
		return KindStorage
	}
}
