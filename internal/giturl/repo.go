package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultHost is the code-hosting domain accepted by the package-level helpers.
const DefaultHost = "github.com"

var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,38}$`)
	repoPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// reservedOwners are first path segments that belong to the hosting site
// itself rather than to a user or organization.
var reservedOwners = map[string]struct{}{
	"about":         {},
	"apps":          {},
	"collections":   {},
	"enterprise":    {},
	"explore":       {},
	"features":      {},
	"login":         {},
	"marketplace":   {},
	"new":           {},
	"notifications": {},
	"organizations": {},
	"orgs":          {},
	"pricing":       {},
	"settings":      {},
	"sponsors":      {},
	"topics":        {},
	"trending":      {},
	"users":         {},
}

// Target is the result of validating a URL: an organization when Repo is
// empty, a repository otherwise.
type Target struct {
	Owner string
	Repo  string
}

// IsOrg reports whether the target names an organization.
func (t Target) IsOrg() bool {
	return t.Repo == ""
}

// FullName returns the "owner/repo" string, or just the owner for an org.
func (t Target) FullName() string {
	if t.IsOrg() {
		return t.Owner
	}

	return fmt.Sprintf("%s/%s", t.Owner, t.Repo)
}

// Validator checks candidate URLs against one hosting domain.
type Validator struct {
	Host string
}

// NewValidator returns a Validator for host, falling back to DefaultHost.
func NewValidator(host string) Validator {
	host = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(host)), "www.")
	if host == "" {
		host = DefaultHost
	}

	return Validator{Host: host}
}

func (v Validator) host() string {
	if v.Host == "" {
		return DefaultHost
	}

	return v.Host
}

// Validate parses raw into an organization or repository target.
// It never touches the network.
func (v Validator) Validate(raw string) (Target, error) {
	s := trimInput(raw)
	if s == "" {
		return Target{}, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	u, err := Parse(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}

	switch u.Scheme {
	case "https", "http", "ssh":
	default:
		return Target{}, fmt.Errorf("%w: %q: unsupported scheme %q", ErrInvalidURL, raw, u.Scheme)
	}

	if normalizeHost(u) != v.host() {
		return Target{}, fmt.Errorf("%w: %q: host must be %s", ErrInvalidURL, raw, v.host())
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return Target{}, fmt.Errorf("%w: %q: unexpected query or fragment", ErrInvalidURL, raw)
	}

	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) > 2 {
		return Target{}, fmt.Errorf("%w: %q: extra path segments", ErrInvalidURL, raw)
	}

	owner := parts[0]
	if owner == "" {
		return Target{}, fmt.Errorf("%w: %q: missing owner", ErrInvalidURL, raw)
	}

	if _, ok := reservedOwners[strings.ToLower(owner)]; ok {
		return Target{}, fmt.Errorf("%w: %q: %q is not an owner", ErrInvalidURL, raw, owner)
	}

	if !ownerPattern.MatchString(owner) {
		return Target{}, fmt.Errorf("%w: %q: malformed owner %q", ErrInvalidURL, raw, owner)
	}

	if len(parts) == 1 {
		return Target{Owner: owner}, nil
	}

	repo := parts[1]
	if repo == "" {
		return Target{}, fmt.Errorf("%w: %q: missing repository name", ErrInvalidURL, raw)
	}

	if repo == "." || repo == ".." || !repoPattern.MatchString(repo) {
		return Target{}, fmt.Errorf("%w: %q: malformed repository name %q", ErrInvalidURL, raw, repo)
	}

	return Target{Owner: owner, Repo: repo}, nil
}

// IsValidRepo reports whether raw is a well-formed repository URL.
func (v Validator) IsValidRepo(raw string) bool {
	t, err := v.Validate(raw)
	return err == nil && !t.IsOrg()
}

// IsValidOrg reports whether raw is a well-formed organization URL.
func (v Validator) IsValidOrg(raw string) bool {
	t, err := v.Validate(raw)
	return err == nil && t.IsOrg()
}

// NormalizeRepoURL returns the canonical https form of a repository URL.
func (v Validator) NormalizeRepoURL(raw string) (string, error) {
	t, err := v.Validate(raw)
	if err != nil {
		return "", err
	}

	if t.IsOrg() {
		return "", fmt.Errorf("%w: %q: organization url, expected a repository", ErrInvalidURL, raw)
	}

	return v.RepoURL(t.Owner, t.Repo), nil
}

// RepoURL builds the canonical repository URL.
func (v Validator) RepoURL(owner, repo string) string {
	return fmt.Sprintf("https://%s/%s/%s", v.host(), owner, repo)
}

// OrgURL builds the canonical organization URL.
func (v Validator) OrgURL(owner string) string {
	return fmt.Sprintf("https://%s/%s", v.host(), owner)
}

var defaultValidator = Validator{Host: DefaultHost}

// Validate checks raw against DefaultHost.
func Validate(raw string) (Target, error) {
	return defaultValidator.Validate(raw)
}

// IsValidRepo checks raw against DefaultHost.
func IsValidRepo(raw string) bool {
	return defaultValidator.IsValidRepo(raw)
}

// IsValidOrg checks raw against DefaultHost.
func IsValidOrg(raw string) bool {
	return defaultValidator.IsValidOrg(raw)
}

// NormalizeRepoURL canonicalizes raw against DefaultHost.
func NormalizeRepoURL(raw string) (string, error) {
	return defaultValidator.NormalizeRepoURL(raw)
}

// RepoURL builds a canonical DefaultHost repository URL.
func RepoURL(owner, repo string) string {
	return defaultValidator.RepoURL(owner, repo)
}

// OrgURL builds a canonical DefaultHost organization URL.
func OrgURL(owner string) string {
	return defaultValidator.OrgURL(owner)
}
