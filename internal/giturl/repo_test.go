package giturl

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsValidRepo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "plain repo", input: "https://github.com/chaoss/augur", want: true},
		{name: "trailing slash", input: "https://github.com/chaoss/augur/", want: true},
		{name: "git suffix", input: "https://github.com/chaoss/augur.git", want: true},
		{name: "surrounding whitespace", input: "  https://github.com/chaoss/augur \n", want: true},
		{name: "scp syntax", input: "git@github.com:chaoss/augur.git", want: true},
		{name: "www host", input: "https://www.github.com/chaoss/augur", want: true},
		{name: "dotted repo name", input: "https://github.com/chaoss/grimoirelab-perceval.opnfv", want: true},
		{name: "free text", input: "hello world", want: false},
		{name: "empty", input: "", want: false},
		{name: "empty owner", input: "https://github.com//augur", want: false},
		{name: "org only", input: "https://github.com/chaoss/", want: false},
		{name: "empty owner and repo", input: "https://github.com//", want: false},
		{name: "extra path segment", input: "https://github.com/chaoss/augur/issues", want: false},
		{name: "deep link", input: "https://github.com/chaoss/augur/blob/main/README.md", want: false},
		{name: "wrong host", input: "https://gitlab.com/chaoss/augur", want: false},
		{name: "lookalike host", input: "https://github.com.evil.io/chaoss/augur", want: false},
		{name: "reserved owner", input: "https://github.com/settings/profile", want: false},
		{name: "query string", input: "https://github.com/chaoss/augur?tab=readme", want: false},
		{name: "ftp scheme", input: "ftp://github.com/chaoss/augur", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsValidRepo(tt.input), "IsValidRepo(%q)", tt.input)
		})
	}
}

func TestValidate_Org(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantOwner string
		wantErr   bool
	}{
		{name: "org with slash", input: "https://github.com/chaoss/", wantOwner: "chaoss"},
		{name: "org without slash", input: "https://github.com/CDCgov", wantOwner: "CDCgov"},
		{name: "reserved orgs path", input: "https://github.com/orgs/", wantErr: true},
		{name: "bare host", input: "https://github.com/", wantErr: true},
		{name: "owner with underscore", input: "https://github.com/bad_owner", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := Validate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidURL))

				return
			}

			require.NoError(t, err)
			require.True(t, target.IsOrg())
			require.Equal(t, tt.wantOwner, target.Owner)
			require.True(t, IsValidOrg(tt.input))
		})
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "https://github.com/chaoss/augur", want: "https://github.com/chaoss/augur"},
		{input: "https://github.com/chaoss/augur/", want: "https://github.com/chaoss/augur"},
		{input: "https://github.com/chaoss/augur.git", want: "https://github.com/chaoss/augur"},
		{input: "http://WWW.GitHub.com/chaoss/augur", want: "https://github.com/chaoss/augur"},
		{input: "git@github.com:operate-first/operate-first-twitter.git", want: "https://github.com/operate-first/operate-first-twitter"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeRepoURL(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeRepoURL("https://github.com/chaoss")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestValidator_CustomHost(t *testing.T) {
	v := NewValidator("GHE.example.com")

	require.True(t, v.IsValidRepo("https://ghe.example.com/team/service"))
	require.False(t, v.IsValidRepo("https://github.com/team/service"))
	require.Equal(t, "https://ghe.example.com/team/service", v.RepoURL("team", "service"))
	require.Equal(t, "https://ghe.example.com/team", v.OrgURL("team"))
}

func TestTarget_FullName(t *testing.T) {
	require.Equal(t, "chaoss/augur", Target{Owner: "chaoss", Repo: "augur"}.FullName())
	require.Equal(t, "chaoss", Target{Owner: "chaoss"}.FullName())
}

func ownerGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9-]{0,20}`).Filter(func(s string) bool {
		_, reserved := reservedOwners[strings.ToLower(s)]
		return !reserved
	})
}

func repoGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Za-z0-9_-][A-Za-z0-9._-]{0,30}`).Filter(func(s string) bool {
		return !strings.HasSuffix(s, ".git") && s != "." && s != ".."
	})
}

func TestProperty_NormalizationIsStable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		owner := ownerGen().Draw(t, "owner")
		repo := repoGen().Draw(t, "repo")
		decorate := rapid.SampledFrom([]string{"", "/", ".git", ".git/"}).Draw(t, "suffix")

		raw := "https://github.com/" + owner + "/" + repo + decorate

		got, err := NormalizeRepoURL(raw)
		if err != nil {
			t.Fatalf("NormalizeRepoURL(%q) error = %v", raw, err)
		}

		if got != RepoURL(owner, repo) {
			t.Fatalf("NormalizeRepoURL(%q) = %q, want %q", raw, got, RepoURL(owner, repo))
		}

		again, err := NormalizeRepoURL(got)
		if err != nil || again != got {
			t.Fatalf("normalizing %q twice gave %q, %v", got, again, err)
		}
	})
}

func TestProperty_ExtraSegmentsRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		owner := ownerGen().Draw(t, "owner")
		repo := repoGen().Draw(t, "repo")
		extra := rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "extra")

		raw := "https://github.com/" + owner + "/" + repo + "/" + extra
		if IsValidRepo(raw) {
			t.Fatalf("IsValidRepo(%q) = true, want false", raw)
		}
	})
}
