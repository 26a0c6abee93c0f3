package config

import (
	"errors"
	"os"

	"github.com/cli/go-gh/v2/pkg/auth"
)

// TokenSource indicates where the token was found
type TokenSource string

const (
	TokenSourceFlag      TokenSource = "flag"
	TokenSourceConfig    TokenSource = "config"
	TokenSourceEnvGitHub TokenSource = "GITHUB_TOKEN"
	TokenSourceEnvGH     TokenSource = "GH_TOKEN"
	TokenSourceGHCLI     TokenSource = "gh-cli"
	TokenSourceNone      TokenSource = "none"
)

// ErrNoToken is returned when no source provides a GitHub token.
var ErrNoToken = errors.New(`GitHub token required

Provide a token via one of:
  * gh auth login             (auto-detected from gh CLI)
  * GITHUB_TOKEN env var
  * github.token in config.yaml
  * --token flag

Create a token at: https://github.com/settings/tokens`)

// tokenForHost is swapped in tests to keep the gh CLI config out of them.
var tokenForHost = func(host string) string {
	token, _ := auth.TokenForHost(host)
	return token
}

// ResolveToken finds a GitHub token for the configured host.
// Priority order:
//  1. flagToken (explicit --token flag)
//  2. github.token from the config file or REPOLOAD_GITHUB_TOKEN
//  3. GITHUB_TOKEN environment variable
//  4. GH_TOKEN environment variable
//  5. gh CLI auth for the host
func ResolveToken(flagToken string, cfg *Config) (string, TokenSource, error) {
	if flagToken != "" {
		return flagToken, TokenSourceFlag, nil
	}

	if cfg != nil && cfg.GitHub.Token != "" {
		return cfg.GitHub.Token, TokenSourceConfig, nil
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, TokenSourceEnvGitHub, nil
	}

	if token := os.Getenv("GH_TOKEN"); token != "" {
		return token, TokenSourceEnvGH, nil
	}

	host := "github.com"
	if cfg != nil && cfg.GitHub.Host != "" {
		host = cfg.GitHub.Host
	}

	if token := tokenForHost(host); token != "" {
		return token, TokenSourceGHCLI, nil
	}

	return "", TokenSourceNone, ErrNoToken
}
