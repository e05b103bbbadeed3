package github

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// Type is the repository type served by this package.
const Type = "github"

// Configuration keys.
const (
	ConfigRepository = "repository"
	ConfigBranch     = "branch"
	ConfigAPIURL     = "api_url"
	ConfigID         = "id"
)

// Config holds the parsed configuration of a GitHub session.
type Config struct {
	// Owner is the user or organisation owning the repository.
	Owner string

	// Repo is the repository name.
	Repo string

	// Branch is the followed branch. Empty means the default branch.
	Branch string

	// APIURL overrides the REST API root.
	APIURL *url.URL

	// ID is the repository identity.
	ID string
}

// ParseConfig parses a repository config map into a Config struct.
func ParseConfig(cfg domain.RepositoryConfig) (*Config, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(cfg.Config[ConfigRepository]), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: github %s must be owner/name, got %q",
			domain.ErrInvalidInput, ConfigRepository, cfg.Config[ConfigRepository])
	}

	c := &Config{
		Owner:  owner,
		Repo:   strings.TrimSuffix(repo, ".git"),
		Branch: cfg.Config[ConfigBranch],
		ID:     cfg.Config[ConfigID],
	}
	if c.ID == "" {
		c.ID = "github:" + c.Owner + "/" + c.Repo
	}

	if raw := cfg.Config[ConfigAPIURL]; raw != "" {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: github %s %q", domain.ErrInvalidInput, ConfigAPIURL, raw)
		}
		c.APIURL = u
	}
	return c, nil
}
