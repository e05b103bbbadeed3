package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// Type is the repository type served by this package.
const Type = "git"

// Configuration keys.
const (
	ConfigPath = "path"
	ConfigRef  = "ref"
	ConfigID   = "id"
)

// DefaultRef is the ref followed when none is configured.
const DefaultRef = "HEAD"

// Config holds the parsed configuration of a git session.
type Config struct {
	// Path is the working tree or bare repository directory.
	Path string

	// Ref is the branch, tag or ref whose first-parent chain is numbered.
	Ref string

	// ID is the repository identity. Defaults to "git:" plus the absolute path.
	ID string
}

// ParseConfig parses a repository config map.
func ParseConfig(cfg domain.RepositoryConfig) (*Config, error) {
	path := cfg.Config[ConfigPath]
	if path == "" {
		return nil, fmt.Errorf("%w: git repository needs %q", domain.ErrInvalidInput, ConfigPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: git path %s: %v", domain.ErrInvalidInput, path, err)
	}

	c := &Config{Path: abs, Ref: cfg.Config[ConfigRef], ID: cfg.Config[ConfigID]}
	if c.Ref == "" {
		c.Ref = DefaultRef
	}
	if c.ID == "" {
		c.ID = "git:" + abs
	}
	return c, nil
}

// WatchPaths returns the directories whose changes signal new commits:
// the git directory and its branch heads.
func WatchPaths(cfg domain.RepositoryConfig) ([]string, error) {
	c, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}
	gitDir := c.Path
	if info, err := os.Stat(filepath.Join(c.Path, ".git")); err == nil && info.IsDir() {
		gitDir = filepath.Join(c.Path, ".git")
	}
	return []string{gitDir, filepath.Join(gitDir, "refs", "heads")}, nil
}
