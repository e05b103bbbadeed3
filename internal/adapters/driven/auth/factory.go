package auth

import (
	"context"
	"io"
	"strings"

	"github.com/custodia-labs/vcsbridge/internal/connectors"
	"github.com/custodia-labs/vcsbridge/internal/connectors/github"
	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Repository configuration keys read by the factory.
const (
	ConfigToken    = "token"
	ConfigTokenEnv = "token_env"
)

// DefaultTokenEnv is consulted for GitHub repositories without explicit credentials.
const DefaultTokenEnv = "GITHUB_TOKEN"

// Ensure CreateTokenProvider satisfies the connector factory hook.
var _ connectors.TokenProviderFunc = (*Factory)(nil).CreateTokenProvider

// Factory selects a TokenProvider for a repository configuration.
type Factory struct {
	prompt    bool
	promptOut io.Writer
	lookupEnv func(string) (string, bool)
}

// Option configures a Factory.
type Option func(*Factory)

// WithPrompt enables interactive prompting, written to out, when no token
// is configured or found in the environment.
func WithPrompt(out io.Writer) Option {
	return func(f *Factory) {
		f.prompt = true
		f.promptOut = out
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(f *Factory) {
		f.lookupEnv = lookup
	}
}

// NewFactory creates a token provider factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateTokenProvider resolves credentials in order: an inline token, the
// variable named by token_env, GITHUB_TOKEN for GitHub repositories, then a
// prompt if enabled. Repositories with none of these get anonymous access.
func (f *Factory) CreateTokenProvider(_ context.Context, cfg domain.RepositoryConfig) (driven.TokenProvider, error) {
	if token := strings.TrimSpace(cfg.Config[ConfigToken]); token != "" {
		return NewStaticTokenProvider(token), nil
	}

	envName := strings.TrimSpace(cfg.Config[ConfigTokenEnv])
	if envName != "" {
		// An explicitly named variable is a requirement, not a hint.
		return f.envProvider(envName), nil
	}

	if cfg.Type != github.Type {
		return NewNullTokenProvider(), nil
	}

	if env := f.envProvider(DefaultTokenEnv); env.IsAuthenticated() {
		return env, nil
	}
	if f.prompt {
		p := NewPromptTokenProvider(promptLabel(cfg), f.promptOut)
		return p, nil
	}
	return NewNullTokenProvider(), nil
}

func (f *Factory) envProvider(name string) *EnvTokenProvider {
	p := NewEnvTokenProvider(name)
	if f.lookupEnv != nil {
		p.lookup = f.lookupEnv
	}
	return p
}

func promptLabel(cfg domain.RepositoryConfig) string {
	if repo := cfg.Config[github.ConfigRepository]; repo != "" {
		return repo
	}
	return cfg.Type
}
