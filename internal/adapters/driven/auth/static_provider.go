package auth

import (
	"context"
	"os"
	"strings"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

var (
	_ driven.TokenProvider = (*StaticTokenProvider)(nil)
	_ driven.TokenProvider = (*EnvTokenProvider)(nil)
)

// StaticTokenProvider returns a fixed personal access token.
type StaticTokenProvider struct {
	token string
}

// NewStaticTokenProvider creates a provider for a token taken from session configuration.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: strings.TrimSpace(token)}
}

// GetToken returns the token, or ErrAuthRequired when it is blank.
func (p *StaticTokenProvider) GetToken(_ context.Context) (string, error) {
	if p.token == "" {
		return "", domain.ErrAuthRequired
	}
	return p.token, nil
}

// IsAuthenticated reports whether a token is set.
func (p *StaticTokenProvider) IsAuthenticated() bool {
	return p.token != ""
}

// EnvTokenProvider reads a token from an environment variable on every call,
// so a rotated token is picked up without reconfiguring the session.
type EnvTokenProvider struct {
	name   string
	lookup func(string) (string, bool)
}

// NewEnvTokenProvider creates a provider reading the named variable.
func NewEnvTokenProvider(name string) *EnvTokenProvider {
	return &EnvTokenProvider{name: name, lookup: os.LookupEnv}
}

// Name returns the environment variable name.
func (p *EnvTokenProvider) Name() string {
	return p.name
}

// GetToken returns the variable's value, or ErrAuthRequired when it is unset or blank.
func (p *EnvTokenProvider) GetToken(_ context.Context) (string, error) {
	token := p.value()
	if token == "" {
		return "", domain.ErrAuthRequired
	}
	return token, nil
}

// IsAuthenticated reports whether the variable holds a token.
func (p *EnvTokenProvider) IsAuthenticated() bool {
	return p.value() != ""
}

func (p *EnvTokenProvider) value() string {
	v, ok := p.lookup(p.name)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
