package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
)

// Ensure PromptTokenProvider implements the TokenProvider interface.
var _ driven.TokenProvider = (*PromptTokenProvider)(nil)

// PromptTokenProvider asks for a token on first use and keeps it for the
// life of the process. Input is read without echo when stdin is a terminal.
type PromptTokenProvider struct {
	label string
	out   io.Writer
	read  func() (string, error)

	mu    sync.Mutex
	token string
}

// NewPromptTokenProvider creates a provider prompting on out and reading from stdin.
func NewPromptTokenProvider(label string, out io.Writer) *PromptTokenProvider {
	return &PromptTokenProvider{
		label: label,
		out:   out,
		read:  readSecret(os.Stdin),
	}
}

// GetToken prompts once and returns the cached answer afterwards.
// An empty answer yields ErrAuthRequired and the next call prompts again.
func (p *PromptTokenProvider) GetToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if p.out != nil {
		fmt.Fprintf(p.out, "Token for %s: ", p.label)
	}
	token, err := p.read()
	if p.out != nil {
		fmt.Fprintln(p.out)
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrAuthRequired
	}
	p.token = token
	return token, nil
}

// IsAuthenticated reports whether a token has already been entered.
func (p *PromptTokenProvider) IsAuthenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != ""
}

// readSecret reads one line from f, without echo when f is a terminal.
func readSecret(f *os.File) func() (string, error) {
	return func() (string, error) {
		if term.IsTerminal(int(f.Fd())) {
			secret, err := term.ReadPassword(int(f.Fd()))
			if err != nil {
				return "", err
			}
			return string(secret), nil
		}
		return readLine(f)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return line, nil
}

// CanPrompt reports whether stdin is an interactive terminal.
func CanPrompt() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
