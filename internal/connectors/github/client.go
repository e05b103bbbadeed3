package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/vcsbridge/internal/core/ports/driven"
	"github.com/custodia-labs/vcsbridge/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second

	// pageSize is the number of items requested per page.
	pageSize = 100
)

// Client wraps the go-github client with rate limiting and retries.
type Client struct {
	mu            sync.Mutex
	gh            *gh.Client
	tokenProvider driven.TokenProvider
	rateLimiter   *RateLimiter
	cfg           *Config
	retryDelay    time.Duration
}

// NewClient creates a GitHub API client. tokenProvider may be nil for
// unauthenticated access.
func NewClient(cfg *Config, tokenProvider driven.TokenProvider) *Client {
	return &Client{
		tokenProvider: tokenProvider,
		rateLimiter:   NewRateLimiter(),
		cfg:           cfg,
		retryDelay:    RetryDelay,
	}
}

// ensureClient initializes the go-github client if not already done.
// This is called lazily so we can get the token when needed.
func (c *Client) ensureClient(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gh != nil {
		return nil
	}

	httpClient := &http.Client{Timeout: DefaultTimeout}
	if c.tokenProvider != nil {
		token, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		if token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
			httpClient = oauth2.NewClient(ctx, ts)
			httpClient.Timeout = DefaultTimeout
		}
	}

	client := gh.NewClient(httpClient)
	if c.cfg.APIURL != nil {
		client.BaseURL = c.cfg.APIURL
	}
	c.gh = client
	return nil
}

// call runs one API request with rate limiting. Rate limit and server
// errors are retried with exponential backoff.
func (c *Client) call(ctx context.Context, operation string, fn func(*gh.Client) (*gh.Response, error)) error {
	if err := c.ensureClient(ctx); err != nil {
		return err
	}

	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := fn(c.gh)
		c.updateRateLimitFromResponse(resp)
		if err == nil {
			return nil
		}

		wrapped := c.wrapError(err, resp, operation)
		if attempt >= MaxRetries || !(IsRateLimited(wrapped) || IsServerError(wrapped)) {
			return wrapped
		}

		wait := delay
		var rlErr *RateLimitError
		if errors.As(wrapped, &rlErr) && time.Until(rlErr.ResetAt) > wait {
			wait = time.Until(rlErr.ResetAt)
		}
		logger.Warn("github: %s failed (attempt %d/%d), retrying in %s: %v",
			operation, attempt+1, MaxRetries+1, wait.Round(time.Millisecond), wrapped)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		delay *= 2
	}
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context) (string, error) {
	var repository *gh.Repository
	err := c.call(ctx, "get repo", func(client *gh.Client) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		repository, resp, err = client.Repositories.Get(ctx, c.cfg.Owner, c.cfg.Repo)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return "", fmt.Errorf("%w: %s/%s: %w", ErrRepoNotFound, c.cfg.Owner, c.cfg.Repo, err)
		}
		return "", err
	}
	return repository.GetDefaultBranch(), nil
}

// BranchHead returns the commit SHA a branch points at.
func (c *Client) BranchHead(ctx context.Context, branch string) (string, error) {
	var b *gh.Branch
	err := c.call(ctx, "get branch", func(client *gh.Client) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		b, resp, err = client.Repositories.GetBranch(ctx, c.cfg.Owner, c.cfg.Repo, branch, 1)
		return resp, err
	})
	if err != nil {
		if IsNotFound(err) {
			return "", fmt.Errorf("%w: %s: %w", ErrBranchNotFound, branch, err)
		}
		return "", err
	}
	return b.GetCommit().GetSHA(), nil
}

// ListCommits pages through the commits reachable from sha, newest first,
// until stop returns true for a commit or the history ends.
func (c *Client) ListCommits(
	ctx context.Context, sha string, stop func(*gh.RepositoryCommit) bool,
) ([]*gh.RepositoryCommit, error) {
	opts := &gh.CommitsListOptions{SHA: sha, ListOptions: gh.ListOptions{PerPage: pageSize}}
	var all []*gh.RepositoryCommit

	for {
		var page []*gh.RepositoryCommit
		var next int
		err := c.call(ctx, "list commits", func(client *gh.Client) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = client.Repositories.ListCommits(ctx, c.cfg.Owner, c.cfg.Repo, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, commit := range page {
			all = append(all, commit)
			if stop != nil && stop(commit) {
				return all, nil
			}
		}
		if next == 0 {
			return all, nil
		}
		opts.Page = next
	}
}

// GetCommit fetches a commit with all of its changed files.
func (c *Client) GetCommit(ctx context.Context, sha string) (*gh.RepositoryCommit, error) {
	opts := &gh.ListOptions{PerPage: pageSize}
	var commit *gh.RepositoryCommit

	for {
		var page *gh.RepositoryCommit
		var next int
		err := c.call(ctx, "get commit", func(client *gh.Client) (*gh.Response, error) {
			var resp *gh.Response
			var err error
			page, resp, err = client.Repositories.GetCommit(ctx, c.cfg.Owner, c.cfg.Repo, sha, opts)
			if resp != nil {
				next = resp.NextPage
			}
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		if commit == nil {
			commit = page
		} else {
			commit.Files = append(commit.Files, page.Files...)
		}
		if next == 0 {
			return commit, nil
		}
		opts.Page = next
	}
}

// GetTree fetches the entire tree for a tree SHA recursively.
func (c *Client) GetTree(ctx context.Context, sha string) (*gh.Tree, error) {
	var tree *gh.Tree
	err := c.call(ctx, "get tree", func(client *gh.Client) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		tree, resp, err = client.Git.GetTree(ctx, c.cfg.Owner, c.cfg.Repo, sha, true)
		return resp, err
	})
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		return nil, fmt.Errorf("%w: %s", ErrTreeTruncated, sha)
	}
	return tree, nil
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, resp *gh.Response, operation string) error {
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		resetAt := time.Now().Add(c.retryDelay)
		if abuseErr.RetryAfter != nil {
			resetAt = time.Now().Add(*abuseErr.RetryAfter)
		}
		return &RateLimitError{ResetAt: resetAt, Remaining: c.rateLimiter.Remaining(), Limit: c.rateLimiter.Limit()}
	}

	if resp != nil && resp.Response != nil {
		if rlErr := c.rateLimiter.CheckRateLimit(resp.Response); rlErr != nil {
			return rlErr
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}
