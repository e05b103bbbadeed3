// Package github reads the history of a GitHub repository branch through the
// REST API.
//
// # Revisions
//
// The first-parent chain of the configured branch is numbered from the root
// commit, as the git connector does for local repositories. Each revision's
// changes come from the commit's file list. Renames become a copy from the
// previous revision plus a delete. Folder adds and deletes are derived from
// the recursive trees of the commit and its first parent.
//
// # Authentication
//
// A token provider supplies a personal access token or OAuth token. Without
// one, requests are unauthenticated and limited to public repositories and
// 60 requests per hour.
//
// # Configuration
//
// Repository configuration accepts the following keys:
//
//   - repository: "owner/name" (required)
//   - branch: branch to follow. Default: the repository's default branch.
//   - api_url: REST API root for GitHub Enterprise, such as
//     https://ghe.example.com/api/v3/.
//   - id: repository identity. Default: "github:owner/name".
//
// # Rate Limiting
//
// Requests pass through a dual-strategy limiter:
//
//  1. Proactive throttling: a token bucket keeps requests near 1.2 per second.
//
//  2. Reactive handling: X-RateLimit-Remaining and X-RateLimit-Reset headers
//     are tracked. When the remaining quota runs low, requests wait for the
//     reset time.
//
// Rate limit and server errors are retried with exponential backoff.
package github
