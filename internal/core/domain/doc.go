// Package domain defines the core business entities for vcsbridge.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ChangeSet / Change: primitive history read from a source repository
//   - MigrationAction: a provider-neutral translated operation
//   - ChangeGroup: the persisted unit of pipeline progress
//   - HighWaterMark: resumable progress markers
//   - Conflict: structural problems raised during translation
//   - Session: a configured source/target pairing
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
