// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - Repository: Reads history, listings and diffs from a source repository
//   - RepositoryFactory: Creates repositories from session configuration
//   - ChangeGroupStore: Change group persistence and atomic status transitions
//   - HighWaterMarkStore: Resumable progress markers
//   - ConflictStore: Conflict and resolution rule persistence
//   - ConversionHistoryStore: Source revision to peer revision mapping
//   - SessionStore: Session configuration persistence
//   - ConflictEscalation: Raises and resolves translation conflicts
//   - ConfigStore: Application configuration
//   - TokenProvider: Credentials for remote repositories
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
