// Package sqlite provides a unified SQLite-based implementation of the
// vcsbridge store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database holds:
//
//   - SessionStore: session configuration
//   - ChangeGroupStore: change groups and their migration actions
//   - HighWaterMarkStore: per-session progress markers
//   - ConflictStore: conflicts and resolution rules
//   - ConversionHistoryStore: source to peer revision mapping
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Transitions
//
// Change group status updates run in a single transaction and are conditional
// on the expected current status, so a failed transition leaves every group
// in its previous status.
//
// # Data Location
//
// By default, the database is stored at ~/.vcsbridge/data/vcsbridge.db
package sqlite
