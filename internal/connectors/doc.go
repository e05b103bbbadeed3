// Package connectors provides implementations of the Repository interface
// for the version-control systems vcsbridge reads history from. Each
// connector knows how to page through the history of a specific repository
// type (git, GitHub, in-memory).
//
// Connectors are registered with the Factory at startup.
package connectors
