// Package auth provides token providers for authenticated repository
// connectors and a factory that picks one from a repository configuration.
package auth
