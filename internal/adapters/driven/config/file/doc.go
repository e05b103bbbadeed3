// Package file provides the TOML-backed configuration store for vcsbridge.
//
// Keys are addressed with dot notation ("analysis.page_size") and written
// back to disk as nested tables.
package file
