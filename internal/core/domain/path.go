package domain

import (
	"path"
	"strings"
)

// PathSeparator separates server path segments.
const PathSeparator = "/"

// RootPath is the repository root.
const RootPath = "/"

// NormalizePath returns the canonical form of a server path: rooted,
// cleaned, without a trailing separator.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", PathSeparator)
	if p == "" {
		return RootPath
	}
	if !strings.HasPrefix(p, PathSeparator) {
		p = PathSeparator + p
	}
	return path.Clean(p)
}

// IsSubItem returns true if item equals parent or lies below it.
func IsSubItem(item, parent string) bool {
	item = NormalizePath(item)
	parent = NormalizePath(parent)
	if parent == RootPath || item == parent {
		return true
	}
	return strings.HasPrefix(item, parent+PathSeparator)
}

// IsStrictSubItem returns true if item lies below parent and is not parent itself.
func IsStrictSubItem(item, parent string) bool {
	return NormalizePath(item) != NormalizePath(parent) && IsSubItem(item, parent)
}

// RebasePath moves item from oldBase onto newBase. item must lie below oldBase.
func RebasePath(item, oldBase, newBase string) string {
	item = NormalizePath(item)
	oldBase = NormalizePath(oldBase)
	newBase = NormalizePath(newBase)
	if item == oldBase {
		return newBase
	}
	rel := strings.TrimPrefix(item, oldBase)
	if oldBase == RootPath {
		rel = item
	}
	return NormalizePath(newBase + PathSeparator + strings.TrimPrefix(rel, PathSeparator))
}

// ParentPath returns the parent folder. The root is its own parent.
func ParentPath(p string) string {
	return path.Dir(NormalizePath(p))
}

// PathSegments splits a path into its segments, root first.
func PathSegments(p string) []string {
	p = NormalizePath(p)
	if p == RootPath {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, PathSeparator), PathSeparator)
}

// JoinPath joins a base path and a child name.
func JoinPath(base, name string) string {
	return NormalizePath(NormalizePath(base) + PathSeparator + name)
}
