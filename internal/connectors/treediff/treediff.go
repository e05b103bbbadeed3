// Package treediff turns file-level commit diffs into change-sets.
//
// Git based hosts report changed files only. Folder adds and deletes are
// derived from the folder sets of the trees before and after the commit.
package treediff

import (
	"sort"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// FileChange is one changed file as reported by a git host.
type FileChange struct {
	// Kind is Add, Modify, Delete or Copy.
	Kind domain.ChangeKind

	// Path is the server path after the commit.
	Path string

	// From is the source path of a copy or rename.
	From string

	// Rename is set when From no longer exists after the commit.
	Rename bool
}

// Changes builds the changes of revision rev. Folder adds come first,
// parents before children, then file changes in input order, then the
// top-most removed folders. Deletes of files below a removed folder are
// dropped unless the file was renamed.
func Changes(rev domain.Revision, files []FileChange, oldDirs, newDirs map[string]bool) []domain.Change {
	var added, removed []string
	for d := range newDirs {
		if !oldDirs[d] {
			added = append(added, d)
		}
	}
	for d := range oldDirs {
		if !newDirs[d] && !removedAncestor(d, oldDirs, newDirs) {
			removed = append(removed, d)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	out := make([]domain.Change, 0, len(added)+len(files)+len(removed))
	for _, d := range added {
		out = append(out, folderChange(d, domain.ChangeAdd, rev))
	}

	var deletes []domain.Change
	renamed := make(map[string]bool)
	for _, f := range files {
		switch f.Kind {
		case domain.ChangeDelete:
			deletes = append(deletes, fileChange(f.Path, domain.ChangeDelete, rev))
		case domain.ChangeCopy:
			c := fileChange(f.Path, domain.ChangeCopy, rev)
			c.CopyFromPath = domain.NormalizePath(f.From)
			c.CopyFromRevision = rev - 1
			out = append(out, c)
			if f.Rename {
				deletes = append(deletes, fileChange(f.From, domain.ChangeDelete, rev))
				renamed[c.CopyFromPath] = true
			}
		default:
			out = append(out, fileChange(f.Path, f.Kind, rev))
		}
	}

	for _, d := range deletes {
		if renamed[d.Path] || !underAny(d.Path, removed) {
			out = append(out, d)
		}
	}
	for _, d := range removed {
		out = append(out, folderChange(d, domain.ChangeDelete, rev))
	}
	return out
}

func fileChange(path string, kind domain.ChangeKind, rev domain.Revision) domain.Change {
	return domain.Change{Path: domain.NormalizePath(path), ItemType: domain.ItemFile, Kind: kind, Revision: rev}
}

func folderChange(path string, kind domain.ChangeKind, rev domain.Revision) domain.Change {
	return domain.Change{Path: path, ItemType: domain.ItemFolder, Kind: kind, Revision: rev}
}

// removedAncestor reports whether a folder above d was removed too.
func removedAncestor(d string, oldDirs, newDirs map[string]bool) bool {
	for p := domain.ParentPath(d); p != domain.RootPath; p = domain.ParentPath(p) {
		if oldDirs[p] && !newDirs[p] {
			return true
		}
	}
	return false
}

func underAny(p string, folders []string) bool {
	for _, f := range folders {
		if domain.IsStrictSubItem(p, f) {
			return true
		}
	}
	return false
}

// Touches reports whether a change-set affects path, at, below or above it.
func Touches(cs *domain.ChangeSet, path string) bool {
	for _, c := range cs.Changes {
		if domain.IsSubItem(c.Path, path) || domain.IsSubItem(path, c.Path) {
			return true
		}
	}
	return false
}

// Summary copies a change-set, keeping the changes only if includeDetails is set.
func Summary(cs *domain.ChangeSet, includeDetails bool) *domain.ChangeSet {
	out := *cs
	out.Changes = nil
	if includeDetails {
		out.Changes = append([]domain.Change(nil), cs.Changes...)
	}
	return &out
}
