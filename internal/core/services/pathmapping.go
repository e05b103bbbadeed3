package services

import (
	"sort"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

// PathMapping answers mapped and cloaked path queries for one session.
// It is consulted for every change the translator sees.
type PathMapping struct {
	mapped   []string
	cloaked  []string
	pageSize int
}

// NewPathMapping builds a PathMapping from a session's configuration.
func NewPathMapping(session *domain.Session) *PathMapping {
	return &PathMapping{
		mapped:   normalizePaths(session.MappedPaths),
		cloaked:  normalizePaths(session.CloakedPaths),
		pageSize: session.EffectivePageSize(),
	}
}

func normalizePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = domain.NormalizePath(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// MappedServerPaths returns the configured mapped paths, normalised and sorted.
func (m *PathMapping) MappedServerPaths() []string {
	return append([]string(nil), m.mapped...)
}

// CloakedServerPaths returns the configured cloaked paths, normalised and sorted.
func (m *PathMapping) CloakedServerPaths() []string {
	return append([]string(nil), m.cloaked...)
}

// ChangesetCacheSize returns the history page size.
func (m *PathMapping) ChangesetCacheSize() int {
	return m.pageSize
}

// IsMapped returns true if p lies at or below a mapped path and is not cloaked.
func (m *PathMapping) IsMapped(p string) bool {
	if m.IsCloaked(p) {
		return false
	}
	for _, mapped := range m.mapped {
		if domain.IsSubItem(p, mapped) {
			return true
		}
	}
	return false
}

// IsCloaked returns true if p lies at or below a cloaked path.
func (m *PathMapping) IsCloaked(p string) bool {
	for _, cloaked := range m.cloaked {
		if domain.IsSubItem(p, cloaked) {
			return true
		}
	}
	return false
}

// MappedDescendants returns the mapped paths lying strictly below p.
func (m *PathMapping) MappedDescendants(p string) []string {
	var out []string
	for _, mapped := range m.mapped {
		if domain.IsStrictSubItem(mapped, p) {
			out = append(out, mapped)
		}
	}
	return out
}

// CommonRoot returns the deepest folder containing every mapped path.
func (m *PathMapping) CommonRoot() string {
	if len(m.mapped) == 0 {
		return domain.RootPath
	}
	common := domain.PathSegments(m.mapped[0])
	for _, p := range m.mapped[1:] {
		segs := domain.PathSegments(p)
		n := 0
		for n < len(common) && n < len(segs) && common[n] == segs[n] {
			n++
		}
		common = common[:n]
	}
	root := domain.RootPath
	for _, seg := range common {
		root = domain.JoinPath(root, seg)
	}
	return root
}
