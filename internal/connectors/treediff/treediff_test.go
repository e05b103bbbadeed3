package treediff

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func set(paths ...string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}

func describe(changes []domain.Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		s := fmt.Sprintf("%s %s %s", c.Kind, c.ItemType, c.Path)
		if c.HasCopySource() {
			s += fmt.Sprintf(" from %s@%d", c.CopyFromPath, c.CopyFromRevision)
		}
		out = append(out, s)
	}
	return out
}

func TestChanges(t *testing.T) {
	tests := []struct {
		name    string
		files   []FileChange
		oldDirs map[string]bool
		newDirs map[string]bool
		want    []string
	}{
		{
			name:    "nested folder add",
			files:   []FileChange{{Kind: domain.ChangeAdd, Path: "c/d/e.txt"}},
			oldDirs: set(),
			newDirs: set("/c", "/c/d"),
			want:    []string{"add folder /c", "add folder /c/d", "add file /c/d/e.txt"},
		},
		{
			name:    "modify",
			files:   []FileChange{{Kind: domain.ChangeModify, Path: "a/x.txt"}},
			oldDirs: set("/a"),
			newDirs: set("/a"),
			want:    []string{"modify file /a/x.txt"},
		},
		{
			name:    "folder delete keeps only the top folder",
			files:   []FileChange{{Kind: domain.ChangeDelete, Path: "a/b/x"}, {Kind: domain.ChangeDelete, Path: "a/y"}},
			oldDirs: set("/a", "/a/b"),
			newDirs: set(),
			want:    []string{"delete folder /a"},
		},
		{
			name:    "rename out of a removed folder",
			files:   []FileChange{{Kind: domain.ChangeCopy, Path: "b/y", From: "a/y", Rename: true}},
			oldDirs: set("/a"),
			newDirs: set("/b"),
			want: []string{
				"add folder /b",
				"copy file /b/y from /a/y@6",
				"delete file /a/y",
				"delete folder /a",
			},
		},
		{
			name:    "copy keeps the source",
			files:   []FileChange{{Kind: domain.ChangeCopy, Path: "a/z", From: "a/y"}},
			oldDirs: set("/a"),
			newDirs: set("/a"),
			want:    []string{"copy file /a/z from /a/y@6"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(Changes(7, tt.files, tt.oldDirs, tt.newDirs)))
		})
	}
}

func TestTouchesAndSummary(t *testing.T) {
	cs := &domain.ChangeSet{Revision: 3, Changes: []domain.Change{{Path: "/a/b", Kind: domain.ChangeAdd}}}

	assert.True(t, Touches(cs, "/a"))
	assert.True(t, Touches(cs, "/a/b/c"))
	assert.True(t, Touches(cs, "/"))
	assert.False(t, Touches(cs, "/a/bc"))

	s := Summary(cs, false)
	assert.Nil(t, s.Changes)
	assert.Equal(t, domain.Revision(3), s.Revision)

	s = Summary(cs, true)
	s.Changes[0].Path = "/changed"
	assert.Equal(t, "/a/b", cs.Changes[0].Path)
}
