package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/vcsbridge/internal/core/domain"
)

func TestPathMapping_Queries(t *testing.T) {
	m := NewPathMapping(&domain.Session{
		MappedPaths:  []string{"/p", "/q/sub", "p/"},
		CloakedPaths: []string{"/p/secret"},
	})

	assert.Equal(t, []string{"/p", "/q/sub"}, m.MappedServerPaths())
	assert.Equal(t, []string{"/p/secret"}, m.CloakedServerPaths())
	assert.Equal(t, domain.DefaultPageSize, m.ChangesetCacheSize())

	tests := []struct {
		path    string
		mapped  bool
		cloaked bool
	}{
		{"/p", true, false},
		{"/p/a/b.txt", true, false},
		{"/p/secret", false, true},
		{"/p/secret/key", false, true},
		{"/pp/file", false, false},
		{"/q", false, false},
		{"/q/sub/x", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.mapped, m.IsMapped(tt.path))
			assert.Equal(t, tt.cloaked, m.IsCloaked(tt.path))
		})
	}
}

func TestPathMapping_MappedDescendants(t *testing.T) {
	m := NewPathMapping(&domain.Session{MappedPaths: []string{"/trunk/app", "/trunk/lib", "/other"}, PageSize: 7})

	assert.Equal(t, []string{"/trunk/app", "/trunk/lib"}, m.MappedDescendants("/trunk"))
	assert.Equal(t, []string{"/other", "/trunk/app", "/trunk/lib"}, m.MappedDescendants("/"))
	assert.Empty(t, m.MappedDescendants("/trunk/app"))
	assert.Equal(t, 7, m.ChangesetCacheSize())
}

func TestPathMapping_CommonRoot(t *testing.T) {
	tests := []struct {
		mapped []string
		want   string
	}{
		{[]string{"/trunk/app"}, "/trunk/app"},
		{[]string{"/trunk/app", "/trunk/lib"}, "/trunk"},
		{[]string{"/trunk/app", "/branches/x"}, "/"},
		{[]string{"/trunk/app", "/trunk/application"}, "/trunk"},
		{nil, "/"},
	}
	for _, tt := range tests {
		m := NewPathMapping(&domain.Session{MappedPaths: tt.mapped})
		assert.Equal(t, tt.want, m.CommonRoot(), "mapped %v", tt.mapped)
	}
}
