package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"trunk/a/", "/trunk/a"},
		{`\trunk\b`, "/trunk/b"},
		{"/a/../b", "/b"},
		{"  /x  ", "/x"},
		{"//double//slash", "/double/slash"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestIsSubItem(t *testing.T) {
	assert.True(t, IsSubItem("/trunk/a/b", "/trunk/a"))
	assert.True(t, IsSubItem("/trunk/a", "/trunk/a/"))
	assert.True(t, IsSubItem("/anything", "/"))
	assert.False(t, IsSubItem("/trunk/ab", "/trunk/a"))
	assert.False(t, IsSubItem("/trunk", "/trunk/a"))
}

func TestIsStrictSubItem(t *testing.T) {
	assert.True(t, IsStrictSubItem("/a/b", "/a"))
	assert.False(t, IsStrictSubItem("/a", "/a"))
	assert.False(t, IsStrictSubItem("/b", "/a"))
}

func TestRebasePath(t *testing.T) {
	assert.Equal(t, "/branches/b/a/f.txt", RebasePath("/trunk/a/f.txt", "/trunk", "/branches/b"))
	assert.Equal(t, "/b", RebasePath("/trunk", "/trunk", "/b"))
	assert.Equal(t, "/root/x/y", RebasePath("/x/y", "/", "/root"))
}

func TestParentPathAndSegments(t *testing.T) {
	assert.Equal(t, "/a", ParentPath("/a/b"))
	assert.Equal(t, "/", ParentPath("/a"))
	assert.Equal(t, "/", ParentPath("/"))

	assert.Nil(t, PathSegments("/"))
	assert.Equal(t, []string{"a", "b"}, PathSegments("a/b/"))

	assert.Equal(t, "/a/b", JoinPath("/a", "b"))
	assert.Equal(t, "/b", JoinPath("/", "b"))
}
