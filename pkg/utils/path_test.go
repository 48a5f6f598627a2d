package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"C:\a\b"`, `C:\a\b`},
		{`  'output/x'  `, "output/x"},
		{` " spaced " `, "spaced"},
		{"", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizePath(tt.in), "input %q", tt.in)
	}
}

func TestHasTraversal(t *testing.T) {
	assert.True(t, HasTraversal("../etc"))
	assert.True(t, HasTraversal(`C:\a\..\b`))
	assert.True(t, HasTraversal("a/b/.."))
	assert.False(t, HasTraversal("a/..b/c"))
	assert.False(t, HasTraversal("output"))
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, IsAbsolute("/etc/passwd"))
	assert.True(t, IsAbsolute(`C:\Windows`))
	assert.True(t, IsAbsolute(`\\server\share`))
	assert.False(t, IsAbsolute("src/main.go"))
	assert.False(t, IsAbsolute("c"))
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "b", LastSegment(`C:\a\b`))
	assert.Equal(t, "proj", LastSegment("out/proj/"))
	assert.Equal(t, "", LastSegment(""))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "My_Todo_App", Slugify("My Todo-App"))
	assert.Equal(t, "abc", Slugify(`a/b\c:`))
	assert.Equal(t, "notes_v2", Slugify(" notes v2 "))
	assert.Equal(t, "", Slugify(`/:*?`))
}
