package extract

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"a.txt",
		"b.md",
		"image.png",
		"drafts/old.txt",
		"docs/guide.pdf",
		"docs/notes.docx",
		"docs/tmp.log",
		".git/config.txt",
		"node_modules/pkg/readme.md",
	} {
		writeFile(t, root, name, []byte("x"))
	}
	writeFile(t, root, ".ragignore", []byte("# comment\ndrafts/\n*.pdf\n"))

	filter, err := NewIgnoreFilter(root, "")
	require.NoError(t, err)

	files, err := Walk(root, filter)
	require.NoError(t, err)

	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b.md"),
		filepath.Join(root, "docs/notes.docx"),
	}
	assert.Equal(t, want, files)
}

func TestWalk_WithoutIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("x"))
	writeFile(t, root, ".git/b.txt", []byte("x"))

	filter, err := NewIgnoreFilter(root, "")
	require.NoError(t, err)

	files, err := Walk(root, filter)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.txt")}, files)
}

func TestWalk_SingleFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "only.pdf", []byte("x"))

	files, err := Walk(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}
