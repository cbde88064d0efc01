package packager

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPackager() *Packager {
	return New(flate.DefaultCompression, slog.New(slog.DiscardHandler))
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func TestPackager_SkipsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "a"), "0123456789")
	writeFile(t, filepath.Join(root, "alice", "b"), "")

	dest := filepath.Join(t.TempDir(), "out.zip")
	res, err := newTestPackager().Package(root, "alice", dest)
	require.NoError(t, err)

	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, dest, res.Path)

	entries := readArchive(t, dest)
	require.Len(t, entries, 1)
	assert.Equal(t, "0123456789", entries["alice/a"])
}

func TestPackager_RecursiveRelativeNames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "images", "1.jpg"), "img1")
	writeFile(t, filepath.Join(root, "alice", "images", "nested", "2.jpg"), "img2")
	writeFile(t, filepath.Join(root, "alice", "journal", "post.txt"), "text")
	writeFile(t, filepath.Join(root, "bob", "other.jpg"), "not alice")

	dest := filepath.Join(t.TempDir(), "out.zip")
	res, err := newTestPackager().Package(root, "alice", dest)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FileCount)
	assert.Positive(t, res.Bytes)

	entries := readArchive(t, dest)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"alice/images/1.jpg",
		"alice/images/nested/2.jpg",
		"alice/journal/post.txt",
	}, names)
}

func TestPackager_MissingSubdirYieldsEmptyArchive(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(t.TempDir(), "nested", "out.zip")

	res, err := newTestPackager().Package(root, "ghost", dest)
	require.NoError(t, err)
	assert.Zero(t, res.FileCount)

	// still a valid, readable zip
	assert.Empty(t, readArchive(t, dest))
}

func TestPackager_CompressesLargeFiles(t *testing.T) {
	root := t.TempDir()
	content := strings.Repeat("compressible ", 10000)
	writeFile(t, filepath.Join(root, "alice", "big.txt"), content)

	dest := filepath.Join(t.TempDir(), "out.zip")
	res, err := New(flate.BestCompression, slog.New(slog.DiscardHandler)).Package(root, "alice", dest)
	require.NoError(t, err)
	assert.Less(t, res.Bytes, int64(len(content)))
	assert.Equal(t, content, readArchive(t, dest)["alice/big.txt"])
}

func TestPackager_NoTempFilesLeft(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "a"), "x")
	outDir := t.TempDir()

	_, err := newTestPackager().Package(root, "alice", filepath.Join(outDir, "out.zip"))
	require.NoError(t, err)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.zip", entries[0].Name())
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	p := New(42, slog.New(slog.DiscardHandler))
	assert.Equal(t, flate.DefaultCompression, p.level)
}
