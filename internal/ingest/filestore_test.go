package ingest

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), newTestLogger())
	require.NoError(t, err)
	return store
}

func dicomBytes() []byte {
	content := make([]byte, dicomMagicOffset+16)
	copy(content[dicomMagicOffset:], dicomMagic)
	return content
}

func TestLocalStore_SaveSingleFile(t *testing.T) {
	store := newTestStore(t)

	paths, err := store.Save("study-1", "slice001.dcm", bytes.NewReader(dicomBytes()))
	require.NoError(t, err)
	require.Len(t, paths, 1)

	assert.True(t, strings.HasPrefix(paths[0], store.StudyDir("study-1")))
	assert.FileExists(t, paths[0])
	assert.True(t, IsDICOMFile(paths[0]))
}

func TestLocalStore_SaveStripsDirectoryComponents(t *testing.T) {
	store := newTestStore(t)

	paths, err := store.Save("study-1", "../../etc/slice.dcm", bytes.NewReader([]byte("data")))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(store.StudyDir("study-1"), "slice.dcm"), paths[0])
}

func TestLocalStore_SaveExtractsZipArchive(t *testing.T) {
	store := newTestStore(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"series1/a.dcm", "series1/b.dcm", "notes.txt"} {
		f, err := w.Create(name)
		require.NoError(t, err)
		if strings.HasSuffix(name, ".dcm") {
			_, err = f.Write(dicomBytes())
		} else {
			_, err = f.Write([]byte("plain text"))
		}
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	paths, err := store.Save("study-1", "upload.zip", &buf)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	// The archive itself is gone, only its contents remain.
	assert.NoFileExists(t, filepath.Join(store.StudyDir("study-1"), "upload.zip"))

	dicomCount := 0
	for _, p := range paths {
		assert.FileExists(t, p)
		if IsDICOMFile(p) {
			dicomCount++
		}
	}
	assert.Equal(t, 2, dicomCount)

	listed, err := store.ListFiles("study-1")
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestLocalStore_RejectsZipSlipEntries(t *testing.T) {
	store := newTestStore(t)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../escape.dcm")
	require.NoError(t, err)
	_, err = f.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = store.Save("study-1", "evil.zip", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the study directory")
}

func TestIsDICOMFile(t *testing.T) {
	dir := t.TempDir()

	dicomPath := filepath.Join(dir, "real.dcm")
	require.NoError(t, os.WriteFile(dicomPath, dicomBytes(), 0o644))
	assert.True(t, IsDICOMFile(dicomPath))

	textPath := filepath.Join(dir, "fake.dcm")
	require.NoError(t, os.WriteFile(textPath, []byte("just text"), 0o644))
	assert.False(t, IsDICOMFile(textPath))

	assert.False(t, IsDICOMFile(filepath.Join(dir, "missing.dcm")))
}

func TestLocalStore_Release(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("study-1", "slice.dcm", bytes.NewReader(dicomBytes()))
	require.NoError(t, err)

	require.NoError(t, store.Release("study-1"))
	assert.NoDirExists(t, store.StudyDir("study-1"))

	// Releasing an unknown study is a no-op.
	require.NoError(t, store.Release("never-seen"))
}

func TestLocalStore_ListFilesUnknownStudy(t *testing.T) {
	store := newTestStore(t)

	files, err := store.ListFiles("missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}
