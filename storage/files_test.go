package storage

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, maxSize int64) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), maxSize, zap.NewNop())
	require.NoError(t, err)
	return store
}

func uploadHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("publicationPdf", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	return req.MultipartForm.File["publicationPdf"][0]
}

func TestSaveUploadStoresPDF(t *testing.T) {
	store := newTestStore(t, 1<<20)
	fh := uploadHeader(t, "paper.pdf", []byte("%PDF-1.7 dummy content"))

	rel, err := store.SaveUpload(fh)
	require.NoError(t, err)
	assert.True(t, filepath.Ext(rel) == ".pdf")

	data, err := os.ReadFile(filepath.Join(store.Root, rel))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 dummy content"), data)
}

func TestSaveUploadGeneratesUniqueNames(t *testing.T) {
	store := newTestStore(t, 1<<20)

	first, err := store.SaveUpload(uploadHeader(t, "a.pdf", []byte("%PDF-1")))
	require.NoError(t, err)
	second, err := store.SaveUpload(uploadHeader(t, "a.pdf", []byte("%PDF-2")))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSaveUploadRejectsOversized(t *testing.T) {
	store := newTestStore(t, 8)
	fh := uploadHeader(t, "paper.pdf", []byte("%PDF-1.7 far too large"))

	_, err := store.SaveUpload(fh)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(store.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveUploadRejectsWrongExtension(t *testing.T) {
	store := newTestStore(t, 1<<20)
	fh := uploadHeader(t, "paper.txt", []byte("%PDF-1.7"))

	_, err := store.SaveUpload(fh)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestSaveUploadRejectsWrongMagic(t *testing.T) {
	store := newTestStore(t, 1<<20)
	fh := uploadHeader(t, "paper.pdf", []byte("GIF89a not a pdf"))

	_, err := store.SaveUpload(fh)
	assert.ErrorIs(t, err, ErrNotPDF)

	entries, err := os.ReadDir(store.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveRefusesPathOutsideRoot(t *testing.T) {
	store := newTestStore(t, 1<<20)

	outside := filepath.Join(filepath.Dir(store.Root), "victim.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))

	err := store.Remove("../victim.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = os.Stat(outside)
	assert.NoError(t, err)
}

func TestRemoveMissingFileIsNoError(t *testing.T) {
	store := newTestStore(t, 1<<20)
	assert.NoError(t, store.Remove("does-not-exist.pdf"))
}

func TestSweepRemovesUnreferencedFiles(t *testing.T) {
	store := newTestStore(t, 1<<20)

	kept, err := store.SaveUpload(uploadHeader(t, "a.pdf", []byte("%PDF-keep")))
	require.NoError(t, err)
	orphan, err := store.SaveUpload(uploadHeader(t, "b.pdf", []byte("%PDF-orphan")))
	require.NoError(t, err)

	removed, err := store.Sweep(map[string]struct{}{kept: {}})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(store.Root, kept))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(store.Root, orphan))
	assert.True(t, os.IsNotExist(err))
}
