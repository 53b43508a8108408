package assets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuetz/MySoulmate-sub000/internal/testhelpers"
)

func TestNewFileStore_MissingConfig(t *testing.T) {
	_, err := NewFileStore("", "https://cdn.example.com", testhelpers.NewTestLogger())
	assert.Error(t, err)

	_, err = NewFileStore(t.TempDir(), "", testhelpers.NewTestLogger())
	assert.Error(t, err)
}

func TestSaveImage_WritesFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "https://cdn.example.com/images/", testhelpers.NewTestLogger())
	require.NoError(t, err)

	url, err := fs.SaveImage([]byte("fake-png-bytes"), "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	fileName := strings.TrimPrefix(url, "https://cdn.example.com/images/")
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png-bytes"), data)
}

func TestSaveImage_EmptyData(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "https://cdn.example.com", testhelpers.NewTestLogger())
	require.NoError(t, err)

	_, err = fs.SaveImage(nil, "image/png")
	assert.ErrorIs(t, err, ErrSaveFailed)
}

func TestSaveImage_ExtensionByMIME(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "https://cdn.example.com", testhelpers.NewTestLogger())
	require.NoError(t, err)

	tests := []struct {
		mime string
		ext  string
	}{
		{"image/jpeg", ".jpg"},
		{"image/webp", ".webp"},
		{"image/gif", ".gif"},
		{"image/png", ".png"},
		{"application/octet-stream", ".png"},
	}

	for _, tt := range tests {
		url, err := fs.SaveImage([]byte("data"), tt.mime)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(url, tt.ext), "mime %s -> %s", tt.mime, url)
	}
}

func TestSaveImage_UniqueNames(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "https://cdn.example.com", testhelpers.NewTestLogger())
	require.NoError(t, err)

	first, err := fs.SaveImage([]byte("a"), "image/png")
	require.NoError(t, err)
	second, err := fs.SaveImage([]byte("b"), "image/png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
