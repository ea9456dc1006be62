package imagestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var period = time.Date(2023, 8, 28, 0, 0, 0, 0, time.UTC)

func TestSave_WritesDecodedImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads", "tmp")
	s := New(dir)

	img, err := s.Save("data:image/png;base64,aGVsbG8=", "WATER", "1234", period)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "WATER-1234-8-2023.png"), img.Path)
	assert.Equal(t, "image/png", img.MediaType)
	assert.Equal(t, ".png", filepath.Ext(img.Path))

	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSave_JPGMediaType(t *testing.T) {
	s := New(t.TempDir())

	img, err := s.Save("data:image/jpg;base64,aGVsbG8=", "GAS", "1234", period)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MediaType)
	assert.Equal(t, ".jpg", filepath.Ext(img.Path))
}

func TestSave_MissingPadding(t *testing.T) {
	s := New(t.TempDir())

	img, err := s.Save("data:image/png;base64,aGVsbG8", "WATER", "1234", period)
	require.NoError(t, err)

	data, err := os.ReadFile(img.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSave_Undecodable(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Save("data:image/png;base64,a", "WATER", "1234", period)
	assert.True(t, errors.Is(err, ErrUndecodable))

	_, err = s.Save("aGVsbG8=", "WATER", "1234", period)
	assert.True(t, errors.Is(err, ErrUndecodable))
}

func TestSave_CustomerCodeCannotEscapeDirectory(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	img, err := s.Save("data:image/png;base64,aGVsbG8=", "WATER", "../../etc", period)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(img.Path))
}

func TestDiscard(t *testing.T) {
	s := New(t.TempDir())

	img, err := s.Save("data:image/png;base64,aGVsbG8=", "WATER", "1234", period)
	require.NoError(t, err)

	require.NoError(t, s.Discard(img.Path))
	_, err = os.Stat(img.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Discarding twice is harmless
	assert.NoError(t, s.Discard(img.Path))
}
