// Package imagestore keeps submitted meter photographs on scratch storage
// while they are handed to the recognition provider.
package imagestore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrUndecodable is returned when the data URI payload is not valid base64.
var ErrUndecodable = errors.New("image payload is not valid base64")

var dataURIPrefix = regexp.MustCompile(`^data:image/(\w+);base64,`)

// Image is a decoded photograph written to scratch storage.
type Image struct {
	Path      string
	MediaType string
}

// Store writes images under a single scratch directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Save decodes a data URI image and writes it to
// {dir}/{category}-{customerCode}-{month}-{year}.{ext} for the month of period.
func (s *Store) Save(encoded, category, customerCode string, period time.Time) (Image, error) {
	m := dataURIPrefix.FindStringSubmatch(encoded)
	if m == nil {
		return Image{}, fmt.Errorf("missing data URI prefix: %w", ErrUndecodable)
	}
	ext := strings.ToLower(m[1])

	data, err := decode(encoded[len(m[0]):])
	if err != nil {
		return Image{}, err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Image{}, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	period = period.UTC()
	name := fmt.Sprintf("%s-%s-%d-%d.%s", category, safeName(customerCode), int(period.Month()), period.Year(), ext)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Image{}, fmt.Errorf("failed to write scratch image: %w", err)
	}

	return Image{Path: path, MediaType: MediaType(ext)}, nil
}

// Discard removes a scratch image. Missing files are ignored.
func (s *Store) Discard(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove scratch image: %w", err)
	}
	return nil
}

// MediaType maps a data URI extension to its media type.
func MediaType(ext string) string {
	if ext == "jpg" {
		ext = "jpeg"
	}
	return "image/" + ext
}

func decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	// tolerate missing padding
	data, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	if rawErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return data, nil
}

// safeName keeps the file inside the scratch directory whatever the customer
// code holds.
func safeName(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(s)
}
