package rules

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxDocumentSize bounds a decompressed rulebook.
const maxDocumentSize = 64 << 20

// LoadFile reads a rulebook from disk. The encoding follows the file name: .json,
// .yaml or .yml, optionally followed by .gz or .zst.
//
// Postcondition: Returns a validated Rulebook, or an error. Unreadable files are not
// ErrInvalidRules; malformed content is.
func LoadFile(path string) (*Rulebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules: %w", err)
	}
	defer f.Close()
	rb, err := Load(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rb, nil
}

// Load reads a rulebook from r, using name only to pick the encoding.
func Load(r io.Reader, name string) (*Rulebook, error) {
	data, err := ReadDocument(r, name)
	if err != nil {
		return nil, err
	}
	if IsYAML(name) {
		return ParseYAML(data)
	}
	return Parse(data)
}

// ReadDocument returns the decompressed bytes of r.
func ReadDocument(r io.Reader, name string) ([]byte, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", ErrInvalidRules, err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrInvalidRules, err)
		}
		defer zr.Close()
		r = zr
	}
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading rules: %v", ErrInvalidRules, err)
	}
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("%w: rules document exceeds %d bytes", ErrInvalidRules, maxDocumentSize)
	}
	return data, nil
}

// IsYAML reports whether name carries a YAML extension, ignoring a compression suffix.
func IsYAML(name string) bool {
	lower := strings.ToLower(name)
	lower = strings.TrimSuffix(lower, ".gz")
	lower = strings.TrimSuffix(lower, ".zst")
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
