// Package bundle reads a ZIP archive holding the three dataset files and
// works out which entry is which.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kosarica/analytics-service/internal/types"
)

// ErrTooLarge is returned when an entry or the whole archive exceeds a limit
var ErrTooLarge = errors.New("archive exceeds size limit")

// ExpandOptions contains options for ZIP expansion
type ExpandOptions struct {
	// MaxFileSize is the maximum size for a single file in bytes (0 = unlimited)
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// MaxTotalSize is the maximum total size for all extracted files (0 = unlimited)
	MaxTotalSize int64 `mapstructure:"max_total_size"`
	// MaxFiles is the maximum number of files to extract (0 = unlimited)
	MaxFiles int `mapstructure:"max_files"`
	// SkipPatterns contains patterns to skip (e.g., "__MACOSX")
	SkipPatterns []string `mapstructure:"skip_patterns"`
}

// DefaultExpandOptions returns default options for ZIP expansion
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{
		MaxFileSize:  512 * 1024 * 1024, // 512MB per file
		MaxTotalSize: 1024 * 1024 * 1024,
		MaxFiles:     100,
		SkipPatterns: []string{
			"__MACOSX",
			".DS_Store",
			"Thumbs.db",
			"desktop.ini",
		},
	}
}

// Entry is a data file extracted from a bundle
type Entry struct {
	Name    string
	Format  types.FileFormat
	Content []byte
	Hash    string
}

// Expander extracts data files from ZIP archives
type Expander struct {
	options ExpandOptions
}

// NewExpander creates a new ZIP expander
func NewExpander(options ExpandOptions) *Expander {
	return &Expander{options: options}
}

// Expand extracts CSV and XLSX entries in memory. Directories, system files,
// other extensions and entries with unsafe paths are skipped.
func (e *Expander) Expand(ctx context.Context, content []byte) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP: %w", err)
	}

	var entries []Entry
	var totalSize int64

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if file.FileInfo().IsDir() {
			continue
		}

		safeName, err := sanitizeFilename(file.Name)
		if err != nil {
			log.Debug().Str("entry", file.Name).Err(err).Msg("Skipping unsafe ZIP entry")
			continue
		}
		if e.shouldSkip(file.Name) {
			continue
		}
		format, ok := types.DetectFormat(safeName)
		if !ok || (format != types.FormatCSV && format != types.FormatXLSX) {
			continue
		}

		if e.options.MaxFiles > 0 && len(entries) >= e.options.MaxFiles {
			return nil, fmt.Errorf("too many files in archive (limit: %d)", e.options.MaxFiles)
		}
		if e.options.MaxFileSize > 0 && int64(file.UncompressedSize64) > e.options.MaxFileSize {
			return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrTooLarge, safeName, file.UncompressedSize64, e.options.MaxFileSize)
		}

		data, err := e.readFileWithLimit(file, safeName)
		if err != nil {
			return nil, err
		}

		totalSize += int64(len(data))
		if e.options.MaxTotalSize > 0 && totalSize > e.options.MaxTotalSize {
			return nil, fmt.Errorf("%w: total extracted size over %d bytes", ErrTooLarge, e.options.MaxTotalSize)
		}

		hash := sha256.Sum256(data)
		entries = append(entries, Entry{
			Name:    safeName,
			Format:  format,
			Content: data,
			Hash:    hex.EncodeToString(hash[:]),
		})
	}

	return entries, nil
}

// readFileWithLimit enforces the size limit on the bytes actually read, not
// just the size declared in the archive
func (e *Expander) readFileWithLimit(file *zip.File, safeName string) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s in ZIP: %w", safeName, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			log.Warn().Str("entry", safeName).Err(closeErr).Msg("Failed to close ZIP entry")
		}
	}()

	var reader io.Reader = rc
	if e.options.MaxFileSize > 0 {
		reader = io.LimitReader(rc, e.options.MaxFileSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s from ZIP: %w", safeName, err)
	}
	if e.options.MaxFileSize > 0 && int64(len(data)) > e.options.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, safeName, e.options.MaxFileSize)
	}
	return data, nil
}

// sanitizeFilename rejects absolute and escaping paths and flattens the
// rest to the base name
func sanitizeFilename(filename string) (string, error) {
	if path.IsAbs(filename) || filepath.IsAbs(filename) {
		return "", fmt.Errorf("absolute path not allowed: %s", filename)
	}
	if len(filename) >= 2 && filename[1] == ':' {
		return "", fmt.Errorf("drive letter not allowed: %s", filename)
	}

	cleaned := path.Clean(strings.ReplaceAll(filename, "\\", "/"))
	if strings.HasPrefix(cleaned, "/") {
		return "", fmt.Errorf("path traversal not allowed: %s", filename)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal not allowed: %s", filename)
		}
	}

	baseName := path.Base(cleaned)
	if baseName == "." || baseName == "/" || baseName == "" {
		return "", fmt.Errorf("invalid filename: %s", filename)
	}
	return baseName, nil
}

func (e *Expander) shouldSkip(filename string) bool {
	for _, pattern := range e.options.SkipPatterns {
		if strings.Contains(filename, pattern) {
			return true
		}
	}
	return strings.HasPrefix(path.Base(filename), "._")
}
