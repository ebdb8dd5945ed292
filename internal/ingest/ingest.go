package ingest

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/tariff-catalog/constants"
	"github.com/joseph-ayodele/tariff-catalog/internal/common"
	"github.com/joseph-ayodele/tariff-catalog/internal/utils"
)

// File is a PDF found by ScanDirectory.
type File struct {
	Path string
	Hash string // hex sha256
	Size int64
}

// Rejected is a file that looked like a PDF by name but could not be used.
type Rejected struct {
	Path string
	Err  string
}

// ScanStats summarizes a directory scan.
type ScanStats struct {
	Scanned      int
	Matched      int
	Accepted     int
	Deduplicated int
	Rejected     int
}

// ScanDirectory walks root and returns every readable PDF, each content
// hash once. Files are returned in walk (lexical) order.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]File, []Rejected, ScanStats, error) {
	var stats ScanStats
	if strings.TrimSpace(root) == "" {
		return nil, nil, stats, fmt.Errorf("root path is required: %w", common.ErrInvalidInput)
	}

	var (
		files    []File
		rejected []Rejected
		seen     = map[string]string{}
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			rejected = append(rejected, Rejected{Path: path, Err: walkErr.Error()})
			stats.Rejected++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !constants.IsPDFExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		data, err := ReadPDF(path)
		if err != nil {
			rejected = append(rejected, Rejected{Path: path, Err: err.Error()})
			stats.Rejected++
			return nil
		}
		hash := utils.SHA256Hex(data)
		if first, dup := seen[hash]; dup {
			slog.Debug("ingest.duplicate", "path", path, "same_as", first)
			stats.Deduplicated++
			return nil
		}
		seen[hash] = path
		files = append(files, File{Path: path, Hash: hash, Size: int64(len(data))})
		stats.Accepted++
		return nil
	})
	if err != nil {
		return files, rejected, stats, fmt.Errorf("walk: %w", err)
	}
	return files, rejected, stats, nil
}

// ReadPDF loads a PDF from disk, refusing files over constants.MaxPDFBytes
// and files without the PDF magic.
func ReadPDF(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, constants.MaxPDFBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > constants.MaxPDFBytes {
		return nil, fmt.Errorf("%s: file exceeds %d bytes: %w", path, constants.MaxPDFBytes, common.ErrInvalidInput)
	}
	if !constants.LooksLikePDF(data) {
		return nil, fmt.Errorf("%s: missing %s header: %w", path, constants.PDFMagic, common.ErrMalformedDocument)
	}
	return data, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

var slugger = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ProviderID derives a provider id from a file name:
// "Tabela Unimed Odonto 2024.pdf" with prefix "br-" gives "br-tabela-unimed-odonto-2024".
func ProviderID(prefix, path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	plain, _, err := transform.String(slugger, name)
	if err != nil {
		plain = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		id = "provider"
	}
	id = prefix + id
	if len(id) > 64 {
		id = strings.TrimSuffix(id[:64], "-")
	}
	return id
}
