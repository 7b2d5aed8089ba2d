package corpus

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/ingest"
)

// pathSeparatorToken stands for '/' in uploaded file names, which some proxies strip.
const pathSeparatorToken = "__ORD__"

// ErrInvalidUploadPath is returned for upload names without any usable segment.
var ErrInvalidUploadPath = errors.New("invalid upload path")

// SanitizeUploadPath turns a client supplied file name into a clean relative slash path. Separator tokens and
// backslashes become '/', mis-decoded UTF-8 is repaired, and empty, "." and ".." segments are dropped.
func SanitizeUploadPath(name string) (string, error) {
	name = repairMojibake(name)
	name = strings.ReplaceAll(name, pathSeparatorToken, "/")
	name = strings.ReplaceAll(name, `\`, "/")

	var parts []string
	for _, seg := range strings.Split(name, "/") {
		seg = core.NormalizeName(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "", ErrInvalidUploadPath
	}
	return path.Join(parts...), nil
}

// repairMojibake reinterprets a name holding only Latin-1 runes as UTF-8 bytes, when they form valid UTF-8.
// Multipart file names are often UTF-8 bytes decoded as Latin-1.
func repairMojibake(s string) string {
	b := make([]byte, 0, len(s))
	high := false
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		if r > 0x7F {
			high = true
		}
		b = append(b, byte(r))
	}
	if !high || !utf8.Valid(b) {
		return s
	}
	return string(b)
}

// SaveUpload writes an uploaded file under root and returns its sanitized relative path.
func SaveUpload(root, name string, r io.Reader) (string, error) {
	rel, err := SanitizeUploadPath(name)
	if err != nil {
		return "", err
	}
	if !ingest.IsCandidate(rel) {
		return "", errors.Wrap(ingest.ErrUnsupportedFormat, rel)
	}

	dst := filepath.Join(root, filepath.FromSlash(rel))
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating upload directory")
	}

	// write to a temp file first so that the watcher never sees a partial spreadsheet
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating upload file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing upload file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "writing upload file")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "moving upload file")
	}
	return rel, nil
}
