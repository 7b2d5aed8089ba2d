package corpus

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/ingest"
)

// yieldEvery is the number of files processed between two scheduler yields.
const yieldEvery = 10

// Scanner builds snapshots out of the files under an ingestion root.
type Scanner struct {
	root   string
	norm   *ingest.Normalizer
	logger core.Logger
}

func NewScanner(root string, norm *ingest.Normalizer, logger core.Logger) *Scanner {
	if norm == nil {
		norm = ingest.NewNormalizer(nil)
	}
	return &Scanner{root: root, norm: norm, logger: logger}
}

func (s *Scanner) Root() string {
	return s.root
}

// Skipped reports whether a file or directory name is ignored: dot files and office lock files.
func Skipped(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}

// Scan walks the root and builds a new snapshot. Unreadable or unparseable files are logged and skipped; only a
// context cancellation or a missing root fail the scan.
func (s *Scanner) Scan(ctx context.Context) (Snapshot, error) {
	start := time.Now()
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Snapshot{}, errors.Wrap(err, "creating data root")
	}

	snap := Snapshot{Records: make([]ingest.Record, 0)}
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return err
			}
			s.logger.Warn("scan: cannot access "+path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == s.root {
			return nil
		}
		if Skipped(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !ingest.IsCandidate(d.Name()) {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		snap.FilesScanned++
		if snap.FilesScanned%yieldEvery == 0 {
			runtime.Gosched()
		}

		recs, dropped, err := s.scanFile(path)
		if err != nil {
			snap.FilesSkipped++
			s.logger.Warn("scan: skipping "+path, err)
			return nil
		}
		snap.Records = append(snap.Records, recs...)
		snap.RecordsDropped += dropped
		return nil
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "scanning data root")
	}

	snap.BuiltAt = time.Now().UTC()
	snap.Duration = time.Since(start)
	return snap, nil
}

// scanFile returns the normalized records of one file and the number of rows that could not be normalized.
func (s *Scanner) scanFile(path string) ([]ingest.Record, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading file")
	}
	grid, err := ingest.ParseGrid(path, b)
	if err != nil {
		return nil, 0, err
	}
	if len(grid) == 0 {
		return nil, 0, nil
	}

	folderPath := "."
	if rel, err := filepath.Rel(s.root, filepath.Dir(path)); err == nil {
		folderPath = filepath.ToSlash(rel)
	}

	idx, header := ingest.LocateHeader(grid, s.norm.Rules().Header)
	raws := ingest.RowsToRecords(grid, idx, header, filepath.Base(path), folderPath)

	recs := make([]ingest.Record, 0, len(raws))
	var dropped int
	for _, raw := range raws {
		rec, err := s.norm.Normalize(raw)
		if err != nil {
			dropped++
			if !errors.Is(err, ingest.ErrNoName) {
				s.logger.Warn("scan: dropping record of "+path, err)
			}
			continue
		}
		recs = append(recs, rec)
	}
	return recs, dropped, nil
}
