// Package ingest implements CSV import and the PIT invariant (C3): schema
// validation, sha256 dataset hashing, a pre/post row-count delta check per
// file, and an audit event appended after each successful import.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/sentinel/internal/analytics"
	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/store"
	"github.com/rs/zerolog"
)

// Importer wires the analytics store (row insertion) and the durable store
// (audit trail) together behind the import operations.
type Importer struct {
	analytics *analytics.Store
	store     *store.Store
	log       zerolog.Logger
}

// New creates an Importer.
func New(analyticsStore *analytics.Store, stateStore *store.Store, log zerolog.Logger) *Importer {
	return &Importer{analytics: analyticsStore, store: stateStore, log: log.With().Str("component", "ingest").Logger()}
}

// Result mirrors the original importer's ImportResult: what was imported,
// how many rows landed, and the hash identifying the exact bytes ingested.
type Result struct {
	SourcePath   string
	RowsInserted int
	DatasetHash  string
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errkind.Wrap(errkind.Invalid, err, fmt.Sprintf("input file not found: %s", path))
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errkind.Wrap(errkind.Internal, err, "failed to hash input file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func ensureSupportedInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return errkind.Newf(errkind.Invalid, "input file not found: %s", path)
	}
	ext := filepath.Ext(path)
	if ext != ".csv" {
		return errkind.New(errkind.Invalid, "only .csv is supported")
	}
	return nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func missingColumns(header []string, required []string) []string {
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[c] = true
	}
	var missing []string
	for _, c := range required {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, c := range header {
		idx[c] = i
	}
	return idx
}
