package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"TradeBraid/internal/model"
)

// SpoolSource reads closed-trade events from JSON files dropped into a
// spool directory by the position manager. Consumed files are renamed
// with a .done suffix so a crash between read and rename re-delivers at
// most once more; the engine's dedupe ledger absorbs the duplicate.
type SpoolSource struct {
	dir string
}

// NewSpoolSource creates the spool directory if needed.
func NewSpoolSource(dir string) (*SpoolSource, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &SpoolSource{dir: dir}, nil
}

func (s *SpoolSource) Name() string { return "spool:" + s.dir }

// Poll reads every pending *.json file in name order. A file that fails
// to parse is renamed to .bad and skipped; it never blocks the batch.
func (s *SpoolSource) Poll() ([]model.ClosedTrade, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read spool dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var trades []model.ClosedTrade
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[WARN] read spool file %s: %v", name, err)
			continue
		}
		var t model.ClosedTrade
		if err := json.Unmarshal(data, &t); err != nil {
			log.Printf("[WARN] malformed trade file %s: %v", name, err)
			s.rename(path, ".bad")
			continue
		}
		trades = append(trades, t)
		s.rename(path, ".done")
	}
	return trades, nil
}

func (s *SpoolSource) rename(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		log.Printf("[ERROR] rename %s: %v", path, err)
	}
}
