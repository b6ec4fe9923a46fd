package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// BatchSummaryFile is the report written next to extracted partials.
const BatchSummaryFile = "batch_summary.json"

// WriteJSON writes v as indented JSON without HTML escaping.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteBundles writes one file per bundle into dir and returns the paths.
func WriteBundles(dir string, bundles []Bundle) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	var paths []string
	for _, b := range bundles {
		path := filepath.Join(dir, b.Key.FileName())
		if err := WriteJSON(path, b.Statement); err != nil {
			return paths, err
		}
		log.Info().Str("file", path).Int("transactions", len(b.Statement.Transactions)).Msg("bundle written")
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadPartials loads every partial JSON file in dir. A file holds one
// statement or an array of them. Unreadable files are skipped and reported
// in the returned error.
func ReadPartials(dir string) ([]common.Statement, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".json") || name == BatchSummaryFile || common.IsHintsFile(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		partials []common.Statement
		errs     error
	)
	for _, name := range names {
		statements, err := readPartial(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping partial")
			errs = multierr.Append(errs, err)
			continue
		}
		partials = append(partials, statements...)
	}
	return partials, errs
}

func readPartial(path string) ([]common.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return DecodePartials(data)
}

// DecodePartials accepts a single statement object or an array of them.
func DecodePartials(data []byte) ([]common.Statement, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []common.Statement
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to parse partials: %w", err)
		}
		return list, nil
	}
	var one common.Statement
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("failed to parse partial: %w", err)
	}
	return []common.Statement{one}, nil
}
