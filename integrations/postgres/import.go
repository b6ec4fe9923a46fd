package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/aqlanhadi/stmtfold/logger"
	"go.uber.org/multierr"
)

// ImportResult tracks the outcome of an import operation
type ImportResult struct {
	Processed int
	Skipped   int
	Failed    int
	Inserted  int
	Errors    []string
}

// Err joins the recorded failures, nil when there were none.
func (r *ImportResult) Err() error {
	var err error
	for _, msg := range r.Errors {
		err = multierr.Append(err, errors.New(msg))
	}
	return err
}

func (r *ImportResult) fail(msg string) {
	r.Failed++
	r.Errors = append(r.Errors, msg)
}

// ImportOptions configures the import behavior
type ImportOptions struct {
	Force bool // Re-record bundles whose period was already imported
}

// ImportBundle stores one merged bundle. Transactions are always inserted
// idempotently; the period record decides whether the bundle counts as skipped.
func (db *DB) ImportBundle(ctx context.Context, source string, bundle common.Statement, opts ImportOptions, result *ImportResult) {
	lg := logger.FromContext(ctx)
	key := assembler.KeyOf(bundle.Summary)
	label := fmt.Sprintf("%s [%s]", source, key.FileName())

	accountID, err := db.GetOrCreateAccount(ctx, bundle)
	if err != nil {
		result.fail(fmt.Sprintf("%s: account error: %v", label, err))
		return
	}

	exists, existingID, err := db.StatementExists(ctx, accountID, bundle.TransactionsMeta)
	if err != nil {
		result.fail(fmt.Sprintf("%s: check error: %v", label, err))
		return
	}
	if exists && !opts.Force {
		lg.Info().Str("bundle", label).Msg("skip, already imported")
		result.Skipped++
		return
	}
	if exists {
		if err := db.DeleteStatement(ctx, existingID); err != nil {
			result.fail(fmt.Sprintf("%s: delete error: %v", label, err))
			return
		}
	}

	statementID, err := db.CreateStatement(ctx, accountID, source, bundle.TransactionsMeta)
	if err != nil {
		result.fail(fmt.Sprintf("%s: statement error: %v", label, err))
		return
	}

	inserted, err := db.CreateTransactions(ctx, accountID, statementID, bundle.Transactions)
	if err != nil {
		_ = db.DeleteStatement(ctx, statementID)
		result.fail(fmt.Sprintf("%s: transactions error: %v", label, err))
		return
	}

	lg.Info().Str("bundle", label).Int("transactions", len(bundle.Transactions)).Int("inserted", inserted).Msg("imported")
	result.Processed++
	result.Inserted += inserted
}

// ImportFile stores every bundle in a JSON file.
func (db *DB) ImportFile(ctx context.Context, filePath string, opts ImportOptions, result *ImportResult) {
	fileName := filepath.Base(filePath)

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail(fmt.Sprintf("%s: failed to open file: %v", fileName, err))
		return
	}
	bundles, err := assembler.DecodePartials(data)
	if err != nil {
		result.fail(fmt.Sprintf("%s: %v", fileName, err))
		return
	}
	if len(bundles) == 0 {
		result.fail(fmt.Sprintf("%s: no bundles found", fileName))
		return
	}

	for _, b := range bundles {
		db.ImportBundle(ctx, fileName, b, opts, result)
	}
}

// BundleFiles lists the bundle files of a directory.
func BundleFiles(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "bank_") && strings.HasSuffix(lower, ".json") {
			files = append(files, filepath.Join(dirPath, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Import handles both file and directory imports
func (db *DB) Import(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = BundleFiles(path); err != nil {
			return nil, err
		}
		lg := logger.FromContext(ctx)
		lg.Info().Str("path", path).Int("files", len(files)).Msg("scanning")
	}

	result := &ImportResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		db.ImportFile(ctx, f, opts, result)
	}
	return result, nil
}
