package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/aqlanhadi/stmtfold/extractor/mapper"
	"github.com/aqlanhadi/stmtfold/extractor/normalize"
	"github.com/aqlanhadi/stmtfold/extractor/summary"
	"github.com/aqlanhadi/stmtfold/extractor/tables"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/viper"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/multierr"
)

// Options configures document extraction.
type Options struct {
	Tables             tables.Config
	DefaultAccountType string
	Workers            int
}

// DefaultOptions reads the extraction settings from viper.
func DefaultOptions() Options {
	opts := Options{
		Tables:             tables.LoadConfig(),
		DefaultAccountType: viper.GetString("extract.default_account_type"),
		Workers:            viper.GetInt("extract.workers"),
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return opts
}

// ProcessSource turns one document into partial statements. A document whose
// transactions belong to several accounts yields one partial per account.
func ProcessSource(src common.Source, hints common.Hints, opts Options) []common.Statement {
	accounts := hints.KnownAccounts()

	raw := opts.Tables.Parse(src.Tables, accounts)
	normalized := normalize.New(hints).Normalize(raw)
	sum := summary.Extract(src.Pages, src.Tables, hints)

	ctx := mapper.Context{
		FipID:           firstNonEmpty(common.Deref(sum.FipID), hints.FipID),
		LinkedAccRef:    firstNonEmpty(common.Deref(sum.LinkedAccRef), hints.LinkedAccRef),
		FnrkAccountID:   firstNonEmpty(common.Deref(sum.FnrkAccountID), hints.FnrkAccountID),
		AccountType:     firstNonEmpty(common.Deref(sum.AccountType), hints.AccountType),
		MaskedAccNumber: common.Deref(sum.MaskedAccNumber),
	}
	txns := mapper.New(opts.DefaultAccountType).Map(normalized, ctx)

	log.Debug().
		Str("source", src.Name).
		Int("tables", len(src.Tables)).
		Int("rows", len(raw)).
		Int("transactions", len(txns)).
		Msg("document parsed")

	return splitByAccount(sum, hints.Profile, txns)
}

// splitByAccount keeps a single partial unless the transactions name more than
// one account. Transactions without an account stay with the document summary.
func splitByAccount(sum common.Summary, profiles []common.Profile, txns []common.Transaction) []common.Statement {
	var order []string
	byAccount := map[string][]common.Transaction{}
	for _, t := range txns {
		key := strings.TrimSpace(common.Deref(t.MaskedAccNumber))
		if _, ok := byAccount[key]; !ok {
			order = append(order, key)
		}
		byAccount[key] = append(byAccount[key], t)
	}

	var named []string
	for _, k := range order {
		if k != "" {
			named = append(named, k)
		}
	}

	if len(named) <= 1 {
		if len(named) == 1 && common.Blank(sum.MaskedAccNumber) {
			sum.MaskedAccNumber = common.Str(named[0])
		}
		return []common.Statement{newPartial(sum, profiles, txns)}
	}

	var out []common.Statement
	for _, account := range order {
		var s common.Summary
		if err := deepcopy.Copy(&s, sum); err != nil {
			s = sum
		}
		if account != "" {
			s.MaskedAccNumber = common.Str(account)
		}
		out = append(out, newPartial(s, profilesFor(profiles, account), byAccount[account]))
	}
	return out
}

func profilesFor(profiles []common.Profile, account string) []common.Profile {
	var out []common.Profile
	for _, p := range profiles {
		masked := common.Upper(p.MaskedAccNumber)
		if masked == "" || masked == strings.ToUpper(account) {
			out = append(out, p)
		}
	}
	return out
}

func newPartial(sum common.Summary, profiles []common.Profile, txns []common.Transaction) common.Statement {
	if profiles == nil {
		profiles = []common.Profile{}
	}
	if txns == nil {
		txns = []common.Transaction{}
	}
	applyBalance(&sum, txns)
	return common.Statement{Profile: profiles, Summary: sum, Transactions: txns}
}

// applyBalance takes the running balance of the latest transaction when the
// statement text did not state one, and stamps its date as balanceDateTime.
func applyBalance(sum *common.Summary, txns []common.Transaction) {
	var latest *common.Transaction
	for i := range txns {
		t := &txns[i]
		if !t.TransactionTimestamp.Valid {
			continue
		}
		if latest == nil || t.TransactionTimestamp.Int64 >= latest.TransactionTimestamp.Int64 {
			latest = t
		}
	}
	if latest == nil {
		return
	}
	if !sum.BalanceDateTime.Valid {
		sum.BalanceDateTime = latest.TransactionTimestamp
	}
	if !sum.CurrentBalance.Valid && latest.CurrentBalance.Valid {
		sum.CurrentBalance = latest.CurrentBalance
	}
}

// ProcessReader reads a document from r, using name to pick the reader.
func ProcessReader(r io.Reader, name string, hints common.Hints, opts Options) (statements []common.Statement, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: reader failed: %v", filepath.Base(name), rec)
		}
	}()

	src, err := common.ReadSourceReader(r, name)
	if err != nil {
		return nil, err
	}
	return ProcessSource(src, hints, opts), nil
}

// ProcessFile reads a statement file and its optional hints sidecar.
// Reader panics on malformed files are returned as errors.
func ProcessFile(path string, opts Options) (statements []common.Statement, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: reader failed: %v", filepath.Base(path), r)
		}
	}()

	hints, err := common.ReadHints(path)
	if err != nil {
		return nil, err
	}
	src, err := common.ReadSource(path)
	if err != nil {
		return nil, err
	}
	return ProcessSource(src, hints, opts), nil
}

// FileResult is the outcome of one file of a batch.
type FileResult struct {
	File         string   `json:"file"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	Transactions int      `json:"transactions"`
	Accounts     []string `json:"accounts,omitempty"`

	Statements []common.Statement `json:"-"`
}

// BatchReport summarizes a batch run.
type BatchReport struct {
	RunID             string       `json:"run_id"`
	Files             []FileResult `json:"files"`
	Successful        int          `json:"successful"`
	Failed            int          `json:"failed"`
	TotalTransactions int          `json:"total_transactions"`
}

// Partials returns the statements of every successful file in file order.
func (r BatchReport) Partials() []common.Statement {
	var out []common.Statement
	for _, f := range r.Files {
		out = append(out, f.Statements...)
	}
	return out
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ListFiles returns the statement files under path, or path itself for a file.
func ListFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || common.IsHintsFile(name) || !common.IsSupported(name) {
			continue
		}
		files = append(files, filepath.Join(path, name))
	}
	sort.Strings(files)
	return files, nil
}

// ExecuteAgainstPath extracts every statement file under path concurrently.
// A failing file never stops the batch: it is reported and its error joined
// into the returned error.
func ExecuteAgainstPath(path string, opts Options) (BatchReport, error) {
	report := BatchReport{RunID: uuid.NewString()}

	files, err := ListFiles(path)
	if err != nil {
		return report, err
	}
	log.Info().Str("run", report.RunID).Str("path", path).Int("files", len(files)).Msg("scanning")

	pool := iter.Mapper[string, FileResult]{MaxGoroutines: opts.Workers}
	report.Files = pool.Map(files, func(file *string) FileResult {
		return processBatchFile(*file, opts)
	})

	var errs error
	for _, f := range report.Files {
		if f.Status == StatusError {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %s", f.File, f.Error))
			continue
		}
		report.Successful++
		report.TotalTransactions += f.Transactions
	}
	if report.Files == nil {
		report.Files = []FileResult{}
	}
	return report, errs
}

func processBatchFile(file string, opts Options) FileResult {
	result := FileResult{File: filepath.Base(file)}

	statements, err := ProcessFile(file, opts)
	if err != nil {
		log.Error().Err(err).Str("file", result.File).Msg("extraction failed")
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	result.Status = StatusSuccess
	result.Statements = statements
	for _, s := range statements {
		result.Transactions += len(s.Transactions)
		if masked := common.Deref(s.Summary.MaskedAccNumber); masked != "" {
			result.Accounts = append(result.Accounts, masked)
		}
	}
	log.Info().Str("file", result.File).Int("transactions", result.Transactions).Msg("extracted")
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
