package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	extractTarget string
	extractOutput string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extracts statement(s) into partial documents",
	Long: `Extracts a given statement or every statement in a folder.
Each document becomes a partial JSON document holding its summary and
transactions. A "<name>.hints.json" file next to a statement supplies the
account numbers and FIP details found outside the tables.

Without --output the partials are printed to stdout.`,
	Run: extractHandler,
}

func extractHandler(cmd *cobra.Command, args []string) {
	report, err := extractor.ExecuteAgainstPath(extractTarget, extractor.DefaultOptions())
	if err != nil && len(report.Files) == 0 {
		log.Fatal().Err(err).Str("path", extractTarget).Msg("extraction failed")
	}

	if extractOutput == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if encErr := enc.Encode(report.Partials()); encErr != nil {
			log.Fatal().Err(encErr).Msg("failed to write output")
		}
	} else {
		writePartials(report)
	}

	log.Info().
		Str("run", report.RunID).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("transactions", report.TotalTransactions).
		Msg("complete")
	if err != nil {
		os.Exit(1)
	}
}

func writePartials(report extractor.BatchReport) {
	if err := os.MkdirAll(extractOutput, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}

	for _, f := range report.Files {
		if f.Status != extractor.StatusSuccess {
			continue
		}
		path := filepath.Join(extractOutput, common.SourceName(f.File)+"_partial.json")
		var v any = f.Statements
		if len(f.Statements) == 1 {
			v = f.Statements[0]
		}
		if err := assembler.WriteJSON(path, v); err != nil {
			log.Error().Err(err).Str("file", f.File).Msg("failed to write partial")
		}
	}

	if err := assembler.WriteJSON(filepath.Join(extractOutput, assembler.BatchSummaryFile), report); err != nil {
		log.Error().Err(err).Msg("failed to write batch summary")
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractTarget, "file", "f", ".", "Statement file or folder to scan")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Folder for partial JSON files and batch_summary.json")
}
