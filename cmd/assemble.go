package cmd

import (
	"os"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	assembleInput  string
	assembleOutput string
	assembleFrom   string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Merges partial documents into one bundle per account",
	Long: `Reads the partial JSON documents written by "extract --output" and writes
one bank_<fip>_<account>_<ref>.json bundle per account.

With --from, statements are extracted first and assembled in one go.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := assembler.New(extractor.DefaultOptions().Workers)

		if assembleFrom != "" {
			report, extractErr := extractor.ExecuteAgainstPath(assembleFrom, extractor.DefaultOptions())
			if extractErr != nil {
				log.Warn().Err(extractErr).Msg("some statements failed")
			}
			a.Add(report.Partials()...)
		} else {
			loaded, readErr := assembler.ReadPartials(assembleInput)
			if readErr != nil {
				log.Warn().Err(readErr).Msg("some partials could not be read")
			}
			a.Add(loaded...)
		}

		if a.Len() == 0 {
			log.Error().Msg("no partial documents to assemble")
			os.Exit(1)
		}

		paths, err := assembler.WriteBundles(assembleOutput, a.Assemble())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to write bundles")
		}
		log.Info().Int("bundles", len(paths)).Str("output", assembleOutput).Msg("complete")
	},
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringVarP(&assembleInput, "input", "i", ".", "Folder holding partial JSON files")
	assembleCmd.Flags().StringVarP(&assembleOutput, "output", "o", "bundles", "Folder for the merged bundles")
	assembleCmd.Flags().StringVar(&assembleFrom, "from", "", "Extract statements from this file or folder instead of reading partials")
}
