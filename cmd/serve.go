package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aqlanhadi/stmtfold/api"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP API server",
	Long: `Starts the HTTP API server. POST /extract accepts a statement upload and
returns its partial document; POST /assemble merges partial documents.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := api.DefaultConfig()
		if servePort != "" {
			cfg.Port = ":" + servePort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := api.New(cfg).Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&servePort, "port", "p", "8080", "Port to run the API server on")
}
