package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aqlanhadi/stmtfold/logger"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Embedded default configuration (same content as a fresh .stmtfold.yaml)
const defaultConfigYAML = `
extract:
  workers: 4
  default_account_type: ""
tables:
  min_cells: 3
  duplicate_header_min_keywords: 2
  account_row_label: account number
  account_number_min_digits: 10
  aliases:
    - field: value_date
      labels: [value_date, value date, val date, val dt]
    - field: txn_date
      labels: [txn_date, date, txn date, transaction date, trxn dt, txn dt]
    - field: description
      labels: [description, narration, transaction details, details, particulars, transaction remarks]
    - field: txnId
      labels: [ref_no, ref, ref no, cheque, instrument no]
    - field: type
      labels: [type, debit/credit, dr/cr]
    - field: debit
      labels: [debit, dr, debit amt, withdrawal, withdrawal amount inr]
    - field: credit
      labels: [credit, cr, credit amt, deposit, deposit amount inr]
    - field: balance
      labels: [balance, bal, closing balance, cl bal, available balance, balance inr]
    - field: amount
      labels: [amount, amount (inr), amt, transaction amount]
  header_keywords: [date, transaction, description, withdrawal, deposit, balance, credit, debit, amount, details, chq]
  metadata_phrases:
    - opening balance
    - closing balance
    - account number
    - balance brought forward
    - balance carried forward
    - account statement for account number
summary:
  first_pages: 3
  first_tables: 3
  patterns:
    currency: '(?i)\b(INR|USD|EUR|GBP|AUD|CAD)\b'
    ifsc: '\b[A-Z]{4}0[A-Z0-9]{6}\b'
    micr: '\b\d{9}\b'
`

var (
	cfgFile string
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "stmtfold [file]",
		Short: "Turn bank statement tables into canonical transactions",
		Long: `stmtfold reads bank statements (PDF, CSV, XLSX, XLS or table JSON), finds the
transaction tables, maps every row to a canonical transaction and merges the
results of many statements into one bundle per account.`,
		Args: cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) == 1 {
				extractTarget = args[0]
				extractHandler(extractCmd, nil)
				return
			}
			cmd.Help()
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default is ./.stmtfold.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().Int("workers", 0, "documents processed in parallel (default from config)")
	viper.BindPFlag("extract.workers", rootCmd.PersistentFlags().Lookup("workers"))
}

func initLogging() {
	logger.Init(verbose)
	log.Logger = logger.New()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".stmtfold")
	}

	viper.SetEnvPrefix("STMTFOLD")
	viper.AutomaticEnv()

	// Defaults first so a user file only needs the keys it changes.
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBufferString(defaultConfigYAML)); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading embedded configuration: %v\n", err)
		os.Exit(1)
	}

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
		log.Debug().Msg("no config file found, using embedded defaults")
		return
	}
	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("config loaded")
}
