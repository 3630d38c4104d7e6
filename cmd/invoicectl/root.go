package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/config"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/logger"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "invoicectl",
		Short: "Load OCR invoices into purchase orders and goods receipts",
		Long: `invoicectl reads OCR invoice payloads from files or S3, maps them onto
purchase orders and goods receipt notes, and stores them together with any
missing master data.

Examples:
  invoicectl process ./invoice.json
  invoicectl process s3://ocr-output/2025/08/invoice-17.json
  invoicectl batch --dir ./incoming
  invoicectl migrate up`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to config file (default: ./config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	cmd.AddCommand(
		newProcessCmd(opts),
		newBatchCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// load reads the configuration and builds the logger it describes.
func (o *globalOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFile(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	switch {
	case o.verbose:
		cfg.Log.Level = "debug"
	case o.logLevel != "":
		cfg.Log.Level = o.logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}
