package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/application/invoice"
)

// errInvoicesFailed makes the command exit non-zero after printing results.
var errInvoicesFailed = errors.New("one or more invoices failed")

type outputOptions struct {
	compact bool
}

func (o outputOptions) write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !o.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func newProcessCmd(global *globalOptions) *cobra.Command {
	out := outputOptions{}
	cmd := &cobra.Command{
		Use:   "process <file|s3-uri|->...",
		Short: "Process OCR invoice payloads one by one",
		Long: `Process reads each payload, maps it and stores the resulting purchase
order and goods receipt. One JSON result is written per payload. A failing
payload does not stop the remaining ones.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := global.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				_ = log.Sync()
				return err
			}
			defer a.close()
			ctx = runContext(ctx, cfg, log)

			failed := 0
			for _, location := range args {
				var result *invoice.ProcessingResult
				data, err := a.source.Fetch(ctx, location)
				if err != nil {
					log.Error("Failed to read payload", zap.String("source", location), zap.Error(err))
					result = &invoice.ProcessingResult{
						Status:  invoice.StatusFailed,
						Message: "Failed to read payload",
						Errors:  []string{err.Error()},
					}
				} else {
					result = a.processor.ProcessInvoice(ctx, data)
				}
				if !result.Succeeded() {
					failed++
				}
				if err := out.write(cmd.OutOrStdout(), result); err != nil {
					return fmt.Errorf("write result: %w", err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvoicesFailed, failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&out.compact, "compact", false, "Write single-line JSON results")
	return cmd
}

func newBatchCmd(global *globalOptions) *cobra.Command {
	var (
		out outputOptions
		dir string
	)
	cmd := &cobra.Command{
		Use:   "batch [file|s3-uri]...",
		Short: "Process a batch of OCR invoice payloads with one summary",
		Long: `Batch reads every payload up front, then processes them in order and
writes a single summary with per-invoice status. --dir adds every *.json file
of a directory, in name order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			locations := slices.Clone(args)
			if dir != "" {
				found, err := jsonFiles(dir)
				if err != nil {
					return err
				}
				locations = append(locations, found...)
			}
			if len(locations) == 0 {
				return errors.New("no payloads given; pass locations or --dir")
			}

			cfg, log, err := global.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				_ = log.Sync()
				return err
			}
			defer a.close()
			ctx = runContext(ctx, cfg, log)

			payloads := make([]invoice.Payload, 0, len(locations))
			for _, location := range locations {
				data, err := a.source.Fetch(ctx, location)
				if err != nil {
					return fmt.Errorf("read %s: %w", location, err)
				}
				payloads = append(payloads, invoice.Payload{Source: location, Data: data})
			}

			result := a.processor.ProcessBatch(ctx, payloads)
			if err := out.write(cmd.OutOrStdout(), result); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			if result.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvoicesFailed, result.Failed, result.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of *.json payloads to include")
	cmd.Flags().BoolVar(&out.compact, "compact", false, "Write single-line JSON output")
	return cmd
}

// jsonFiles lists the *.json files directly inside dir, sorted by name.
func jsonFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}
