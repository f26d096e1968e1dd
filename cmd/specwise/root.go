package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LatVAlY/specWise/internal/logger"
)

var (
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "specwise",
	Short: "Line item extraction and classification for tender documents",
	Long: `specwise turns the page texts of a construction tender document
(Leistungsverzeichnis) into classified line items.

The pipeline includes:
  - Sliding page windows with overlap
  - LLM extraction and reconciliation of overlapping results
  - Resolution of "wie Pos." references
  - Classification against the service catalog`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "yaml" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q", outputFormat)
		}
		slog.SetDefault(logger.New(os.Stderr, logLevel))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "warn", "log level written to stderr",
	)

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(windowCmd)
}

func printOutput(w io.Writer, v any) error {
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// readPages loads a JSON array of page texts.
func readPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pages []string
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return pages, nil
}
