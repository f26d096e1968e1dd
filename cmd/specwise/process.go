package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/LatVAlY/specWise/features/job"
	"github.com/LatVAlY/specWise/internal/app"
	"github.com/LatVAlY/specWise/internal/classify"
	"github.com/LatVAlY/specWise/internal/completion"
	"github.com/LatVAlY/specWise/internal/config"
	"github.com/LatVAlY/specWise/internal/document"
)

const cliDocumentID = "cli"

var (
	pagesFile  string
	xmlFile    string
	catalog    string
	processWin int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full pipeline in memory and print the classified items",
	Long: `process reads a JSON array of page texts, runs extraction, reference
resolution and classification without a database or queue, and prints the
resulting items. Provider settings come from the environment (.env), as for
the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if catalog != "" {
			cfg.CatalogPath = catalog
		}
		if cmd.Flags().Changed("window") {
			cfg.WindowSize = processWin
		}

		texts, err := readPages(pagesFile)
		if err != nil {
			return err
		}

		completer, err := app.NewCompleter(ctx, cfg)
		if err != nil {
			return err
		}

		items, err := process(ctx, cfg, completion.NewRateLimited(completer, cfg.CompletionRPM), texts)
		if err != nil {
			return err
		}

		if xmlFile != "" {
			data, err := job.MarshalXML(items)
			if err != nil {
				return err
			}
			if err := os.WriteFile(xmlFile, data, 0o644); err != nil {
				return err
			}
		}
		return printOutput(cmd.OutOrStdout(), items)
	},
}

// process runs one job against an in-memory repository and returns its items.
func process(ctx context.Context, cfg *config.Config, c completion.Completer, texts []string) ([]classify.Item, error) {
	repo := job.NewMemoryRepo()
	coord, err := app.NewCoordinator(cfg, c, repo, document.Static{cliDocumentID: texts}, nil)
	if err != nil {
		return nil, err
	}

	j := &job.Job{CollectionID: cliDocumentID, DocumentID: cliDocumentID, FileName: pagesFile}
	if err := repo.Create(ctx, j); err != nil {
		return nil, err
	}
	if err := coord.Run(ctx, j.ID); err != nil {
		return nil, err
	}

	done, err := repo.Get(ctx, j.ID)
	if err != nil {
		return nil, err
	}
	if done.Status != job.StatusCompleted {
		return nil, fmt.Errorf("job %s: %s: %s", done.Status, done.ErrorKind, done.ErrorMessage)
	}
	return repo.GetResult(ctx, j.ID)
}

func init() {
	processCmd.Flags().StringVarP(&pagesFile, "pages", "p", "", "JSON file with an array of page texts")
	processCmd.Flags().StringVar(&xmlFile, "xml", "", "also write the items as XML to this file")
	processCmd.Flags().StringVar(&catalog, "catalog", "", "YAML catalog file (overrides CATALOG_PATH)")
	processCmd.Flags().IntVarP(&processWin, "window", "w", 2, "pages per window (overrides WINDOW_SIZE)")
	_ = processCmd.MarkFlagRequired("pages")
}
