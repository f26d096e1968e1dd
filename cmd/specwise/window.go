package main

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/LatVAlY/specWise/internal/text"
)

var windowSize int

type chunkPreview struct {
	ID    string `json:"id" yaml:"id"`
	Start int    `json:"start_page" yaml:"start_page"`
	End   int    `json:"end_page" yaml:"end_page"`
	Chars int    `json:"chars" yaml:"chars"`
	Text  string `json:"text" yaml:"text"`
}

var windowCmd = &cobra.Command{
	Use:   "window <pages.json>",
	Short: "Preview the page windows sent to extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		texts, err := readPages(args[0])
		if err != nil {
			return err
		}
		pages := text.CleanPages(text.Pages(texts))
		seq, err := text.Window(pages, min(windowSize, len(pages)))
		if err != nil {
			return err
		}

		var out []chunkPreview
		for _, c := range slices.Collect(seq) {
			out = append(out, chunkPreview{
				ID:    c.ID().String(),
				Start: c.StartPage,
				End:   c.EndPage,
				Chars: len(c.Text),
				Text:  c.Text,
			})
		}
		return printOutput(cmd.OutOrStdout(), out)
	},
}

func init() {
	windowCmd.Flags().IntVarP(&windowSize, "size", "w", 2, "pages per window")
}
