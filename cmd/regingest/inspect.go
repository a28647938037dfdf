package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/chunker"
	"github.com/dgallion1/regingest/internal/pipeline"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		asJSON     bool
		showChunks bool
	)
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show how a file would be parsed, classified and chunked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnly(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.coord.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), in)
			}
			printInspection(cmd.OutOrStdout(), in, a.cfg.LowConfidenceThreshold, showChunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sections, metadata and chunks as JSON")
	cmd.Flags().BoolVar(&showChunks, "chunks", false, "print chunk text")
	return cmd
}

func printInspection(w io.Writer, in pipeline.Inspection, threshold float64, showChunks bool) {
	bold := color.New(color.Bold).SprintFunc()
	cls := in.Classification

	fmt.Fprintf(w, "%s %s (%d pages)\n\n", bold("File:"), in.Document.Filename, len(in.Document.Pages))
	conf := fmt.Sprintf("%.2f", cls.Confidence)
	if cls.Confidence < threshold {
		conf = color.YellowString("%s (low)", conf)
	}
	fmt.Fprintf(w, "%s %s / %s, confidence %s\n", bold("Classification:"), cls.DocumentType, cls.TaxCategory, conf)
	if len(cls.KeywordsFound) > 0 {
		fmt.Fprintf(w, "  Keywords: %s\n", strings.Join(cls.KeywordsFound, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, in.Metadata.Summary())
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %d\n", bold("Sections:"), len(in.Sections))
	for _, s := range in.Sections {
		fmt.Fprintf(w, "  [%s] %s %s (pages %v)\n", s.Kind, s.Number, s.Title, s.Pages)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s %d\n", bold("Chunks:"), len(in.Chunks))
	for _, c := range in.Chunks {
		fmt.Fprintf(w, "  #%d [%s] %s p%d-%d, %d chars, ~%d tokens\n",
			c.Index, c.Kind, c.SectionNumber, c.PageStart, c.PageEnd, len(c.Text), chunker.ChunkTokens(c))
		if showChunks {
			for _, line := range strings.Split(c.Content(), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
}
