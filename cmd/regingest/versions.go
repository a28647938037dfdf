package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/parser"
	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/versioning"
)

func newVersionsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and manage document editions",
	}
	cmd.AddCommand(
		newVersionsScanCmd(root),
		newVersionsConflictsCmd(root),
		newVersionsHistoryCmd(root),
		newVersionsRetireCmd(root),
	)
	return cmd
}

func newVersionsScanCmd(root *rootOptions) *cobra.Command {
	var (
		recursive bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Register new and updated editions in a directory without indexing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger()
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Recursive = recursive
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer a.Close()

			paths, err := parser.Discover(args[0], cfg.Recursive)
			if err != nil {
				return fmt.Errorf("scan %s: %w", args[0], err)
			}
			loader := &parser.Loader{FallbackPdftotext: cfg.PDFFallbackPdftotext}
			var items []versioning.ScanItem
			for _, p := range paths {
				doc, err := loader.Load(ctx, p)
				if err != nil {
					log.Warn("skipping unreadable file", "path", p, "error", err)
					continue
				}
				in, err := a.coord.InspectDocument(ctx, doc)
				if err != nil {
					log.Warn("skipping unparseable file", "path", p, "error", err)
					continue
				}
				items = append(items, versioning.ScanItem{
					Doc:          doc,
					Meta:         in.Metadata,
					DocumentType: string(in.Classification.DocumentType),
				})
			}

			rep, err := a.versions.Scan(ctx, items)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			fmt.Fprint(cmd.OutOrStdout(), rep.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newVersionsConflictsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List document families with more than one current edition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openReadOnly(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close()

			conflicts, err := a.versions.Conflicts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(conflicts) == 0 {
				fmt.Fprintln(out, color.GreenString("No version conflicts"))
				return nil
			}
			for _, c := range conflicts {
				fmt.Fprintf(out, "%s %s: %s (%s)\n", color.YellowString("!"), c.Family, strings.Join(c.Files, ", "), c.Reason)
			}
			return nil
		},
	}
}

func newVersionsHistoryCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history <family|filename>",
		Short: "Show every known edition of a document family, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnly(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close()

			history, err := a.versions.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return fmt.Errorf("no editions of %s", versioning.Family(args[0]))
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), history)
			}
			printHistory(cmd.OutOrStdout(), versioning.Family(args[0]), history)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newVersionsRetireCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retire <filename>",
		Short: "Mark an edition as no longer current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnly(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.versions.Retire(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%s is not registered", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s retired %s\n", color.GreenString("✓"), args[0])
			return nil
		},
	}
}

// openReadOnly opens the store for commands that never push chunks.
func openReadOnly(cmd *cobra.Command, root *rootOptions) (*app, error) {
	log := root.logger()
	cfg, err := root.config()
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), cfg, log, false)
}

func printHistory(w io.Writer, family string, history []store.DocumentVersion) {
	fmt.Fprintf(w, "Family: %s\n", family)
	for _, v := range history {
		marker := "  "
		if v.IsCurrent {
			marker = color.GreenString("* ")
		}
		date := v.VersionDate
		if date == "" {
			date = "-"
		}
		fmt.Fprintf(w, "%s%s  date %s", marker, v.Filename, date)
		if v.YearOfAssessment != "" {
			fmt.Fprintf(w, "  YA %s", v.YearOfAssessment)
		}
		if v.Supersedes != "" {
			fmt.Fprintf(w, "  supersedes %s", v.Supersedes)
		}
		fmt.Fprintf(w, "  registered %s\n", v.RegisteredAt.Format("2006-01-02 15:04"))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
