package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/contenttype"
)

var contentTypesFile string

var contentTypesCmd = &cobra.Command{
	Use:   "content-types",
	Short: "Validate the content types file and list its content types.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := strings.TrimSpace(contentTypesFile)
		if path == "" {
			cfg, err := config.LoadOptionalDB()
			if err != nil {
				return err
			}
			path = cfg.ContentTypesFile
		}
		catalog, err := contenttype.Load(path)
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), catalog)
	},
}

func init() {
	contentTypesCmd.Flags().StringVar(&contentTypesFile, "file", "", "Content types file (defaults to CONTENT_TYPES_FILE)")
}

func printCatalog(out io.Writer, catalog *contenttype.Catalog) error {
	for _, ct := range catalog.All() {
		if _, err := fmt.Fprintf(out, "%s (%s): %d fields, display %q\n", ct.ID, ct.Name, len(ct.Fields), ct.DisplayField); err != nil {
			return err
		}
		for _, f := range ct.Fields {
			if catalog.IsHidden("fields." + f.ID) {
				continue
			}
			fmt.Fprintf(out, "  %-16s %-8s %s\n", f.ID, f.Type, strings.Join(operatorNames(f.Operators()), " "))
		}
	}
	if patterns := catalog.HiddenPatterns(); len(patterns) > 0 {
		fmt.Fprintf(out, "hidden: %s\n", strings.Join(patterns, ", "))
	}
	return nil
}

func operatorNames(ops []string) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		if op == "" {
			op = "eq"
		}
		out[i] = op
	}
	return out
}
