package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/docsite/internal/config"
	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/registry"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the documents in the content directory",
	Long: `List every .mdx and .md document directly under the content directory with
its slug, title and description from the front matter.

Examples:
  docsite list                    # Table output
  docsite list -f json            # Output as JSON
  docsite list --front-matter     # Include the full front matter
  docsite list -f yaml            # Output as YAML`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return BindFlags(cmd, nil)
	},
	RunE: runList,
}

var (
	listFlags           *StandardFlags
	listWithFrontMatter bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "content", "output")
	listCmd.Flags().BoolVar(&listWithFrontMatter, "front-matter", false, "Include the full front matter")

	AddFlagValidation(listCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json", "yaml"})
	})
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	contentRoot, err := cfg.ContentRoot()
	if err != nil {
		return fmt.Errorf("failed to resolve content directory: %w", err)
	}

	logger := newLogger(cfg)
	reg := registry.New(contentRoot, logger)
	if err := reg.Refresh(); err != nil {
		if !docerrors.IsType(err, docerrors.ErrorTypeConfig) {
			return fmt.Errorf("failed to load documents: %w", err)
		}
		logger.Warn(cmd.Context(), err, "Ignoring invalid docs config")
	}

	docs := reg.All()
	out := cmd.OutOrStdout()

	switch strings.ToLower(listFlags.OutputFormat) {
	case "json":
		return outputListJSON(out, docs)
	case "yaml":
		return outputListYAML(out, docs)
	case "table":
		return outputListTable(out, docs, reg.Config())
	default:
		return fmt.Errorf("unsupported format: %s", listFlags.OutputFormat)
	}
}

func listItems(docs []*registry.Document) []map[string]interface{} {
	output := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		item := map[string]interface{}{
			"slug":        doc.Slug,
			"title":       doc.Title,
			"description": doc.Description,
			"file_path":   doc.FilePath,
		}
		if doc.Date != "" {
			item["date"] = doc.Date
		}
		if listWithFrontMatter {
			item["front_matter"] = doc.FrontMatter
		}
		output[i] = item
	}
	return output
}

func outputListJSON(w io.Writer, docs []*registry.Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(listItems(docs))
}

func outputListYAML(w io.Writer, docs []*registry.Document) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(listItems(docs))
}

func outputListTable(w io.Writer, docs []*registry.Document, site *registry.DocsConfig) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, "No documents found.")
		return err
	}

	if site != nil && site.Name != "" {
		fmt.Fprintf(w, "%s\n\n", site.Name)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tTITLE\tDESCRIPTION\tFILE")
	fmt.Fprintln(tw, "----\t-----\t-----------\t----")
	for _, doc := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", doc.Slug, doc.Title, doc.Description, doc.FilePath)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal: %d documents\n", len(docs))
	return err
}
