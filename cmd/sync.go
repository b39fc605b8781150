package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/docsite/internal/config"
	"github.com/conneroisu/docsite/internal/services"
)

var syncCmd = &cobra.Command{
	Use:   "sync [slug...]",
	Short: "Copy assets referenced by documents into the public directory",
	Long: `Process every document in the content directory and copy the files its
images and links reference (for example ![Hero](/hero.png)) from content/ to
public/, so the site can serve them. References are never rewritten, external
URLs are never copied and files already up to date are skipped.

Examples:
  docsite sync                  # Sync every document
  docsite sync intro guide      # Sync selected documents
  docsite sync -f json          # Report as JSON`,
	Args: slugArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return BindFlags(cmd, nil)
	},
	RunE: runSync,
}

var syncFlags *StandardFlags

func init() {
	rootCmd.AddCommand(syncCmd)

	syncFlags = AddStandardFlags(syncCmd, "content", "output")
	AddFlagValidation(syncCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"table", "json"})
	})
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	service := services.NewSyncService(cfg, newLogger(cfg))
	result, err := service.Sync(cmd.Context(), services.SyncOptions{Slugs: args})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	switch syncFlags.OutputFormat {
	case "json":
		err = writeSyncJSON(cmd.OutOrStdout(), result)
	default:
		err = writeSyncTable(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("%d asset(s) could not be copied", result.Failed)
	}
	return nil
}

type syncReference struct {
	Kind   string `json:"kind"`
	Ref    string `json:"ref"`
	Action string `json:"action"`
}

func writeSyncJSON(w io.Writer, result *services.SyncResult) error {
	docs := make(map[string][]syncReference, len(result.Reports))
	for slug, report := range result.Reports {
		refs := make([]syncReference, 0, len(report.References))
		for _, ref := range report.References {
			refs = append(refs, syncReference{Kind: string(ref.Kind), Ref: ref.Ref, Action: ref.Action.String()})
		}
		docs[slug] = refs
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"documents":  result.Documents,
		"copied":     result.Copied,
		"up_to_date": result.UpToDate,
		"missing":    result.Missing,
		"failed":     result.Failed,
		"references": docs,
	})
}

func writeSyncTable(w io.Writer, result *services.SyncResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tKIND\tREFERENCE\tACTION")

	slugs := make([]string, 0, len(result.Reports))
	for slug := range result.Reports {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		for _, ref := range result.Reports[slug].References {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", slug, ref.Kind, ref.Ref, ref.Action)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d document(s): %d copied, %d up to date, %d missing, %d failed\n",
		result.Documents, result.Copied, result.UpToDate, result.Missing, result.Failed)
	return err
}
