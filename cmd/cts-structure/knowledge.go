// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/cts-structure/internal/cts"
	"github.com/pdiddy/cts-structure/internal/knowledge"
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Query and export the knowledge base",
	Long: `Knowledge reads the structures stored by populate. Use subcommands to list
stored works, show a work or a single text element, or export everything.`,
}

// --- list subcommand ---

var knowledgeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored structures",
	RunE:  runKnowledgeList,
}

func runKnowledgeList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatList(os.Stdout, list, jsonOutput)
}

func formatList(w io.Writer, list []knowledge.Summary, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(w, "No structures stored.")
		return nil
	}

	fmt.Fprintf(w, "%-45s  %-6s  %-8s  %s\n", "URN", "Levels", "Elements", "Populated")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, s := range list {
		urn := s.URN
		if len(urn) > 45 {
			urn = urn[:42] + "..."
		}
		fmt.Fprintf(w, "%-45s  %-6d  %-8d  %s\n", urn, s.Levels, s.Elements, s.PopulatedAt)
	}
	fmt.Fprintf(w, "\n%d structures\n", len(list))
	return nil
}

// --- retrieve subcommand ---

var knowledgeRetrieveCmd = &cobra.Command{
	Use:   "retrieve <urn>",
	Short: "Show a stored structure or text element",
	Long: `Retrieve prints the stored structure of a work URN. A URN with a passage
(e.g. urn:cts:greekLit:tlg0012.tlg001:1.2) prints that text element and its
children instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runKnowledgeRetrieve,
}

func runKnowledgeRetrieve(cmd *cobra.Command, args []string) error {
	u, err := cts.ParseURN(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if u.Passage == "" {
		ts, err := store.Structure(ctx, u.String())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(os.Stdout, ts)
		}
		return writeStructure(os.Stdout, ts, "yaml")
	}

	e, err := store.Element(ctx, u.String())
	if errors.Is(err, knowledge.ErrNotFound) {
		return fmt.Errorf("%s: %w (run populate first)", u, err)
	}
	if err != nil {
		return err
	}
	children, err := store.Children(ctx, e.Current)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, struct {
			*knowledge.Element
			Children any `json:"children"`
		}{e, children})
	}

	fmt.Printf("%s\n  work:      %s\n  level:     %d (%s), position %d\n",
		e.Current, e.StructureURN, e.Level, e.Label, e.Position)
	fmt.Printf("  parent:    %s\n  previous:  %s\n  following: %s\n",
		orNone(e.Parent), orNone(e.Previous), orNone(e.Following))
	fmt.Printf("  children:  %d\n", len(children))
	for _, c := range children {
		fmt.Printf("    %s\n", c.Current)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// --- export subcommand ---

var knowledgeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the knowledge base to YAML or JSON",
	Long: `Export writes every stored structure to knowledge/index/export.yaml or
export.json.`,
	RunE: runKnowledgeExport,
}

func runKnowledgeExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	switch format {
	case "yaml", "":
		if err := store.ExportYAML(ctx); err != nil {
			return err
		}
		fmt.Println("Exported to", store.ExportPath("export.yaml"))
	case "json":
		if err := store.ExportJSON(ctx); err != nil {
			return err
		}
		fmt.Println("Exported to", store.ExportPath("export.json"))
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	knowledgeListCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeRetrieveCmd.Flags().Bool("json", false, "output as JSON")
	knowledgeExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	knowledgeCmd.AddCommand(knowledgeListCmd)
	knowledgeCmd.AddCommand(knowledgeRetrieveCmd)
	knowledgeCmd.AddCommand(knowledgeExportCmd)

	rootCmd.AddCommand(knowledgeCmd)
}
