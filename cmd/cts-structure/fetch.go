// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cts-structure/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <urn>",
	Short: "Fetch the citation structure of a work and print it",
	Long: `Fetch resolves the edition of a work in its original language (Greek for
greekLit works, Latin otherwise), lists every valid reference at every
citation level, and prints the resulting structure. Progress lines go to
stderr so the output can be redirected.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("format", "json", "output format: json or yaml")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q: use json or yaml", format)
	}

	fetcher, err := newFetcher()
	if err != nil {
		return err
	}
	fetcher.Progress = os.Stderr

	ts, err := fetcher.Fetch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeStructure(cmd.OutOrStdout(), ts, format)
}

func writeStructure(w io.Writer, ts *types.TextStructure, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ts); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ts)
}
