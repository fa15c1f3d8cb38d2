// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var populateCmd = &cobra.Command{
	Use:   "populate [files...]",
	Short: "Load downloaded structures into the knowledge base",
	Long: `Populate reads structure JSON files and stores each work with its citation
levels and text elements. With no arguments every *.json file in --data-dir
is loaded. Unchanged structures are skipped, changed ones are replaced, and
export.yaml is rewritten when anything changed.`,
	RunE: runPopulate,
}

func init() {
	populateCmd.Flags().String("data-dir", defaultOutputDir, "directory of downloaded structure files")
	rootCmd.AddCommand(populateCmd)
}

func runPopulate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	var failed int
	if len(args) > 0 {
		summary, err := store.PopulateFiles(ctx, args, os.Stdout)
		if err != nil {
			return err
		}
		failed = summary.Failed
	} else {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		summary, err := store.PopulateDir(ctx, dataDir, os.Stdout)
		if err != nil {
			return err
		}
		failed = summary.Failed
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed populating", failed)
	}
	return nil
}
