// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cts-structure/internal/structure"
	"github.com/pdiddy/cts-structure/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download <urn>...",
	Short: "Download citation structures as JSON files",
	Long: `Download fetches the structure of each work and writes it to
<output-dir>/<urn with colons replaced by hyphens>.json, replacing any
existing file. A work whose structure cannot be fetched is reported and no
file is written for it. With --publish every written file is also uploaded
to the configured S3-compatible bucket.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("output-dir", defaultOutputDir, "directory for structure files")
	downloadCmd.Flags().Duration("delay", 0, "delay between consecutive works")
	downloadCmd.Flags().Bool("publish", false, "upload written files to the publish bucket")

	_ = viper.BindPFlag("output_dir", downloadCmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("delay", downloadCmd.Flags().Lookup("delay"))
	_ = viper.BindPFlag("publish.enabled", downloadCmd.Flags().Lookup("publish"))

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more work URNs")
	}

	cfg := types.DownloadConfig{
		OutputDir: viper.GetString("output_dir"),
		Delay:     viper.GetDuration("delay"),
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}

	fetcher, err := newFetcher()
	if err != nil {
		return err
	}

	d := &structure.Downloader{
		Fetcher:   fetcher,
		OutputDir: cfg.OutputDir,
		Delay:     cfg.Delay,
	}
	if viper.GetBool("publish.enabled") {
		pub, err := newPublisher()
		if err != nil {
			return err
		}
		d.Publisher = pub
	}

	result := d.DownloadBatch(cmd.Context(), args, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d work(s) failed download", result.Failed)
	}
	return nil
}
