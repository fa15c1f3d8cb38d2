// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the cts-structure CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/cts-structure/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

var rootCmd = &cobra.Command{
	Use:   "cts-structure",
	Short: "Fetch and index the citation structure of classical texts",
	Long: `cts-structure queries a Canonical Text Services endpoint for the
citation structure of a work: its citation levels and every valid reference
with parent and neighbour links.

Structures are printed (fetch), written as JSON files (download), and loaded
into a local knowledge base (populate, knowledge).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(secrets.DefaultDir, os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./cts-structure.yaml or ~/.config/cts-structure/cts-structure.yaml)")
	pf.String("endpoint", "", "CTS API endpoint (default "+defaultEndpointHelp+")")
	pf.Duration("timeout", defaultTimeout, "HTTP request timeout")
	pf.String("user-agent", defaultUserAgent, "User-Agent sent to the CTS endpoint")
	pf.Int("max-retries", 0, "retries on HTTP 429/503; the default 0 sends each request once with no backoff")
	pf.Int("cache-size", 0, "work metadata cache entries (0 = default, negative disables)")
	pf.String("knowledge-dir", "knowledge", "base directory for the knowledge base (contains index/)")
	pf.String("driver", "sqlite3", "knowledge base driver: sqlite3 or pgx")
	pf.String("dsn", "", "database connection string for the pgx driver")

	bindFlag("endpoint", "endpoint")
	bindFlag("timeout", "timeout")
	bindFlag("user_agent", "user-agent")
	bindFlag("max_retries", "max-retries")
	bindFlag("cache_size", "cache-size")
	bindFlag("knowledge_dir", "knowledge-dir")
	bindFlag("driver", "driver")
	bindFlag("dsn", "dsn")
}

// bindFlag binds a persistent root flag to a viper key.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func initConfig() {
	// A missing .env is fine; other errors are worth a notice.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cts-structure")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cts-structure"))
		}
	}

	viper.SetEnvPrefix("CTS_STRUCTURE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
