// Command compared serves the product comparison API.
//
// @title          Compare API
// @version        1.0
// @description    Product comparison arbitration service: pair extraction, provider quota, result caching and deduplicated persistence.
// @BasePath       /api/v1
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-compare-backend/internal/config"
	"github.com/tbourn/go-compare-backend/internal/sysutil"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:           "compared",
	Short:         "Product comparison backend",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")
	rootCmd.AddCommand(serveCmd, migrateCmd, askCmd)
}

// loadConfig reads the dotenv file, loads and validates configuration and
// sets up the global logger.
func loadConfig() (config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return config.Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	sysutil.ConfigureLogging(cfg.LogLevel, cfg.LogPretty, nil)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
