// Package cmd provides the CLI commands for hiro.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kwkeefer/hiro/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hiro",
	Short: "hiro - MCP tool server for security research",
	Long: `hiro exposes a curated set of MCP tools for offensive security
research: issue HTTP requests against a target, track testing missions
and the techniques tried against them, and recall what has worked
before on similar targets.

Quick start:
  1. Create a config file: hiro.yaml
  2. Run: hiro serve

Configuration is loaded from hiro.yaml in the current directory,
$HOME/.hiro/, or /etc/hiro/. Environment variables can override config
values with the HIRO_ prefix, e.g. HIRO_SERVER_TRANSPORT=http.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./hiro.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
