package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cmscore",
	Short: "Headless content store with versioned items and typed schemas",
	Long: `cmscore stores content items against typed, versioned schemas.

Models own a schema of typed fields. Items are versioned with a linear
history, move between draft, review and public states, reference items
of other models and can be searched with condition trees or saved views.

Quick start:
  cmscore schema lint blog.yaml   # Check a schema file
  cmscore schema apply blog.yaml  # Create its models and fields
  cmscore serve                   # Start the HTTP API

Configuration:
  cmscore validate                # Validate configuration`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "cmscore.yaml", "config file path")
}
