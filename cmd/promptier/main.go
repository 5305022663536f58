// Package main implements the promptier CLI: render prompt files to final
// text with provenance, and lint them against the rule registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeanShandler123/promptier/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "promptier",
	Short: "Compose, render, and lint system prompts",
	Long: `promptier assembles system prompts from typed sections and reusable
fragments, tracks the provenance of every character in the output, and runs
a configurable rule registry over the result.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Initialize(logLevel)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(lintCmd)
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
