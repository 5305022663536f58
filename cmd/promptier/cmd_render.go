package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeanShandler123/promptier/internal/logging"
	"github.com/DeanShandler123/promptier/internal/prompt"
)

var (
	renderShowMeta       bool
	renderShowProvenance bool
	renderOutput         string
)

var renderCmd = &cobra.Command{
	Use:   "render <prompt-file>",
	Short: "Render a prompt file to final text",
	Long: `Render resolves placeholders and dynamic sections, orders sections for
cache stability, and assembles the final prompt text. Use --meta for the
render metadata as JSON and --provenance for a per-line origin report.`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderShowMeta, "meta", false, "print render metadata as JSON to stderr")
	renderCmd.Flags().BoolVar(&renderShowProvenance, "provenance", false, "print a per-line provenance report to stderr")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write rendered text to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	log := logging.Get(logging.CategoryRender)

	p, pf, err := loadPromptFile(args[0])
	if err != nil {
		return err
	}

	rc := prompt.NewRenderContext(pf.Context)
	result, err := prompt.NewRenderer().Render(cmd.Context(), p, rc)
	if err != nil {
		return err
	}
	for _, w := range result.Meta.Warnings {
		log.Warn("render warning: %s", w)
	}

	if renderOutput != "" {
		if err := os.WriteFile(renderOutput, []byte(result.Text), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	} else {
		fmt.Println(result.Text)
	}

	if renderShowMeta {
		data, err := json.MarshalIndent(result.Meta, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		fmt.Fprintln(os.Stderr, string(data))
	}
	if renderShowProvenance {
		fmt.Fprintln(os.Stderr, result.Table.Visualize(result.Text))
	}
	return nil
}
