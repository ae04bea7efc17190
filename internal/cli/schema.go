package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

const promptPreviewChars = 500

type SchemaCmd struct{}

func NewSchemaCmd() *SchemaCmd {
	return &SchemaCmd{}
}

func (c *SchemaCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the catalog and the interpretation prompt it produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := cmd.Flags().GetBool("full")
			if err != nil {
				return fmt.Errorf("failed to get full flag: %w", err)
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			cat, err := e.cfg.Catalog()
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			prompts, err := pipeline.LoadPrompts()
			if err != nil {
				return err
			}
			printSchema(cmd.OutOrStdout(), cat, prompts, full)
			return nil
		},
	}
	cmd.Flags().Bool("full", false, "print the whole prompt instead of a preview")
	return cmd
}

func printSchema(w io.Writer, c *catalog.Catalog, prompts *pipeline.Prompts, full bool) {
	fmt.Fprintf(w, "Dialect: %s\n\n", c.Dialect)
	fmt.Fprintln(w, c.FormatSchema())
	if h := c.FormatHierarchies(); h != "" {
		fmt.Fprintln(w, h)
	}

	prompt := prompts.BuildInterpretPrompt(c)
	fmt.Fprintf(w, "Prompt (%d chars):\n", len(prompt))
	if !full && len(prompt) > promptPreviewChars {
		prompt = prompt[:promptPreviewChars] + "..."
	}
	fmt.Fprintln(w, prompt)
}
