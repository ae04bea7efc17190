package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/pipeline"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUESTION [QUESTION...]",
		Short: "Translate questions to SQL, run them and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, err := cmd.Flags().GetInt("concurrency")
			if err != nil {
				return fmt.Errorf("failed to get concurrency flag: %w", err)
			}
			clarification, err := cmd.Flags().GetString("clarification")
			if err != nil {
				return fmt.Errorf("failed to get clarification flag: %w", err)
			}
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return fmt.Errorf("failed to get output flag: %w", err)
			}
			if len(args) > 1 && (clarification != "" || output != "") {
				return fmt.Errorf("--clarification and --output take a single question")
			}

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			p, executor, err := e.pipeline()
			if err != nil {
				return err
			}
			defer executor.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w := cmd.OutOrStdout()
			if len(args) == 1 {
				res, err := p.Run(ctx, args[0], clarification)
				if err != nil {
					return err
				}
				if err := printRun(w, res); err != nil {
					return err
				}
				if output != "" && res.Execution != nil {
					return writeSpreadsheet(output, res.Execution)
				}
				return nil
			}

			results, err := p.RunBatch(ctx, args, concurrency)
			if err != nil {
				return err
			}
			return printBatch(w, results)
		},
	}

	cmd.Flags().Int("concurrency", 4, "maximum questions answered at once")
	cmd.Flags().String("clarification", "", "answer to a clarification question from a previous run")
	cmd.Flags().StringP("output", "o", "", "write the result to this xlsx file")

	return cmd
}

func printRun(w io.Writer, res *pipeline.RunResult) error {
	switch res.Interpretation.Status {
	case pipeline.StatusClarificationNeeded:
		fmt.Fprintf(w, "Clarification needed: %s\n", res.Interpretation.Question)
		fmt.Fprintln(w, "Run again with --clarification to answer it.")
		return nil
	case pipeline.StatusCannotAnswer:
		fmt.Fprintln(w, "This question cannot be answered from the budget data.")
		return nil
	}

	fmt.Fprintf(w, "SQL: %s\n\n", res.Interpretation.SQL)
	if res.Execution != nil {
		header, rows, err := export.ParseDelimited(res.Execution.CSV)
		if err != nil {
			return fmt.Errorf("failed to read result: %w", err)
		}
		export.RenderTable(w, header, rows)
		fmt.Fprintf(w, "%d rows\n", len(rows))
	}
	if res.Observations != "" {
		fmt.Fprintf(w, "\n%s\n", res.Observations)
	}
	return nil
}

func printBatch(w io.Writer, results []pipeline.BatchResult) error {
	var failed int
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s\n", r.Query)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "Error: %v\n", r.Err)
			continue
		}
		if err := printRun(w, r.Result); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(results))
	}
	return nil
}

func writeSpreadsheet(path string, exec *pipeline.Execution) error {
	data, err := pipeline.SpreadsheetFor(exec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
