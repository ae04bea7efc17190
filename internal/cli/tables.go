package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/budgetquery/pkg/export"
	"github.com/malbeclabs/budgetquery/pkg/store"
)

type TablesCmd struct{}

func NewTablesCmd() *TablesCmd {
	return &TablesCmd{}
}

func (c *TablesCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			executor, err := store.New(e.cfg.Store(e.log))
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer executor.Close()

			tables, err := executor.Tables(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []string{t})
			}
			export.RenderTable(cmd.OutOrStdout(), []string{"Table"}, rows)
			return nil
		},
	}
}
