package cmd

import (
	"encoding/csv"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/communitypulse/pulse/internal/history"
)

var (
	historyTail int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Print the metrics time series as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			store := history.NewStore(cfg.DataDir, logger)
			header, rows, err := store.Tail(historyTail)
			if err != nil {
				return err
			}

			w := csv.NewWriter(cmd.OutOrStdout())
			if err := w.Write(header); err != nil {
				return fmt.Errorf("writing header: %w", err)
			}
			if err := w.WriteAll(rows); err != nil {
				return fmt.Errorf("writing rows: %w", err)
			}
			w.Flush()
			return w.Error()
		},
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyTail, "tail", "n", 0, "print only the last N rows (0 = all)")
}
