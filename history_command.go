package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/affect-demo/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous pipeline runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.config()
			if err != nil {
				return err
			}
			if c.Paths.History == "" {
				return errors.New("paths.history is not configured")
			}
			store, err := history.Open(c.Paths.History)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Strategy", "Bio", "Visual", "Fused", "Errors", "Elapsed"},
				historyRows(runs),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Strategy,
			strconv.Itoa(r.Biosignal),
			strconv.Itoa(r.Visual),
			strconv.Itoa(r.Fused),
			strconv.Itoa(r.StageErrors),
			r.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return rows
}
