package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/affect-demo/history"
	"github.com/maastricht-university/affect-demo/logging"
	"github.com/maastricht-university/affect-demo/orchestrator"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the biosignal + video pipeline and write all artifacts",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := ctx.settings()
			if err != nil {
				return err
			}
			for key, flag := range map[string]string{
				"inputs.csv":              "csv",
				"inputs.video":            "video",
				"paths.outputs":           "out",
				"paths.history":           "history",
				"fusion.biosignal_weight": "bio-weight",
				"fusion.visual_weight":    "visual-weight",
				"fusion.strategy":         "strategy",
				"pipeline.log_level":      "log-level",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("bind --%s: %w", flag, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.config()
			if err != nil {
				return err
			}
			log, err := logging.New(c.Pipeline.LogLvl, c.Pipeline.LogFormat, os.Stderr)
			if err != nil {
				return err
			}

			var opts []orchestrator.Option
			if c.Paths.History != "" {
				store, err := history.Open(c.Paths.History)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, orchestrator.WithHistory(store))
			}

			p := orchestrator.NewPipeline(c, log, opts...)
			p.Init(cmd.Context())
			res, err := p.Run(cmd.Context(), c.Inputs.CSV, c.Inputs.Video)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Modality", "Predictions"},
				[][]string{
					{"biosignal", strconv.Itoa(res.Biosignal)},
					{"visual", strconv.Itoa(res.Visual)},
					{"fused", strconv.Itoa(res.Fused)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			for _, e := range res.StageErrors {
				fmt.Fprintf(out, "stage %s failed (%s): %s\n", e.Stage, e.Kind, e.Message)
			}
			fmt.Fprintf(out, "Run %s finished in %s, outputs in %s\n",
				res.RunID, res.Elapsed.Round(time.Millisecond), res.OutputDir)
			return cmd.Context().Err()
		},
	}

	cmd.Flags().String("csv", "", "PPG CSV export (timestamp, ppg_gr)")
	cmd.Flags().String("video", "", "Video file with the subject's face")
	cmd.Flags().StringP("out", "o", "", "Output directory for predictions and summary")
	cmd.Flags().String("history", "", "SQLite file recording every run")
	cmd.Flags().Float64("bio-weight", 0, "Biosignal fusion weight")
	cmd.Flags().Float64("visual-weight", 0, "Visual fusion weight")
	cmd.Flags().String("strategy", "", "Fusion strategy: weighted_average or confidence_weighted")
	cmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	return cmd
}
