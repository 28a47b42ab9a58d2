package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"crewplan/internal/metrics"
	"crewplan/internal/opt"
	"crewplan/internal/transform"
)

func newSolveCmd(a *app, mode transform.Mode, short string) *cobra.Command {
	c := &cobra.Command{
		Use:   string(mode),
		Short: short,
		Args:  func(cmd *cobra.Command, args []string) error { return usage(cobra.NoArgs(cmd, args)) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString("input")
			progress, _ := cmd.Flags().GetBool("progress")
			return a.solve(cmd, mode, input, progress)
		},
	}
	c.Flags().StringP("input", "i", "", "read the request from this file instead of stdin")
	c.Flags().Bool("progress", false, "log improving solutions while solving")
	return c
}

func (a *app) solve(cmd *cobra.Command, mode transform.Mode, input string, progress bool) error {
	r := a.in
	if input != "" {
		f, err := os.Open(input)
		if err != nil {
			return usage(err)
		}
		defer f.Close()
		r = f
	}
	p, err := transform.Decode(r)
	if err != nil {
		return err
	}

	pl := opt.NewPlanner(a.log)
	if progress {
		every := rate.Sometimes{Interval: 500 * time.Millisecond}
		pl = pl.WithProgress(func(pr opt.Progress) {
			every.Do(func() {
				a.log.Info().Str("runId", pr.RunID).Str("stage", pr.Stage).Int("leg", pr.Leg).
					Float64("objective", pr.Objective).Dur("elapsed", pr.Elapsed).Msg("progress")
			})
		})
	}

	started := time.Now()
	out, err := transform.Run(cmd.Context(), pl, mode, p, a.cfg.Options)
	a.exportMetrics()
	if err != nil {
		metrics.Failures.WithLabelValues(string(opt.KindOf(err))).Inc()
		return err
	}
	a.log.Debug().Str("mode", string(mode)).Dur("elapsed", time.Since(started)).Msg("planned")
	return writeOutput(a.out, out)
}

func writeOutput(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// exportMetrics writes or pushes the registry when configured. Export
// failures are logged and never change the exit code.
func (a *app) exportMetrics() {
	if path := a.cfg.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			a.log.Warn().Err(err).Msg("metrics textfile")
		}
	}
	if url := a.cfg.PushGateway; url != "" {
		if err := metrics.Push(url, "crewsolver"); err != nil {
			a.log.Warn().Err(err).Msg("metrics push")
		}
	}
}
