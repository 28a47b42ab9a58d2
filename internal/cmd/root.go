package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crewplan/internal/config"
	"crewplan/internal/logging"
	"crewplan/internal/opt"
	"crewplan/internal/transform"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitSolve = 1 // no feasible plan or internal failure
	ExitInput = 2 // invalid input or usage
)

// app carries what the subcommands share once flags and config are loaded.
type app struct {
	in       io.Reader
	out, err io.Writer

	cfg *config.Config
	log zerolog.Logger
}

// flagKeys maps persistent flags to config keys.
var flagKeys = map[string]string{
	"seed":         "options.seed",
	"workers":      "options.workers",
	"time-limit":   "options.timeLimitSeconds",
	"metrics-file": "metricsFile",
	"push-gateway": "pushGateway",
	"log-level":    "logLevel",
	"log-format":   "logFormat",
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "crewsolver",
		Short: "Balloon camp vehicle grouping and crew planner",
		Long: `crewsolver reads one JSON request from stdin (or --input) and writes
the planned vehicle groups or crews as JSON to stdout. Failures are written
to stderr as {"error":{"kind","message"}} with exit code 2 for invalid input
and 1 when no plan exists.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			for name, key := range flagKeys {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
					return err
				}
			}
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return usage(err)
			}
			log, err := logging.New(a.err, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return usage(err)
			}
			a.cfg, a.log = cfg, log.With().Str("cmd", cmd.Name()).Logger()
			return nil
		},
	}
	root.Args = func(cmd *cobra.Command, args []string) error {
		return usage(cobra.NoArgs(cmd, args))
	}
	root.RunE = func(cmd *cobra.Command, _ []string) error { return cmd.Help() }
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usage(err) })
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.err)

	d := opt.DefaultOptions()
	f := root.PersistentFlags()
	f.StringP("config", "c", "", "config file (YAML or JSON)")
	f.Int64("seed", d.Seed, "random seed for tiebreaks and search")
	f.Int("workers", d.Workers, "parallel search workers")
	f.Float64("time-limit", d.TimeLimitSeconds, "solver time limit in seconds per stage")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile after solving")
	f.String("push-gateway", "", "push Prometheus metrics to this pushgateway URL after solving")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-format", "json", "log format (json or console)")

	root.AddCommand(
		newSolveCmd(a, transform.ModeGroups, "Build balloon/car groups"),
		newSolveCmd(a, transform.ModeLeg, "Assign crews for one flight leg"),
		newSolveCmd(a, transform.ModeCampaign, "Plan several consecutive legs"),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs crewsolver with args and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) (code int) {
	a := &app{in: in, out: out, err: errOut, log: zerolog.Nop()}
	defer func() {
		if r := recover(); r != nil {
			code = fail(a, fmt.Errorf("%w: panic: %v", opt.ErrInconsistent, r), debug.Stack())
		}
	}()
	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var stack []byte
		if opt.KindOf(err) == opt.KindInternal {
			stack = debug.Stack()
		}
		return fail(a, err, stack)
	}
	return ExitOK
}

func usage(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", opt.ErrValidation, err)
}

func fail(a *app, err error, stack []byte) int {
	f := transform.NewFailure(err, stack)
	_ = json.NewEncoder(a.err).Encode(f)
	if f.Error.Kind == opt.KindInput {
		return ExitInput
	}
	return ExitSolve
}
