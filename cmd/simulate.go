package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/hardware"
	"github.com/kilianp07/batsim/infra/logger"
	"github.com/kilianp07/batsim/infra/telemetry"
)

type simulateOptions struct {
	profile  string
	loadMA   float64
	step     time.Duration
	duration time.Duration
	output   string
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an offline fixed-step discharge with a constant load",
		Long: "Steps the model with simulated time, writing one CSV row per step. " +
			"The run ends when the battery is depleted or --duration has elapsed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return simulate(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.profile, "profile", "", "battery profile file (default: built-in cell)")
	f.Float64Var(&opts.loadMA, "load-ma", 1000, "constant load current in mA")
	f.DurationVar(&opts.step, "step", time.Second, "simulated time per step")
	f.DurationVar(&opts.duration, "duration", 0, "stop after this much simulated time (0: until depleted)")
	f.StringVarP(&opts.output, "output", "o", "", "CSV output file (default: stdout)")
	return cmd
}

func simulate(cmd *cobra.Command, opts *simulateOptions) error {
	if opts.step <= 0 {
		return errors.New("--step must be positive")
	}
	if opts.duration <= 0 && opts.loadMA <= 0 {
		return errors.New("--duration is required when the load does not discharge")
	}
	params := battery.DefaultParameters()
	if opts.profile != "" {
		p, err := battery.LoadProfile(opts.profile)
		if err != nil {
			return err
		}
		params = p
	}

	var sink *telemetry.CSVSink
	var err error
	if opts.output == "" {
		sink, err = telemetry.NewCSVSink(writerOnly{cmd.OutOrStdout()})
	} else {
		sink, err = telemetry.NewCSVFileSink(telemetry.FileConfig{Path: opts.output})
	}
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	clock := time.Now()
	eng, err := engine.New(params, hardware.NewSimulated(opts.loadMA), sink,
		engine.WithLogger(logger.NewZerologLoggerWithWriter("simulate", cmd.ErrOrStderr())),
		engine.WithClock(func() time.Time { return clock }),
	)
	if err != nil {
		return err
	}
	defer eng.Close()
	if err := eng.Start(); err != nil {
		return err
	}

	ctx := cmd.Context()
	var (
		elapsed time.Duration
		steps   int
		last    engine.State
	)
	for opts.duration <= 0 || elapsed < opts.duration {
		if err := ctx.Err(); err != nil {
			break
		}
		clock = clock.Add(opts.step)
		elapsed += opts.step
		if _, err := eng.Step(ctx, opts.step.Seconds()); err != nil {
			return err
		}
		steps++
		last = eng.State()
		if last.RunState == engine.Depleted {
			break
		}
	}
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "%d steps, %s simulated, %s, soc %.2f%%, remaining %.3f mAh\n",
		steps, elapsed, last.RunState, last.StateOfChargePct, last.RemainingCapacityMAh())
	return err
}

// writerOnly hides Close so the sink leaves stdout open.
type writerOnly struct{ io.Writer }
