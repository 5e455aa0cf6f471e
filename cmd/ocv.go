package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/batsim/config"
	"github.com/kilianp07/batsim/core/battery"
)

type ocvOptions struct {
	root    *rootOptions
	profile string
	table   string
	strict  bool
}

func newOCVCmd(root *rootOptions) *cobra.Command {
	opts := &ocvOptions{root: root}
	ocv := &cobra.Command{
		Use:   "ocv",
		Short: "Inspect open-circuit voltage tables",
	}
	ocv.PersistentFlags().StringVar(&opts.profile, "profile", "", "battery profile file")
	ocv.PersistentFlags().StringVar(&opts.table, "table", "", "comma separated list of 101 voltages (mV)")

	lookup := &cobra.Command{
		Use:   "lookup <soc>",
		Short: "Print the open-circuit voltage at a state of charge (percent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			soc, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("soc: %w", err)
			}
			values, err := opts.values()
			if err != nil {
				return err
			}
			tbl, err := battery.NewOCVTable(values)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%g\n", tbl.Lookup(soc))
			return err
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the length and monotonicity of a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := opts.values()
			if err != nil {
				return err
			}
			if _, err := battery.NewOCVTable(values); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			mono := battery.IsMonotonic(values)
			if _, err := fmt.Fprintf(out, "entries: %d\nrange: %g..%g mV\nmonotonic: %t\n",
				len(values), values[0], values[len(values)-1], mono); err != nil {
				return err
			}
			if !mono {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: table is not monotonic")
				if opts.strict {
					return errors.New("ocv table is not monotonic")
				}
			}
			return nil
		},
	}
	check.Flags().BoolVar(&opts.strict, "strict", false, "fail when the table is not monotonic")

	ocv.AddCommand(lookup, check)
	return ocv
}

// values resolves the table from --table, --profile, or the configured
// battery, in that order.
func (o *ocvOptions) values() ([]float64, error) {
	switch {
	case o.table != "":
		return battery.ParseOCVTable(o.table)
	case o.profile != "":
		p, err := battery.LoadProfile(o.profile)
		if err != nil {
			return nil, err
		}
		return p.OCVTable, nil
	}
	cfg, err := config.Load(o.root.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	p, err := cfg.Battery.Resolve()
	if err != nil {
		return nil, err
	}
	return p.OCVTable, nil
}
