package main

import (
	"fmt"
	"strings"

	"github.com/sgostarter/i/l"
	"github.com/spf13/cobra"

	"github.com/shiwa/sigbroker/pkg/broker"
	"github.com/shiwa/sigbroker/pkg/cycle"
	"github.com/shiwa/sigbroker/pkg/typedesc"
)

var (
	simulateCount int

	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Run the ramp source through the broker and print every cycle",
		Args:  cobra.NoArgs,
		RunE:  runSimulate,
	}
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Source.Protocol = "ramp"
	cfg.Cycle.Count = simulateCount
	cfg.Metrics.Listen = ""

	out := cmd.OutOrStdout()
	ctx, cancel := withShutdown()
	defer cancel()
	return cycle.RunDaemon(ctx, cfg, cycle.Options{
		Quiet:  quiet,
		Logger: l.NewNopLoggerWrapper(),
		Sink: func(r cycle.Report) {
			fmt.Fprintln(out, formatReport(r))
		},
	})
}

// formatReport — одна строка: номер цикла, виртуальное время, значения входов
func formatReport(r cycle.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%4d vt=%-10g", r.Cycle, r.Stats.VirtualTime)
	for i, s := range r.Function.Signals(broker.InputSignals) {
		mem := r.Function.SignalMemory(broker.InputSignals, i)
		load, _ := typedesc.Float64Loader(s.Type)
		vals := make([]string, 0, s.NumberOfElements())
		for n := 0; n < s.NumberOfElements(); n++ {
			vals = append(vals, fmt.Sprint(load(mem[n*s.Type.Size():])))
		}
		fmt.Fprintf(&sb, " %s=%s", s.Name, strings.Join(vals, ","))
	}
	if r.Err != nil {
		fmt.Fprintf(&sb, " err=%v", r.Err)
	}
	return sb.String()
}
