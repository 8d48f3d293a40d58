package desctl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/desim/examples/pinggroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bundled ping-group model.",
	Long:  "`run` drives a small ping-group simulation and prints its termination report.",
	RunE:  runPingGroup,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("agents", 4, "number of agents in the ping group")
	runCmd.Flags().Float64("horizon", 50.0, "virtual time horizon")
	runCmd.Flags().Int64("seed", 1, "random seed for agent step sizes")
	runCmd.Flags().Float64("interrupt-at", 0, "interrupt a peer once virtual time reaches this value (0 disables)")
	runCmd.Flags().Int("monitor-port", 0, "start a monitoring server on this port (0 disables)")
	runCmd.Flags().Bool("verbose", false, "log every delivery, interrupt and termination")
	runCmd.Flags().Duration("watchdog-interval", 0, "override the idle-detection sampling cadence (0 keeps the default)")
	runCmd.Flags().String("trace-db", "", "persist delivery/interrupt/termination records to a SQLite database at this path")
}

func runPingGroup(cmd *cobra.Command, _ []string) error {
	numAgents, err := cmd.Flags().GetInt("agents")
	if err != nil {
		return err
	}
	horizon, err := cmd.Flags().GetFloat64("horizon")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}
	interruptAt, err := cmd.Flags().GetFloat64("interrupt-at")
	if err != nil {
		return err
	}
	monitorPort, err := cmd.Flags().GetInt("monitor-port")
	if err != nil {
		return err
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	watchdogInterval, err := cmd.Flags().GetDuration("watchdog-interval")
	if err != nil {
		return err
	}
	traceDB, err := cmd.Flags().GetString("trace-db")
	if err != nil {
		return err
	}

	cfg := pinggroup.Config{
		NumAgents:        numAgents,
		Horizon:          horizon,
		Seed:             seed,
		InterruptAt:      interruptAt,
		MonitorPort:      monitorPort,
		Verbose:          verbose,
		WatchdogInterval: watchdogInterval,
		TraceDBPath:      traceDB,
		OnMonitorReady: func(addr string) {
			fmt.Fprintf(cmd.OutOrStdout(), "monitoring server listening on %s\n", addr)
		},
	}

	result := pinggroup.Run(cfg)

	fmt.Fprintf(cmd.OutOrStdout(), "termination: %s\n", result.Report.Termination)
	fmt.Fprintf(cmd.OutOrStdout(), "final time: %.4f\n", result.Report.FinalTime)
	fmt.Fprintf(cmd.OutOrStdout(), "events popped: %d\n", result.Report.EventsPopped)

	for _, a := range result.Agents {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: ticks=%d err=%v\n", a.Name, a.Ticks, a.Err)
	}

	return nil
}
