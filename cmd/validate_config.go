package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/otus/internal/config"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate a countersyncd configuration file",
	Long: `Validate loads the countersyncd YAML configuration file (the same
one "run" reads), applying defaults and environment overrides, and
reports the resolved settings without starting any actor.

Examples:
  countersyncd validate-config -c /etc/countersyncd/config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateConfigCommand()
	},
}

func runValidateConfigCommand() {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Printf("INVALID: %v\n", err)
		exitWithError("configuration is invalid", err)
	}

	fmt.Printf("VALID: %s\n", configFile)
	fmt.Printf("  genl family=%q group=%q\n",
		cfg.Constants.HighFrequencyTelemetry.GenlFamily,
		cfg.Constants.HighFrequencyTelemetry.GenlMulticastGroup)
	fmt.Printf("  counter_db enabled=%v interval=%s\n", cfg.CounterDB.Enabled, cfg.CounterDB.Interval)
	fmt.Printf("  report enabled=%v interval=%s detailed=%v max_entries=%d\n",
		cfg.Report.Enabled, cfg.Report.Interval, cfg.Report.Detailed, cfg.Report.MaxEntries)
	fmt.Printf("  session_db socket=%q db_id=%d table=%q\n", cfg.SessionDB.Socket, cfg.SessionDB.DBID, cfg.SessionDB.Table)
	fmt.Printf("  counter_store socket=%q db_id=%d\n", cfg.CounterStore.Socket, cfg.CounterStore.DBID)
	fmt.Printf("  control socket=%q pid_file=%q\n", cfg.Control.Socket, cfg.Control.PIDFile)
	fmt.Printf("  metrics addr=%q path=%q\n", cfg.Metrics.Addr, cfg.Metrics.Path)
}
