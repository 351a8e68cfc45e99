package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/otus/internal/command"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running daemon's status and counters",
	Long: `Query the countersyncd control socket's stats_snapshot method and
print the returned daemon statistics as JSON.`,
	Run: func(cmd *cobra.Command, args []string) {
		runStatusCommand()
	},
}

func runStatusCommand() {
	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	if err := client.Ping(ctx); err != nil {
		exitWithError("daemon is not running or socket is inaccessible", err)
	}

	resp, err := client.StatsSnapshot(ctx)
	if err != nil {
		exitWithError("failed to query daemon stats", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("stats_snapshot failed: %s", resp.Error.Message), nil)
	}

	resultJSON, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		exitWithError("failed to format result", err)
	}
	fmt.Println(string(resultJSON))
}
