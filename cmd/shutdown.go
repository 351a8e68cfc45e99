package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/otus/internal/command"
	"firestige.xyz/otus/internal/daemon"
)

var shutdownForce bool

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Request a graceful shutdown of the running daemon",
	Long: `Shutdown asks the daemon to stop over its control socket and returns
once the daemon acknowledges the request; it does not wait for the
process to exit. With --force, it signals the process directly via its
PID file instead (used when the control socket itself is unresponsive).`,
	Run: func(cmd *cobra.Command, args []string) {
		runShutdownCommand()
	},
}

func init() {
	shutdownCmd.Flags().BoolVar(&shutdownForce, "force", false, "signal the daemon process directly via its PID file")
}

func runShutdownCommand() {
	if shutdownForce {
		if err := daemon.StopDaemon(socketPath, pidFile); err != nil {
			exitWithError("failed to stop daemon", err)
		}
		fmt.Println("daemon stopped")
		return
	}

	client := command.NewUDSClient(socketPath, 10*time.Second)
	ctx := context.Background()

	resp, err := client.Shutdown(ctx)
	if err != nil {
		exitWithError("failed to request shutdown", err)
	}
	if resp.Error != nil {
		exitWithError(fmt.Sprintf("shutdown failed: %s", resp.Error.Message), nil)
	}
	fmt.Println("shutdown requested")
}
