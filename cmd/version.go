package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/otus/internal/daemon"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the countersyncd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(daemon.Version)
	},
}
