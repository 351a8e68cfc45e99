package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/otus/internal/config"
	"firestige.xyz/otus/internal/daemon"
	"firestige.xyz/otus/internal/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the countersyncd daemon in the foreground",
	Long: `Run starts the five-actor pipeline (template source, data ingress,
liveness controller, IPFIX decoder, and counter store writer / periodic
reporter consumers) and blocks until it receives SIGTERM or SIGINT.
SIGHUP reloads the configuration file without stopping the pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func runDaemon() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if rootCmd.PersistentFlags().Changed("socket") {
		cfg.Control.Socket = socketPath
	}
	if rootCmd.PersistentFlags().Changed("pidfile") {
		cfg.Control.PIDFile = pidFile
	}

	if err := log.Init(log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Time:   cfg.Log.Time,
		File: log.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := log.GetLogger()

	d := daemon.New(cfg, configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := d.Reload(); err != nil {
					logger.WithError(err).Warn("config reload failed")
				}
			default:
				logger.WithField("signal", sig.String()).Info("shutdown signal received")
				cancel()
				return
			}
		}
	}()
	defer signal.Stop(sigCh)

	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon exited with error: %w", err)
	}
	return nil
}
