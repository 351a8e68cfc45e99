package daemon

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// StopDaemon signals the daemon owning pidFile to shut down and waits
// briefly for it to clean up its socket and PID file. Used by the
// "shutdown --force" CLI path when the control socket itself is
// unresponsive and the JSON-RPC shutdown command cannot be delivered.
func StopDaemon(socketPath, pidFile string) error {
	pid, err := readPidFile(pidFile)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	time.Sleep(500 * time.Millisecond)
	os.Remove(socketPath)
	os.Remove(pidFile)
	return nil
}

func readPidFile(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}
