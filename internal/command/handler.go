// Package command implements the operator control plane: a small JSON-RPC
// 2.0 method table served over the UDS control channel.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"firestige.xyz/otus/internal/log"
)

// ConfigReloader is the interface for reloading global configuration.
type ConfigReloader interface {
	Reload() error
}

// StatsProvider supplies the current snapshot of daemon-wide counters for
// the status/stats_snapshot commands. The daemon supervisor implements
// this against its actor set; it is the only coupling the control plane
// has to the running pipeline.
type StatsProvider interface {
	Snapshot() DaemonStats
}

// DaemonStats is the aggregate runtime picture exposed over the control
// channel (and, in JSON form, to `countersyncd status`).
type DaemonStats struct {
	PayloadsIngested  uint64         `json:"payloads_ingested"`
	RecordsDecoded    uint64         `json:"records_decoded"`
	DecodeErrors      uint64         `json:"decode_errors"`
	CounterWrites     uint64         `json:"counter_writes"`
	CounterWriteFails uint64         `json:"counter_write_fails"`
	ReportsEmitted    uint64         `json:"reports_emitted"`
	NetlinkReconnects uint64         `json:"netlink_reconnects"`
	ActorState        map[string]string `json:"actor_state"`
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	stats          StatsProvider
	configReloader ConfigReloader
	shutdownFunc   func()
	startTime      time.Time
	version        string
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(stats StatsProvider, reloader ConfigReloader, version string) *CommandHandler {
	return &CommandHandler{
		stats:          stats,
		configReloader: reloader,
		startTime:      time.Now(),
		version:        version,
	}
}

// SetShutdownFunc sets the callback invoked by the shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes (JSON-RPC 2.0 reserved range).
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	log.GetLogger().WithFields(map[string]interface{}{"method": cmd.Method, "id": cmd.ID}).Debug("handling command")

	switch cmd.Method {
	case "status":
		return h.handleStatus(ctx, cmd)
	case "stats_snapshot":
		return h.handleStatsSnapshot(ctx, cmd)
	case "config_reload":
		return h.handleConfigReload(ctx, cmd)
	case "shutdown":
		return h.handleShutdown(ctx, cmd)
	default:
		return Response{
			ID: cmd.ID,
			Error: &ErrorInfo{
				Code:    ErrCodeMethodNotFound,
				Message: fmt.Sprintf("method %q not found", cmd.Method),
			},
		}
	}
}

func (h *CommandHandler) handleStatus(_ context.Context, cmd Command) Response {
	snap := h.stats.Snapshot()
	return Response{
		ID: cmd.ID,
		Result: map[string]interface{}{
			"version":     h.version,
			"uptime_sec":  int64(time.Since(h.startTime).Seconds()),
			"actor_state": snap.ActorState,
		},
	}
}

func (h *CommandHandler) handleStatsSnapshot(_ context.Context, cmd Command) Response {
	return Response{ID: cmd.ID, Result: h.stats.Snapshot()}
}

func (h *CommandHandler) handleConfigReload(_ context.Context, cmd Command) Response {
	if h.configReloader == nil {
		return Response{
			ID:    cmd.ID,
			Error: &ErrorInfo{Code: ErrCodeInternalError, Message: "config reloader not available"},
		}
	}
	if err := h.configReloader.Reload(); err != nil {
		return Response{
			ID:    cmd.ID,
			Error: &ErrorInfo{Code: ErrCodeInternalError, Message: fmt.Sprintf("reload config failed: %v", err)},
		}
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "reloaded"}}
}

func (h *CommandHandler) handleShutdown(_ context.Context, cmd Command) Response {
	if h.shutdownFunc == nil {
		return Response{
			ID:    cmd.ID,
			Error: &ErrorInfo{Code: ErrCodeInternalError, Message: "shutdown handler not registered"},
		}
	}
	log.GetLogger().Info("shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // non-blocking: let the response be sent first
	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "shutting_down"}}
}
