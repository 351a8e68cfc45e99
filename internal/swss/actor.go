package swss

import (
	"context"
	"strings"
	"time"

	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/log"
)

const (
	streamStatusEnabled = "enabled"
	sessionTypeIPFIX    = "ipfix"
)

// Actor is the Template Source: it polls the telemetry session table,
// forwards enabled IPFIX sessions' object names and template bundles
// as Upsert commands, and issues Delete for sessions that stop
// qualifying (disabled, retyped, or removed — §6 "Telemetry session
// table", §4.3 "Template handling").
type Actor struct {
	socketPath   string
	dbID         int
	table        string
	pollInterval time.Duration
	templates    chan<- ipfix.TemplateCommand

	dial       func(socketPath string, dbID int, timeout time.Duration) (*client, error)
	qualifying map[string]bool
}

// NewActor builds a Template Source against the session database at
// socketPath/dbID, polling table (keys of the form `table|session_key`)
// every pollInterval.
func NewActor(socketPath string, dbID int, table string, pollInterval time.Duration, templates chan<- ipfix.TemplateCommand) *Actor {
	return &Actor{
		socketPath:   socketPath,
		dbID:         dbID,
		table:        table,
		pollInterval: pollInterval,
		templates:    templates,
		dial:         dial,
		qualifying:   make(map[string]bool),
	}
}

// Run polls the session table until ctx is cancelled, reconnecting on
// any connection error (§7 "Startup-fatal" only applies to the initial
// connect; later errors are transient and retried on the next tick).
func (a *Actor) Run(ctx context.Context) error {
	logger := log.GetLogger()

	c, err := a.dial(a.socketPath, a.dbID, a.pollInterval)
	if err != nil {
		return err // startup-fatal: cannot subscribe to state table (§7)
	}
	defer func() {
		if c != nil {
			c.close()
		}
	}()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c == nil {
				if c, err = a.dial(a.socketPath, a.dbID, a.pollInterval); err != nil {
					logger.WithError(err).Error("failed to reconnect to session database")
					continue
				}
			}
			if err := a.pollOnce(logger, c); err != nil {
				logger.WithError(err).Warn("session table poll failed, reconnecting")
				c.close()
				if c, err = a.dial(a.socketPath, a.dbID, a.pollInterval); err != nil {
					logger.WithError(err).Error("failed to reconnect to session database")
				}
			}
		}
	}
}

func (a *Actor) pollOnce(logger log.Logger, c *client) error {
	keys, err := c.keys(a.table + "|*")
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		sessionKey := strings.TrimPrefix(key, a.table+"|")
		fields, err := c.hgetall(key)
		if err != nil {
			logger.WithError(err).WithField("session", sessionKey).Debug("failed to read session fields")
			continue
		}
		if !qualifies(fields) {
			continue
		}
		if fields["session_config"] == "" {
			logger.WithField("session", sessionKey).Error("session config is empty, dropping upsert")
			continue
		}
		seen[sessionKey] = true
		a.qualifying[sessionKey] = true
		a.sendTemplate(ipfix.Upsert{
			SessionKey:  sessionKey,
			ObjectNames: splitObjectNames(fields["object_names"]),
			Bundle:      []byte(fields["session_config"]),
		})
	}

	for sessionKey := range a.qualifying {
		if !seen[sessionKey] {
			delete(a.qualifying, sessionKey)
			a.sendTemplate(ipfix.Delete{SessionKey: sessionKey})
		}
	}
	return nil
}

func qualifies(fields map[string]string) bool {
	return fields["stream_status"] == streamStatusEnabled && fields["session_type"] == sessionTypeIPFIX
}

// splitObjectNames splits a comma-separated object_names field,
// trimming whitespace and dropping empty entries.
func splitObjectNames(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a *Actor) sendTemplate(cmd ipfix.TemplateCommand) {
	select {
	case a.templates <- cmd:
	default:
		a.templates <- cmd
	}
}
