// Package ingress implements the Data Ingress actor: it owns the
// kernel data multicast socket, reassembles the netlink stream into
// IPFIX payloads, and fans them out to every registered sink (§4.2).
package ingress

import (
	"context"
	"time"

	"github.com/tevino/abool"

	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/metrics"
	"firestige.xyz/otus/internal/netlink"
)

// Command is sent to the actor's command channel by the Liveness
// Controller (§4.2 "Health check", §6 "Kernel netlink (control path)").
type Command int

const (
	// Reconnect tears down and re-establishes the data socket. A
	// no-op if the socket is already connected and receiving (§4.2
	// "Health check").
	Reconnect Command = iota
	// Close terminates the actor (§5 "Cancellation").
	Close
)

// state is the Data Ingress lifecycle (§4.2).
type state int

const (
	stateDisconnected state = iota
	stateConnected
	stateTerminated
)

const (
	pollPeriod          = 10 * time.Millisecond
	healthDeadline       = 10 * time.Second
	maxSelfReconnects    = 3
	recvBufferSize       = 1 << 16
)

// Actor is the Data Ingress: a single-threaded task owning one netlink
// data socket, never shared with any other actor (§5 "Shared resources").
type Actor struct {
	family       string
	group        string
	commands     <-chan Command
	sinks        []chan<- []byte
	connected    *abool.AtomicBool
	terminated   *abool.AtomicBool
	state        state
	sock         *netlink.Socket
	parser       *netlink.Parser
	lastRecv     time.Time
	reconnectsLeft int
	inOverrun      bool
}

// NewActor builds a Data Ingress bound to (family, group) with the
// given command channel and fan-out sinks.
func NewActor(family, group string, commands <-chan Command, sinks ...chan<- []byte) *Actor {
	return &Actor{
		family:         family,
		group:          group,
		commands:       commands,
		sinks:          sinks,
		connected:      abool.New(),
		terminated:     abool.New(),
		state:          stateDisconnected,
		reconnectsLeft: maxSelfReconnects,
	}
}

// AddSink registers another channel to receive every future payload.
func (a *Actor) AddSink(sink chan<- []byte) {
	a.sinks = append(a.sinks, sink)
}

// Run drives the connect/receive/reconnect loop until ctx is cancelled
// or a Close command arrives (§4.2, §5 "Cancellation").
func (a *Actor) Run(ctx context.Context) error {
	logger := log.GetLogger()
	defer a.closeSocket()

	for {
		select {
		case <-ctx.Done():
			a.state = stateTerminated
			a.terminated.Set()
			return nil
		case cmd, ok := <-a.commands:
			if !ok {
				a.state = stateTerminated
				a.terminated.Set()
				return nil
			}
			a.handleCommand(cmd, logger)
			if a.state == stateTerminated {
				return nil
			}
		default:
		}

		if a.state == stateDisconnected {
			if a.reconnectsLeft <= 0 {
				time.Sleep(pollPeriod)
				continue
			}
			if err := a.connect(logger); err != nil {
				a.reconnectsLeft--
				time.Sleep(pollPeriod)
				continue
			}
		}

		a.receiveOnce(logger)
		time.Sleep(pollPeriod)
	}
}

func (a *Actor) handleCommand(cmd Command, logger log.Logger) {
	switch cmd {
	case Reconnect:
		if a.state == stateConnected && time.Since(a.lastRecv) < healthDeadline {
			return // freshly-receiving socket: a no-op (§4.2 "Health check")
		}
		logger.Info("reconnecting data ingress socket on controller request")
		metrics.NetlinkReconnectsTotal.WithLabelValues("controller").Inc()
		a.closeSocket()
		a.state = stateDisconnected
		a.reconnectsLeft = maxSelfReconnects
	case Close:
		a.state = stateTerminated
		a.terminated.Set()
	}
}

// connect resolves the data multicast group and opens a fresh socket
// (§4.2 "Connect protocol").
func (a *Actor) connect(logger log.Logger) error {
	resolved, err := netlink.ResolveGroup(a.family, a.group)
	if err != nil {
		logger.WithError(err).Warn("failed to resolve data multicast group")
		return err
	}
	sock, err := netlink.Open()
	if err != nil {
		logger.WithError(err).Warn("failed to open data socket")
		return err
	}
	if err := sock.JoinGroup(resolved.GroupID); err != nil {
		logger.WithError(err).Warn("failed to join data multicast group")
		sock.Close()
		return err
	}
	a.sock = sock
	a.parser = netlink.NewParser()
	a.state = stateConnected
	a.connected.Set()
	a.lastRecv = time.Now()
	return nil
}

// receiveOnce drains as many ready datagrams as the socket currently
// offers, reassembling and fanning out every complete payload, and
// applies the error taxonomy from §4.2/§7.
func (a *Actor) receiveOnce(logger log.Logger) {
	if a.sock == nil {
		return
	}
	buf := make([]byte, recvBufferSize)
	for {
		n, err := a.sock.Recv(buf)
		if err != nil {
			switch err {
			case netlink.ErrWouldBlock:
				if time.Since(a.lastRecv) > healthDeadline {
					logger.Warn("data socket health deadline exceeded, disconnecting")
					a.disconnectAndMaybeRetry(logger, "health_timeout")
				}
				return
			case netlink.ErrNoBuffers:
				if !a.inOverrun {
					logger.Warn("netlink receive buffer overrun (ENOBUFS)")
					a.inOverrun = true
				}
				return
			default:
				logger.WithError(err).Warn("data socket receive failed, disconnecting")
				a.disconnectAndMaybeRetry(logger, "socket_error")
				return
			}
		}
		a.lastRecv = time.Now()
		a.inOverrun = false
		for _, payload := range a.parser.Feed(buf[:n]) {
			metrics.PayloadsIngestedTotal.Inc()
			a.fanOut(payload)
		}
	}
}

// disconnectAndMaybeRetry closes the current socket and, while self-
// reconnect budget remains, immediately retries; otherwise the actor
// waits passively for a controller Reconnect (§4.2 "Error handling").
func (a *Actor) disconnectAndMaybeRetry(logger log.Logger, trigger string) {
	a.closeSocket()
	a.state = stateDisconnected
	a.connected.UnSet()
	for a.reconnectsLeft > 0 {
		a.reconnectsLeft--
		metrics.NetlinkReconnectsTotal.WithLabelValues(trigger).Inc()
		if err := a.connect(logger); err == nil {
			return
		}
	}
	logger.Warn("self-reconnect budget exhausted, waiting for controller")
}

func (a *Actor) fanOut(payload []byte) {
	for _, sink := range a.sinks {
		select {
		case sink <- payload:
		default:
			log.GetLogger().Warn("payload sink channel full, applying backpressure")
			sink <- payload
		}
	}
}

func (a *Actor) closeSocket() {
	if a.sock != nil {
		a.sock.Close()
		a.sock = nil
	}
}

// Connected reports whether the data socket currently believes itself
// connected (used by the daemon's status snapshot).
func (a *Actor) Connected() bool { return a.connected.IsSet() }
