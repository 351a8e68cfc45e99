// Package liveness implements the Liveness Controller actor: it owns
// the control netlink socket, watches for the configured family's
// registration/deregistration, and drives Data Ingress reconnects (§6
// "Kernel netlink (control path)").
package liveness

import (
	"context"
	"time"

	"firestige.xyz/otus/internal/ingress"
	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/netlink"
)

const (
	familyPollInterval = 1 * time.Second
	notifyGroupName    = "notify"
	nlctrlFamilyName    = "nlctrl"
	recvBufferSize      = 1 << 16
	controlPollPeriod   = 10 * time.Millisecond
)

// Actor polls and watches for the configured data family's
// registration state and tells Data Ingress to reconnect on any
// transition (§4.3 design notes, §6).
type Actor struct {
	family   string
	ingress  chan<- ingress.Command
	sock     *netlink.Socket
	scanner  *netlink.Scanner
	lastSeen bool
}

// NewActor builds a Liveness Controller watching family, issuing
// Reconnect commands on ingressCmds.
func NewActor(family string, ingressCmds chan<- ingress.Command) *Actor {
	return &Actor{family: family, ingress: ingressCmds}
}

// Run owns its control socket for the duration of ctx, recreating it
// after a receive error, parsing async NEWFAMILY/DELFAMILY
// notifications and backstopping them with a 1s existence poll.
func (a *Actor) Run(ctx context.Context) error {
	logger := log.GetLogger()
	defer a.closeSocket()

	a.lastSeen = netlink.FamilyExists(a.family)

	pollTicker := time.NewTicker(familyPollInterval)
	defer pollTicker.Stop()

	if err := a.openControlSocket(logger); err != nil {
		logger.WithError(err).Warn("failed to open control socket, relying on poll only")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			a.pollOnce(logger)
		default:
			a.drainNotifications(logger)
			time.Sleep(controlPollPeriod)
		}
	}
}

func (a *Actor) openControlSocket(logger log.Logger) error {
	sock, err := netlink.Open()
	if err != nil {
		return err
	}
	resolved, err := netlink.ResolveGroup(nlctrlFamilyName, notifyGroupName)
	if err != nil {
		sock.Close()
		return err
	}
	if err := sock.JoinGroup(resolved.GroupID); err != nil {
		sock.Close()
		return err
	}
	a.sock = sock
	a.scanner = netlink.NewScanner()
	return nil
}

func (a *Actor) closeSocket() {
	if a.sock != nil {
		a.sock.Close()
		a.sock = nil
	}
}

// drainNotifications reads any pending notify-group messages and acts
// on family appear/disappear events for the configured family.
func (a *Actor) drainNotifications(logger log.Logger) {
	if a.sock == nil {
		return
	}
	buf := make([]byte, recvBufferSize)
	for {
		n, err := a.sock.Recv(buf)
		if err != nil {
			if err != netlink.ErrWouldBlock {
				logger.WithError(err).Warn("control socket receive failed, recreating")
				a.closeSocket()
				_ = a.openControlSocket(logger)
			}
			return
		}
		for _, msg := range a.scanner.Feed(buf[:n]) {
			ev, ok := netlink.ParseFamilyEvent(msg)
			if !ok || ev.FamilyName != a.family {
				continue
			}
			a.transition(logger, ev.Appeared)
		}
	}
}

// pollOnce is the 1s safety-net existence check (§4 design notes: async
// notifications may be missed, so a periodic poll backstops them).
func (a *Actor) pollOnce(logger log.Logger) {
	exists := netlink.FamilyExists(a.family)
	if exists != a.lastSeen {
		a.transition(logger, exists)
	}
}

func (a *Actor) transition(logger log.Logger, appeared bool) {
	a.lastSeen = appeared
	if appeared {
		logger.WithField("family", a.family).Info("family registered, requesting ingress reconnect")
	} else {
		logger.WithField("family", a.family).Warn("family disappeared, data will pause until reappearance")
	}
	a.sendIngress(ingress.Reconnect)
}

func (a *Actor) sendIngress(cmd ingress.Command) {
	select {
	case a.ingress <- cmd:
	default:
		a.ingress <- cmd
	}
}
