// Package daemon wires the five countersyncd actors into a running
// process: channel construction, actor startup, the UDS control plane,
// the metrics HTTP server, and ordered shutdown (§5 "Concurrency and
// resource model").
package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"firestige.xyz/otus/internal/command"
	"firestige.xyz/otus/internal/config"
	"firestige.xyz/otus/internal/counterdb"
	"firestige.xyz/otus/internal/ingress"
	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/liveness"
	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/metrics"
	"firestige.xyz/otus/internal/report"
	"firestige.xyz/otus/internal/swss"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Daemon supervises the five-actor pipeline plus its control surfaces.
// It implements command.StatsProvider and command.ConfigReloader for
// the UDS command handler.
type Daemon struct {
	cfg     *config.RuntimeConfig
	cfgPath string
	cfgMu   sync.RWMutex

	udsServer  *command.UDSServer
	metricsSrv *metrics.Server

	counters struct {
		payloadsIngested  atomic.Uint64
		recordsDecoded    atomic.Uint64
		decodeErrors      atomic.Uint64
		counterWrites     atomic.Uint64
		counterWriteFails atomic.Uint64
		reportsEmitted    atomic.Uint64
		netlinkReconnects atomic.Uint64
	}

	actorState sync.Map // name -> string
	cancel     context.CancelFunc
}

// New constructs a Daemon from cfg, read from cfgPath (kept so Reload
// can re-read the same file).
func New(cfg *config.RuntimeConfig, cfgPath string) *Daemon {
	return &Daemon{cfg: cfg, cfgPath: cfgPath}
}

// Snapshot implements command.StatsProvider.
func (d *Daemon) Snapshot() command.DaemonStats {
	state := make(map[string]string)
	d.actorState.Range(func(k, v interface{}) bool {
		state[k.(string)] = v.(string)
		return true
	})
	return command.DaemonStats{
		PayloadsIngested:  d.counters.payloadsIngested.Load(),
		RecordsDecoded:    d.counters.recordsDecoded.Load(),
		DecodeErrors:      d.counters.decodeErrors.Load(),
		CounterWrites:     d.counters.counterWrites.Load(),
		CounterWriteFails: d.counters.counterWriteFails.Load(),
		ReportsEmitted:    d.counters.reportsEmitted.Load(),
		NetlinkReconnects: d.counters.netlinkReconnects.Load(),
		ActorState:        state,
	}
}

// Reload implements command.ConfigReloader: re-reads the config file
// and swaps in the fields that are safe to change without a restart.
// The netlink family/group identity and channel capacities are not
// among them — the data socket's connect protocol and the actors'
// channels are already keyed on the values captured at startup
// (§6 "Configuration file"). The new values are stored on the daemon's
// config only: actors already running keep the settings they were
// built with.
func (d *Daemon) Reload() error {
	cfg, err := config.Load(d.cfgPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	d.cfgMu.Lock()
	d.cfg.Report = cfg.Report
	d.cfg.CounterDB = cfg.CounterDB
	d.cfgMu.Unlock()
	log.GetLogger().Info("configuration reloaded")
	return nil
}

// Run starts every actor plus the control/metrics servers and blocks
// until ctx is cancelled, aggregating every component's exit error
// (§5 "Cancellation").
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	logger := log.GetLogger()
	cfg := d.cfg

	if err := writePIDFile(cfg.Control.PIDFile); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(cfg.Control.PIDFile)

	templateCh := make(chan ipfix.TemplateCommand, cfg.Channels.TemplateCapacity)
	payloadCh := make(chan []byte, cfg.Channels.PayloadCapacity)
	ingressCmdCh := make(chan ingress.Command, cfg.Channels.CommandCapacity)
	writerStatsCh := make(chan ipfix.StatBatch, cfg.Channels.CounterDBCapacity)
	reportStatsCh := make(chan ipfix.StatBatch, cfg.Channels.StatsCapacity)

	var sinks []chan<- ipfix.StatBatch
	if cfg.CounterDB.Enabled {
		sinks = append(sinks, writerStatsCh)
	}
	if cfg.Report.Enabled {
		sinks = append(sinks, reportStatsCh)
	}

	decoderActor := ipfix.NewActor(templateCh, payloadCh, sinks...)
	ingressActor := ingress.NewActor(
		cfg.Constants.HighFrequencyTelemetry.GenlFamily,
		cfg.Constants.HighFrequencyTelemetry.GenlMulticastGroup,
		ingressCmdCh,
		payloadCh,
	)
	livenessActor := liveness.NewActor(cfg.Constants.HighFrequencyTelemetry.GenlFamily, ingressCmdCh)
	templateSourceActor := swss.NewActor(cfg.SessionDB.Socket, cfg.SessionDB.DBID, cfg.SessionDB.Table, cfg.SessionDB.PollInterval, templateCh)

	handler := command.NewCommandHandler(d, d, Version)
	handler.SetShutdownFunc(cancel)
	d.udsServer = command.NewUDSServer(cfg.Control.Socket, handler)

	if cfg.Metrics.Addr != "" {
		d.metricsSrv = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
	}

	p := pool.New().WithErrors()

	d.runActor(p, "ingress", ingressActor.Run, ctx)
	d.runActor(p, "liveness", livenessActor.Run, ctx)
	d.runActor(p, "decoder", decoderActor.Run, ctx)
	d.runActor(p, "template_source", templateSourceActor.Run, ctx)

	if cfg.CounterDB.Enabled {
		store, err := counterdb.Dial(cfg.CounterStore.Socket, cfg.CounterStore.DBID, 2*time.Second)
		if err != nil {
			cancel()
			return fmt.Errorf("connect counter store: %w", err) // startup-fatal, §7
		}
		writerActor := counterdb.NewActor(store, cfg.CounterDB.Interval, writerStatsCh)
		d.runActor(p, "counter_writer", writerActor.Run, ctx)
	}

	if cfg.Report.Enabled {
		mode := report.ModeSummary
		if cfg.Report.Detailed {
			mode = report.ModeDetailed
		}
		reporterActor := report.NewActor(mode, cfg.Report.Interval, int(cfg.Report.MaxEntries), report.StdoutWriter{}, reportStatsCh)
		d.runActor(p, "reporter", reporterActor.Run, ctx)
	}

	p.Go(func() error { return d.udsServer.Start(ctx) })
	if d.metricsSrv != nil {
		p.Go(func() error { return d.metricsSrv.Start(ctx) })
	}
	p.Go(func() error {
		sampleChannelDepths(ctx, payloadCh, reportStatsCh)
		return nil
	})

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping actors")

	var shutdownErr error
	if d.metricsSrv != nil {
		shutdownErr = multierr.Append(shutdownErr, d.metricsSrv.Stop(context.Background()))
	}
	shutdownErr = multierr.Append(shutdownErr, d.udsServer.Stop())
	shutdownErr = multierr.Append(shutdownErr, p.Wait())

	return shutdownErr
}

// runActor launches one actor under the panic-safe pool, tracking its
// lifecycle state for the status command's snapshot.
func (d *Daemon) runActor(p *pool.ErrorPool, name string, run func(context.Context) error, ctx context.Context) {
	d.setState(name, "starting")
	p.Go(func() error {
		d.setState(name, "running")
		err := run(ctx)
		d.setState(name, "stopped")
		return err
	})
}

// Shutdown requests an orderly stop by cancelling Run's context; it does
// nothing before Run has started.
func (d *Daemon) Shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Daemon) setState(actor, state string) {
	d.actorState.Store(actor, state)
}

// sampleChannelDepths periodically publishes the two hottest inter-actor
// channels' queue depths so operators can see backpressure building up
// before a channel fills and blocks its producer.
func sampleChannelDepths(ctx context.Context, payloadCh chan []byte, reportStatsCh chan ipfix.StatBatch) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.PayloadChannelDepth.Set(float64(len(payloadCh)))
			metrics.StatsChannelDepth.Set(float64(len(reportStatsCh)))
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
