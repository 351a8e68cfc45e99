// Package metrics implements Prometheus metrics for the telemetry pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PayloadsIngestedTotal counts complete IPFIX payloads handed to the decoder.
	PayloadsIngestedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "countersyncd_payloads_ingested_total",
			Help: "Total number of reassembled IPFIX payloads forwarded by the data ingress",
		},
	)

	// NetlinkReconnectsTotal counts data-socket reconnect attempts, by trigger.
	NetlinkReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersyncd_netlink_reconnects_total",
			Help: "Total number of data netlink socket reconnect attempts",
		},
		[]string{"trigger"}, // "controller", "health_timeout", "socket_error"
	)

	// DecodeRecordsTotal counts decoded IPFIX data records, by outcome.
	DecodeRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersyncd_decode_records_total",
			Help: "Total number of IPFIX data records processed by the decoder",
		},
		[]string{"result"}, // "ok" is the only value recorded
	)

	// CounterWritesTotal counts counter-database write attempts, by outcome.
	CounterWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "countersyncd_counter_writes_total",
			Help: "Total number of counter database HSET attempts",
		},
		[]string{"result"}, // "ok", "fail"
	)

	// ReportsEmittedTotal counts reports emitted by the periodic reporter.
	ReportsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "countersyncd_reports_emitted_total",
			Help: "Total number of periodic reports emitted",
		},
	)

	// StatsChannelDepth tracks the current queue depth of the decoded-stats channel.
	StatsChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "countersyncd_stats_channel_depth",
			Help: "Current number of buffered stats batches awaiting consumption",
		},
	)

	// PayloadChannelDepth tracks the current queue depth of the ingress payload channel.
	PayloadChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "countersyncd_payload_channel_depth",
			Help: "Current number of buffered payloads awaiting decode",
		},
	)
)
