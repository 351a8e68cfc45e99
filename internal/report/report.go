// Package report implements the Periodic Reporter actor: it maintains
// a snapshot of the latest decoded counters and emits an
// operator-legible report at a configured cadence (§4.5).
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/metrics"
	"firestige.xyz/otus/internal/sai"
)

// LineWriter is the injected output capability (§4.5 "write_line");
// the production implementation prints to stdout, tests capture lines.
type LineWriter interface {
	WriteLine(text string)
}

const objectNameColumnWidth = 24

type snapshotKey struct {
	objectName string
	typeID     uint32
	statID     uint32
}

type snapshotEntry struct {
	counter     uint64
	obsTimeNS   uint64
	arrivals    uint64
}

// Mode selects the report's shape (§4.5).
type Mode int

const (
	ModeDetailed Mode = iota
	ModeSummary
)

// Actor is the Periodic Reporter.
type Actor struct {
	mode       Mode
	interval   time.Duration
	maxEntries int
	writer     LineWriter
	batches    <-chan ipfix.StatBatch

	snapshot map[snapshotKey]*snapshotEntry
}

// NewActor builds a Periodic Reporter emitting through writer at the
// given cadence.
func NewActor(mode Mode, interval time.Duration, maxEntries int, writer LineWriter, batches <-chan ipfix.StatBatch) *Actor {
	return &Actor{
		mode:       mode,
		interval:   interval,
		maxEntries: maxEntries,
		writer:     writer,
		batches:    batches,
		snapshot:   make(map[snapshotKey]*snapshotEntry),
	}
}

// Run absorbs stats batches and emits a report every interval, plus one
// final report before returning (§5 "Cancellation": "a final report is
// emitted by the Reporter before it returns").
func (a *Actor) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.emit()
			return nil
		case batch, ok := <-a.batches:
			if !ok {
				a.emit()
				return nil
			}
			a.absorb(batch)
		case <-ticker.C:
			a.emit()
		}
	}
}

func (a *Actor) absorb(batch ipfix.StatBatch) {
	for _, stat := range batch {
		key := snapshotKey{objectName: stat.ObjectName, typeID: stat.TypeID, statID: stat.StatID}
		entry, ok := a.snapshot[key]
		if !ok {
			entry = &snapshotEntry{}
			a.snapshot[key] = entry
		}
		entry.counter = stat.Counter
		entry.obsTimeNS = stat.ObservationTimeNS
		entry.arrivals++
	}
}

func (a *Actor) emit() {
	metrics.ReportsEmittedTotal.Inc()
	periodSeconds := a.interval.Seconds()
	if periodSeconds <= 0 {
		periodSeconds = 1
	}

	switch a.mode {
	case ModeSummary:
		a.emitSummary(periodSeconds)
	default:
		a.emitDetailed(periodSeconds)
	}

	for _, entry := range a.snapshot {
		entry.arrivals = 0
	}
}

func (a *Actor) emitSummary(periodSeconds float64) {
	var totalCounter uint64
	var totalRate float64
	types := make(map[uint32]bool)
	objects := make(map[string]bool)
	for key, entry := range a.snapshot {
		totalCounter += entry.counter
		totalRate += float64(entry.arrivals) / periodSeconds
		types[key.typeID] = true
		objects[key.objectName] = true
	}
	a.writer.WriteLine(fmt.Sprintf(
		"summary: total_counter=%d distinct_types=%d distinct_objects=%d msgs_per_sec=%.2f",
		totalCounter, len(types), len(objects), totalRate))
}

func (a *Actor) emitDetailed(periodSeconds float64) {
	type row struct {
		key   snapshotKey
		entry *snapshotEntry
	}
	byType := make(map[uint32][]row)
	for key, entry := range a.snapshot {
		byType[key.typeID] = append(byType[key.typeID], row{key: key, entry: entry})
	}

	typeIDs := make([]uint32, 0, len(byType))
	for t := range byType {
		typeIDs = append(typeIDs, t)
	}
	sort.Slice(typeIDs, func(i, j int) bool { return typeIDs[i] < typeIDs[j] })

	index := 0
	emitted := 0
	for _, typeID := range typeIDs {
		rows := byType[typeID]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].key.objectName != rows[j].key.objectName {
				return rows[i].key.objectName < rows[j].key.objectName
			}
			return rows[i].key.statID < rows[j].key.statID
		})
		for _, r := range rows {
			index++
			if a.maxEntries > 0 && emitted >= a.maxEntries {
				remaining := 0
				for _, ids := range typeIDs {
					remaining += len(byType[ids])
				}
				a.writer.WriteLine(fmt.Sprintf("... and %d more", remaining-emitted))
				return
			}
			emitted++
			statName, ok := sai.StatName(sai.ObjectType(typeID), r.key.statID)
			if !ok {
				statName = fmt.Sprintf("unknown_stat_%d", r.key.statID)
			} else {
				statName = sai.StripStatPrefix(sai.ObjectType(typeID), statName)
			}
			rate := float64(r.entry.arrivals) / periodSeconds
			a.writer.WriteLine(fmt.Sprintf(
				"%4d  %-*s  %-32s  %12d  %7.2f msg/s  %s",
				index,
				objectNameColumnWidth, r.key.objectName,
				statName,
				r.entry.counter,
				rate,
				formatObservationTime(r.entry.obsTimeNS)))
		}
	}
}

// formatObservationTime renders nanoseconds since the Unix epoch as
// `YYYY-MM-DD HH:MM:SS.nnnnnnnnn UTC` (§4.5).
func formatObservationTime(ns uint64) string {
	sec := int64(ns / 1_000_000_000)
	nsec := int64(ns % 1_000_000_000)
	t := time.Unix(sec, nsec).UTC()
	return fmt.Sprintf("%s.%09d UTC", t.Format("2006-01-02 15:04:05"), nsec)
}

// StdoutWriter is the production LineWriter, printing each line to
// standard output.
type StdoutWriter struct{}

func (StdoutWriter) WriteLine(text string) {
	fmt.Println(text)
}

// BufferWriter is a test LineWriter capturing every emitted line.
type BufferWriter struct {
	Lines []string
}

func (b *BufferWriter) WriteLine(text string) {
	b.Lines = append(b.Lines, text)
}

func (b *BufferWriter) String() string {
	return strings.Join(b.Lines, "\n")
}
