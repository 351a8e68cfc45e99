package report

import (
	"strings"
	"testing"
	"time"

	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/sai"
)

func TestActor_DetailedReportHonorsMaxEntries(t *testing.T) {
	buf := &BufferWriter{}
	a := NewActor(ModeDetailed, time.Second, 1, buf, nil)
	a.absorb(ipfix.StatBatch{
		{ObjectName: "Ethernet0", TypeID: uint32(sai.ObjectTypePort), StatID: 0, Counter: 10, ObservationTimeNS: 1_700_000_000_000000000},
		{ObjectName: "Ethernet4", TypeID: uint32(sai.ObjectTypePort), StatID: 1, Counter: 20, ObservationTimeNS: 1_700_000_000_000000000},
	})

	a.emit()

	if len(buf.Lines) != 2 {
		t.Fatalf("expected 2 lines (1 entry + overflow marker), got %v", buf.Lines)
	}
	if !strings.Contains(buf.Lines[0], "Ethernet0") {
		t.Fatalf("expected first entry to be Ethernet0 (sorted), got %q", buf.Lines[0])
	}
	if !strings.Contains(buf.Lines[1], "and 1 more") {
		t.Fatalf("expected overflow marker, got %q", buf.Lines[1])
	}
}

func TestActor_SummaryReportAggregates(t *testing.T) {
	buf := &BufferWriter{}
	a := NewActor(ModeSummary, time.Second, 0, buf, nil)
	a.absorb(ipfix.StatBatch{
		{ObjectName: "Ethernet0", TypeID: uint32(sai.ObjectTypePort), StatID: 0, Counter: 10},
		{ObjectName: "Ethernet4", TypeID: uint32(sai.ObjectTypeQueue), StatID: 0, Counter: 20},
	})

	a.emit()

	if len(buf.Lines) != 1 {
		t.Fatalf("expected one summary line, got %v", buf.Lines)
	}
	if !strings.Contains(buf.Lines[0], "total_counter=30") || !strings.Contains(buf.Lines[0], "distinct_types=2") {
		t.Fatalf("unexpected summary: %q", buf.Lines[0])
	}
}

func TestActor_ArrivalsClearedAfterEmit(t *testing.T) {
	buf := &BufferWriter{}
	a := NewActor(ModeSummary, time.Second, 0, buf, nil)
	a.absorb(ipfix.StatBatch{{ObjectName: "a", TypeID: uint32(sai.ObjectTypePort), StatID: 0, Counter: 1}})
	a.emit()

	for _, entry := range a.snapshot {
		if entry.arrivals != 0 {
			t.Fatalf("expected arrivals reset after emit, got %d", entry.arrivals)
		}
	}
}
