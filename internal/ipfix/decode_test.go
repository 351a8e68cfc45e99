package ipfix

import (
	"encoding/binary"
	"testing"
)

// buildTemplateBundle builds a one-message, one-set template bundle
// carrying a single template record.
func buildTemplateBundle(templateID uint16, fields []fieldSpec) []byte {
	var body []byte
	for _, f := range fields {
		ieID := f.ieID
		if f.hasEnterpise {
			ieID |= enterpriseBit
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], ieID)
		binary.BigEndian.PutUint16(buf[2:4], f.length)
		body = append(body, buf...)
		if f.hasEnterpise {
			ent := make([]byte, 4)
			binary.BigEndian.PutUint32(ent, f.enterprise)
			body = append(body, ent...)
		}
	}
	record := make([]byte, 4)
	binary.BigEndian.PutUint16(record[0:2], templateID)
	binary.BigEndian.PutUint16(record[2:4], uint16(len(fields)))
	record = append(record, body...)

	set := make([]byte, 4)
	binary.BigEndian.PutUint16(set[0:2], templateSetID)
	binary.BigEndian.PutUint16(set[2:4], uint16(4+len(record)))
	set = append(set, record...)

	msg := make([]byte, messageHeaderLen)
	binary.BigEndian.PutUint16(msg[0:2], 10)
	binary.BigEndian.PutUint16(msg[2:4], uint16(messageHeaderLen+len(set)))
	msg = append(msg, set...)
	return msg
}

func buildDataPayload(templateID uint16, record []byte) []byte {
	set := make([]byte, 4)
	binary.BigEndian.PutUint16(set[0:2], templateID)
	binary.BigEndian.PutUint16(set[2:4], uint16(4+len(record)))
	set = append(set, record...)

	msg := make([]byte, messageHeaderLen)
	binary.BigEndian.PutUint16(msg[0:2], 10)
	binary.BigEndian.PutUint16(msg[2:4], uint16(messageHeaderLen+len(set)))
	msg = append(msg, set...)
	return msg
}

func TestRegistry_UpsertPendingThenApplied(t *testing.T) {
	r := NewRegistry()
	bundle := buildTemplateBundle(256, []fieldSpec{
		{ieID: 1, length: 8, hasEnterpise: true, enterprise: 0},
	})
	r.Upsert("session-a", []string{"Ethernet0"}, bundle)

	if sk := r.pending[256]; sk != "session-a" {
		t.Fatalf("expected template pending under session-a, got %q", sk)
	}
	if r.applied["session-a"] != nil {
		t.Fatalf("expected no applied entries before a data record is seen")
	}

	sessionKey, known := r.apply(256)
	if !known || sessionKey != "session-a" {
		t.Fatalf("apply() = %q, %v", sessionKey, known)
	}
	if _, stillPending := r.pending[256]; stillPending {
		t.Fatal("expected template moved out of pending")
	}
	if !r.applied["session-a"][256] {
		t.Fatal("expected template moved into applied")
	}
}

func TestRegistry_DeleteClearsAllThreeMaps(t *testing.T) {
	r := NewRegistry()
	bundle := buildTemplateBundle(300, []fieldSpec{{ieID: 1, length: 4, hasEnterpise: true}})
	r.Upsert("s1", []string{"obj"}, bundle)
	r.apply(300)

	r.Delete("s1")

	if _, ok := r.pending[300]; ok {
		t.Fatal("expected pending cleared")
	}
	if r.applied["s1"] != nil {
		t.Fatal("expected applied cleared")
	}
	if r.names["s1"] != nil {
		t.Fatal("expected names cleared")
	}
}

func TestDecoder_DecodeRecordWithEnterpriseDescriptor(t *testing.T) {
	r := NewRegistry()
	// label 1 resolves to names[session][0]; enterprise number packs
	// type_id=5, stat_id=10, no extension bits.
	enterprise := uint32(5)<<16 | uint32(10)
	bundle := buildTemplateBundle(256, []fieldSpec{
		{ieID: 1, length: 8, hasEnterpise: true, enterprise: enterprise},
	})
	r.Upsert("session-a", []string{"Ethernet0"}, bundle)

	record := make([]byte, 8)
	binary.BigEndian.PutUint64(record, 424242)
	payload := buildDataPayload(256, record)

	dec := NewDecoder(r)
	batches := dec.DecodePayload(payload)
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected one batch with one stat, got %+v", batches)
	}
	stat := batches[0][0]
	if stat.ObjectName != "Ethernet0" || stat.TypeID != 5 || stat.StatID != 10 || stat.Counter != 424242 {
		t.Fatalf("unexpected stat: %+v", stat)
	}
}

func TestDecoder_ExtensionBitsAddRange(t *testing.T) {
	enterprise := typeExtBit | statExtBit | uint32(1)<<16 | uint32(2)
	typeID, statID := decodeEnterpriseDescriptor(enterprise)
	if typeID != 1+extensionRange || statID != 2+extensionRange {
		t.Fatalf("got type=%d stat=%d", typeID, statID)
	}
}

func TestDecoder_UnknownLabelFallsBackToPlaceholder(t *testing.T) {
	r := NewRegistry()
	bundle := buildTemplateBundle(256, []fieldSpec{
		{ieID: 99, length: 4, hasEnterpise: true, enterprise: 1},
	})
	r.Upsert("session-a", nil, bundle)

	record := make([]byte, 4)
	binary.BigEndian.PutUint32(record, 7)
	payload := buildDataPayload(256, record)

	dec := NewDecoder(r)
	batches := dec.DecodePayload(payload)
	if len(batches) != 1 || batches[0][0].ObjectName != "unknown_99" {
		t.Fatalf("got %+v", batches)
	}
}

func TestDecoder_ObservationTimeFromNanosField(t *testing.T) {
	r := NewRegistry()
	bundle := buildTemplateBundle(256, []fieldSpec{
		{ieID: ieObservationNanos, length: 8},
		{ieID: 1, length: 4, hasEnterpise: true, enterprise: 1},
	})
	r.Upsert("s", []string{"a"}, bundle)

	record := make([]byte, 12)
	binary.BigEndian.PutUint64(record[0:8], 123456789)
	binary.BigEndian.PutUint32(record[8:12], 1)
	payload := buildDataPayload(256, record)

	dec := NewDecoder(r)
	batches := dec.DecodePayload(payload)
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected the timestamp field excluded from stats: %+v", batches)
	}
	if batches[0][0].ObservationTimeNS != 123456789 {
		t.Fatalf("got %d", batches[0][0].ObservationTimeNS)
	}
}
