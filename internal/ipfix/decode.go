package ipfix

import (
	"encoding/binary"
	"fmt"
	"time"

	"firestige.xyz/otus/internal/log"
)

// IANA information-element ids carrying the record's observation time
// (§6 "Observation time IEs").
const (
	ieObservationSeconds = 322
	ieObservationNanos   = 325
)

// SAIStat is one decoded switch-hardware counter sample (§4.3
// "Data record → SAI statistic").
type SAIStat struct {
	ObjectName        string
	TypeID            uint32
	StatID            uint32
	Counter           uint64
	ObservationTimeNS uint64
}

// StatBatch is every SAIStat produced from one data record, emitted to
// every registered sink in order (§4.3 "Emission").
type StatBatch []SAIStat

func unknownLabel(label int) string {
	return fmt.Sprintf("unknown_%d", label)
}

// Decoder parses payload bytes against the template Registry and
// tracks the largest observation time seen so far, for records that
// carry no timestamp field of their own (§4.3 "Observation time").
type Decoder struct {
	registry            *Registry
	lastObservationTime uint64
	nowFunc             func() time.Time
}

// NewDecoder returns a decoder bound to registry. nowFunc defaults to
// time.Now; tests may override it for determinism.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry, nowFunc: time.Now}
}

// DecodePayload parses one netlink-delivered IPFIX payload (one or more
// IPFIX messages, §4.3 "Message parse") into a batch per data record,
// in wire order. A malformed message or set stops parsing that payload
// at the point of corruption; records already decoded are still
// returned. A decode failure on one record does not halt the rest.
func (d *Decoder) DecodePayload(payload []byte) []StatBatch {
	var batches []StatBatch
	for _, msg := range splitMessages(payload) {
		for _, set := range splitSets(msg.sets) {
			if set.setID < minDataSetID {
				continue // template sets arrive only via Upsert, §4.3
			}
			batches = append(batches, d.decodeDataSet(set)...)
		}
	}
	return batches
}

func (d *Decoder) decodeDataSet(set setRecord) []StatBatch {
	templateID := set.setID
	sessionKey, known := d.registry.apply(templateID)
	if !known {
		log.GetLogger().WithField("template_id", templateID).Debug("data set references unknown template, skipping")
		return nil
	}
	tmpl, ok := d.registry.templateDef(templateID)
	if !ok {
		log.GetLogger().WithField("template_id", templateID).Debug("template id known but definition missing, skipping")
		return nil
	}
	recLen := recordLength(tmpl)
	if recLen == 0 {
		return nil
	}

	var out []StatBatch
	off := 0
	for off+recLen <= len(set.body) {
		out = append(out, d.decodeRecord(tmpl, sessionKey, set.body[off:off+recLen]))
		off += recLen
	}
	return out
}

// decodeRecord decodes one fixed-length data record against tmpl,
// resolving object names against sessionKey explicitly rather than
// guessing at an arbitrary registry entry (the §9 fix).
func (d *Decoder) decodeRecord(tmpl Template, sessionKey string, record []byte) StatBatch {
	obsTime, haveObsTime := d.resolveObservationTime(tmpl, record)
	if haveObsTime && obsTime > d.lastObservationTime {
		d.lastObservationTime = obsTime
	}
	if !haveObsTime {
		if d.lastObservationTime != 0 {
			obsTime = d.lastObservationTime
		} else {
			obsTime = uint64(d.nowFunc().UnixNano())
		}
	}

	var batch StatBatch
	off := 0
	for _, f := range tmpl.Fields {
		val := record[off : off+int(f.length)]
		off += int(f.length)

		if isObservationTimeField(f) {
			continue
		}

		typeID, statID := decodeEnterpriseDescriptor(f.enterprise)
		batch = append(batch, SAIStat{
			ObjectName:        d.registry.objectName(sessionKey, int(f.ieID)),
			TypeID:            typeID,
			StatID:            statID,
			Counter:           decodeCounter(val),
			ObservationTimeNS: obsTime,
		})
	}
	return batch
}

func isObservationTimeField(f fieldSpec) bool {
	if f.hasEnterpise {
		return false
	}
	return f.ieID == ieObservationSeconds || f.ieID == ieObservationNanos
}

// decodeEnterpriseDescriptor unpacks the field's enterprise number as
// the packed type_id/stat_id descriptor (§4.3, exact bit layout).
func decodeEnterpriseDescriptor(enterprise uint32) (typeID, statID uint32) {
	typeID = (enterprise & typeIDBaseMask) >> 16
	statID = enterprise & statIDBaseMask
	if enterprise&typeExtBit != 0 {
		typeID += extensionRange
	}
	if enterprise&statExtBit != 0 {
		statID += extensionRange
	}
	return typeID, statID
}

// decodeCounter reads val as a big-endian unsigned integer, zero-padded
// on the left to 64 bits. Any width from 1 to 8 bytes is a valid integer
// encoding; widths of 0 or more than 8 bytes are not and yield 0 (§4.3).
func decodeCounter(val []byte) uint64 {
	if len(val) == 0 || len(val) > 8 {
		return 0
	}
	var padded [8]byte
	copy(padded[8-len(val):], val)
	return binary.BigEndian.Uint64(padded[:])
}

// resolveObservationTime looks for IE 325 (preferred) or IE 322+325
// combined (§4.3 "Observation time") among record's fields, per tmpl's
// layout. ok is false when neither is present.
func (d *Decoder) resolveObservationTime(tmpl Template, record []byte) (ns uint64, ok bool) {
	var (
		haveSeconds, haveNanos   bool
		seconds                  uint32
		nanos                    uint64
		nanosIsFull64            bool
	)
	off := 0
	for _, f := range tmpl.Fields {
		val := record[off : off+int(f.length)]
		off += int(f.length)
		if f.hasEnterpise {
			continue
		}
		switch f.ieID {
		case ieObservationNanos:
			if f.length == 8 {
				nanos = binary.BigEndian.Uint64(val)
				nanosIsFull64 = true
				haveNanos = true
			} else if f.length == 4 {
				nanos = uint64(binary.BigEndian.Uint32(val))
				haveNanos = true
			}
		case ieObservationSeconds:
			if f.length == 4 {
				seconds = binary.BigEndian.Uint32(val)
				haveSeconds = true
			}
		}
	}
	if haveNanos && nanosIsFull64 {
		return nanos, true
	}
	if haveSeconds && haveNanos {
		return uint64(seconds)*1_000_000_000 + nanos, true
	}
	return 0, false
}
