// Package ipfix decodes the RFC 7011 IPFIX stream this sidecar receives
// over the kernel netlink data socket, resolving data records against
// templates supplied out-of-band by the Template Source actor, and
// emits SAI statistic batches (§4.3 of the originating spec).
package ipfix

import "encoding/binary"

const (
	messageHeaderLen = 16
	setHeaderLen     = 4
	templateSetID    = 2
	minDataSetID     = 256

	enterpriseBit  = uint16(0x8000)
	ieIDMask       = uint16(0x7FFF)
	maxMessageLen  = 1 << 16 // length field is 16 bits; never larger
	extensionRange = uint32(0x2000_0000)
	typeExtBit     = uint32(0x8000_0000)
	statExtBit     = uint32(0x0000_8000)
	typeIDBaseMask = uint32(0x7FFF0000)
	statIDBaseMask = uint32(0x00007FFF)
)

// messageHeader is the 16-byte IPFIX message header (§6), all fields
// big-endian.
type messageHeader struct {
	Version           uint16
	Length            uint16
	ExportTime        uint32
	Sequence          uint32
	ObservationDomain uint32
}

func decodeMessageHeader(b []byte) messageHeader {
	return messageHeader{
		Version:           binary.BigEndian.Uint16(b[0:2]),
		Length:            binary.BigEndian.Uint16(b[2:4]),
		ExportTime:        binary.BigEndian.Uint32(b[4:8]),
		Sequence:          binary.BigEndian.Uint32(b[8:12]),
		ObservationDomain: binary.BigEndian.Uint32(b[12:16]),
	}
}

// message is one fully-framed IPFIX message sliced out of a payload or
// template bundle: the header plus the raw bytes of its sets.
type message struct {
	header messageHeader
	sets   []byte
}

// splitMessages delimits back-to-back IPFIX messages in buf by the
// 16-bit big-endian length at offset 2 (§4.3 "Message parse"). A
// message whose declared length is malformed (too short to contain the
// header, or longer than the remaining buffer) stops parsing at that
// point; everything parsed before it is still returned.
func splitMessages(buf []byte) []message {
	var out []message
	off := 0
	for off+messageHeaderLen <= len(buf) {
		hdr := decodeMessageHeader(buf[off:])
		length := int(hdr.Length)
		if length < messageHeaderLen || off+length > len(buf) {
			break
		}
		out = append(out, message{header: hdr, sets: buf[off+messageHeaderLen : off+length]})
		off += length
	}
	return out
}

// setRecord is one set (template or data) sliced from a message's set
// region: the set id plus the raw bytes following the 4-byte set header.
type setRecord struct {
	setID uint16
	body  []byte
}

// splitSets delimits back-to-back sets within one message's set region.
func splitSets(buf []byte) []setRecord {
	var out []setRecord
	off := 0
	for off+setHeaderLen <= len(buf) {
		id := binary.BigEndian.Uint16(buf[off : off+2])
		length := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		if length < setHeaderLen || off+length > len(buf) {
			break
		}
		out = append(out, setRecord{setID: id, body: buf[off+setHeaderLen : off+length]})
		off += length
	}
	return out
}

// fieldSpec is one template field specifier (§6).
type fieldSpec struct {
	ieID         uint16 // the 15-bit information-element id, enterprise bit stripped
	length       uint16
	enterprise   uint32
	hasEnterpise bool
}

const fieldSpecBaseLen = 4

// Template is a parsed template record: an ordered list of field
// specifiers keyed by template_id.
type Template struct {
	ID     uint16
	Fields []fieldSpec
}

// splitTemplateRecords parses every template record packed into a
// template set's body (§6: `template_id(2) | field_count(2) | fields...`).
// A record whose field count overruns the remaining body stops parsing.
func splitTemplateRecords(buf []byte) []Template {
	var out []Template
	off := 0
	for off+4 <= len(buf) {
		id := binary.BigEndian.Uint16(buf[off : off+2])
		fieldCount := int(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		off += 4

		fields := make([]fieldSpec, 0, fieldCount)
		ok := true
		for i := 0; i < fieldCount; i++ {
			if off+fieldSpecBaseLen > len(buf) {
				ok = false
				break
			}
			rawIEID := binary.BigEndian.Uint16(buf[off : off+2])
			length := binary.BigEndian.Uint16(buf[off+2 : off+4])
			off += fieldSpecBaseLen

			fs := fieldSpec{ieID: rawIEID &^ enterpriseBit, length: length}
			if rawIEID&enterpriseBit != 0 {
				if off+4 > len(buf) {
					ok = false
					break
				}
				fs.enterprise = binary.BigEndian.Uint32(buf[off : off+4])
				fs.hasEnterpise = true
				off += 4
			}
			fields = append(fields, fs)
		}
		if !ok {
			break
		}
		out = append(out, Template{ID: id, Fields: fields})
	}
	return out
}

// recordLength is the fixed wire length of one data record under
// template t: the sum of its field lengths.
func recordLength(t Template) int {
	n := 0
	for _, f := range t.Fields {
		n += int(f.length)
	}
	return n
}
