// Package netlink implements the generic-netlink wire format used by both
// kernel sockets this sidecar owns: the data multicast socket (§4.2) and
// the nlctrl family-notification socket (§4.1 of the liveness controller,
// §6 "Kernel netlink (control path)").
package netlink

import "encoding/binary"

// Header sizes per RFC and the Linux generic-netlink ABI. All netlink
// integers are little-endian on the wire; only attribute payloads with
// their own encoding (e.g. IPFIX, which is big-endian) differ.
const (
	HeaderLen     = 16 // sizeof(struct nlmsghdr)
	GenlHeaderLen = 4  // sizeof(struct genlmsghdr)
	CombinedLen   = HeaderLen + GenlHeaderLen

	attrHeaderLen = 4 // len(u16) + type(u16)
	attrAlign     = 4
)

// Netlink message flags (subset actually used here).
const (
	NLMFRequest = 0x1
	NLMFAck     = 0x4
)

// Generic netlink controller family, always id 0x10, and its commands /
// attributes (linux/genetlink.h).
const (
	GenlIDCtrl = 0x10

	CtrlCmdNewFamily = 1
	CtrlCmdDelFamily = 2
	CtrlCmdGetFamily = 3

	CtrlAttrFamilyID     = 1
	CtrlAttrFamilyName   = 2
	CtrlAttrMcastGroups  = 7
	CtrlAttrMcastGrpName = 1
	CtrlAttrMcastGrpID   = 2
)

// Header is a decoded 16-byte netlink message header.
type Header struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	PID   uint32
}

// PutHeader encodes h into the first HeaderLen bytes of buf.
func PutHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Len)
	binary.LittleEndian.PutUint16(buf[4:6], h.Type)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.Seq)
	binary.LittleEndian.PutUint32(buf[12:16], h.PID)
}

// DecodeHeader reads a netlink header from the front of buf. The caller
// must ensure len(buf) >= HeaderLen.
func DecodeHeader(buf []byte) Header {
	return Header{
		Len:   binary.LittleEndian.Uint32(buf[0:4]),
		Type:  binary.LittleEndian.Uint16(buf[4:6]),
		Flags: binary.LittleEndian.Uint16(buf[6:8]),
		Seq:   binary.LittleEndian.Uint32(buf[8:12]),
		PID:   binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// GenlHeader is a decoded 4-byte generic-netlink header.
type GenlHeader struct {
	Cmd     uint8
	Version uint8
}

// PutGenlHeader encodes h into the first GenlHeaderLen bytes of buf.
func PutGenlHeader(buf []byte, h GenlHeader) {
	buf[0] = h.Cmd
	buf[1] = h.Version
	buf[2] = 0
	buf[3] = 0
}

// DecodeGenlHeader reads a generic-netlink header from the front of buf.
func DecodeGenlHeader(buf []byte) GenlHeader {
	return GenlHeader{Cmd: buf[0], Version: buf[1]}
}

// Attr is a decoded TLV attribute: Type carries only the low 14 bits of
// the wire type field (the NLA_F_NESTED/NLA_F_NET_BYTEORDER flag bits are
// stripped, matching what CTRL_ATTR_* parsing needs here).
type Attr struct {
	Type  uint16
	Value []byte
}

func alignAttr(n int) int {
	return (n + attrAlign - 1) &^ (attrAlign - 1)
}

// ParseAttrs walks a buffer of 4-byte-aligned, little-endian-headered TLV
// attributes (len:u16, type:u16, value) per §6. A truncated trailing
// attribute is dropped silently rather than erroring: the caller already
// validated the enclosing message length.
func ParseAttrs(buf []byte) []Attr {
	var attrs []Attr
	off := 0
	for off+attrHeaderLen <= len(buf) {
		attrLen := int(binary.LittleEndian.Uint16(buf[off : off+2]))
		attrType := binary.LittleEndian.Uint16(buf[off+2 : off+4]) &^ 0xC000
		if attrLen < attrHeaderLen || off+attrLen > len(buf) {
			break
		}
		value := buf[off+attrHeaderLen : off+attrLen]
		attrs = append(attrs, Attr{Type: attrType, Value: value})
		off += alignAttr(attrLen)
	}
	return attrs
}

// PutAttr appends one TLV attribute (header + value + alignment padding)
// to buf and returns the extended slice.
func PutAttr(buf []byte, attrType uint16, value []byte) []byte {
	attrLen := attrHeaderLen + len(value)
	header := make([]byte, attrHeaderLen)
	binary.LittleEndian.PutUint16(header[0:2], uint16(attrLen))
	binary.LittleEndian.PutUint16(header[2:4], attrType)
	buf = append(buf, header...)
	buf = append(buf, value...)
	if pad := alignAttr(attrLen) - attrLen; pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	return buf
}

// nulTerminatedString trims a single trailing NUL from a CTRL_ATTR_*
// string attribute value, per the libnl convention these payloads use.
func nulTerminatedString(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}
