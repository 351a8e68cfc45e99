package netlink

import "firestige.xyz/otus/internal/log"

// maxMessageSize bounds a single netlink message's declared length; beyond
// this the stream is treated as corrupt (§4.2).
const maxMessageSize = 1024 * 1024

// RawMessage is one fully reassembled netlink message with both headers
// decoded and the generic-netlink body (everything after the combined
// 20-byte header) sliced out.
type RawMessage struct {
	Header Header
	Genl   GenlHeader
	Body   []byte
}

// Scanner reassembles a byte stream into complete netlink messages. It is
// shared by the data-socket Parser (§4.2) and the liveness controller's
// notification reader (§6 "Kernel netlink (control path)"), which differ
// only in what they do with each message's Genl.Cmd and Body.
type Scanner struct {
	buf []byte
}

// NewScanner returns an empty reassembly scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed appends newly received bytes and returns every complete netlink
// message that can now be extracted, in order. A trailing incomplete
// message is retained for the next call. A declared length that is too
// small or too large is corrupt: the malformed prefix (the 16-byte header
// carrying that length) is dropped and scanning resumes right after it,
// per the spec's redesigned behavior (the
// original Rust implementation aborted the whole buffer on this
// condition).
func (s *Scanner) Feed(data []byte) []RawMessage {
	s.buf = append(s.buf, data...)

	var out []RawMessage
	off := 0
	for {
		remaining := len(s.buf) - off
		if remaining < HeaderLen {
			break
		}

		hdr := DecodeHeader(s.buf[off:])
		declared := int(hdr.Len)

		if declared < HeaderLen || declared > maxMessageSize {
			log.GetLogger().WithFields(map[string]interface{}{
				"offset": off,
				"len":    declared,
			}).Warn("corrupt netlink message length, dropping header and resyncing")
			off += HeaderLen
			continue
		}

		if remaining < declared {
			break
		}

		msg := s.buf[off : off+declared]
		if raw, ok := decodeMessage(hdr, msg); ok {
			out = append(out, raw)
		}
		off += declared
	}

	if off > 0 {
		s.buf = append([]byte(nil), s.buf[off:]...)
	}
	return out
}

func decodeMessage(hdr Header, msg []byte) (RawMessage, bool) {
	if len(msg) < CombinedLen {
		// Smaller than even the combined header: nothing meaningful to
		// hand to either consumer; drop silently.
		return RawMessage{}, false
	}
	genl := DecodeGenlHeader(msg[HeaderLen:])
	body := msg[CombinedLen:]
	// Copy so the scanner's internal buffer can be reused/reallocated by
	// later Feed calls without the consumer observing a mutation
	// (§3 "byte buffers forwarded ... are shared immutably").
	out := make([]byte, len(body))
	copy(out, body)
	return RawMessage{Header: hdr, Genl: genl, Body: out}, true
}

// Payload is an IPFIX-bearing byte slice extracted from one complete
// netlink message, forwarded downstream to the decoder.
type Payload = []byte

// Parser is the Data Ingress's view of Scanner: it only cares about the
// body of each message (the IPFIX payload), not the genl command.
type Parser struct {
	scanner *Scanner
}

// NewParser returns an empty reassembly parser for the data socket.
func NewParser() *Parser {
	return &Parser{scanner: NewScanner()}
}

// Feed appends newly received bytes and returns every complete IPFIX
// payload extracted so far, in order.
func (p *Parser) Feed(data []byte) []Payload {
	msgs := p.scanner.Feed(data)
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Payload, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}
