package netlink

import "testing"

func buildMessage(payload []byte) []byte {
	total := CombinedLen + len(payload)
	msg := make([]byte, total)
	PutHeader(msg, Header{Len: uint32(total), Type: 0x10, Flags: 0})
	PutGenlHeader(msg[HeaderLen:], GenlHeader{Cmd: 1, Version: 1})
	copy(msg[CombinedLen:], payload)
	return msg
}

func TestParser_SingleMessage(t *testing.T) {
	p := NewParser()
	out := p.Feed(buildMessage([]byte("HELLO")))
	if len(out) != 1 || string(out[0]) != "HELLO" {
		t.Fatalf("got %v", out)
	}
}

func TestParser_EmptyPayloadExactly20Bytes(t *testing.T) {
	p := NewParser()
	out := p.Feed(buildMessage(nil))
	if len(out) != 1 {
		t.Fatalf("expected exactly one payload, got %d", len(out))
	}
	if len(out[0]) != 0 {
		t.Fatalf("expected empty payload, got %q", out[0])
	}
}

func TestParser_TwoMessagesOneRecv(t *testing.T) {
	p := NewParser()
	buf := append(buildMessage([]byte("MESSAGE1")), buildMessage([]byte("MESSAGE2"))...)
	out := p.Feed(buf)
	if len(out) != 2 {
		t.Fatalf("expected 2 payloads, got %d", len(out))
	}
	if string(out[0]) != "MESSAGE1" || string(out[1]) != "MESSAGE2" {
		t.Fatalf("got %q %q", out[0], out[1])
	}
}

func TestParser_SplitAcrossTwoRecvsInsideHeader(t *testing.T) {
	p := NewParser()
	msg := buildMessage([]byte("FRAGMENTED"))

	out1 := p.Feed(msg[:10])
	if len(out1) != 0 {
		t.Fatalf("expected no payloads from partial header, got %v", out1)
	}

	out2 := p.Feed(msg[10:])
	if len(out2) != 1 || string(out2[0]) != "FRAGMENTED" {
		t.Fatalf("got %v", out2)
	}
}

func TestParser_SplitMidPayload(t *testing.T) {
	p := NewParser()
	complete := buildMessage([]byte("COMPLETE"))
	partial := buildMessage([]byte("PARTIAL_MSG"))

	buf := append(append([]byte{}, complete...), partial[:25]...)
	out1 := p.Feed(buf)
	if len(out1) != 1 || string(out1[0]) != "COMPLETE" {
		t.Fatalf("got %v", out1)
	}

	out2 := p.Feed(partial[25:])
	if len(out2) != 1 || string(out2[0]) != "PARTIAL_MSG" {
		t.Fatalf("got %v", out2)
	}
}

func TestParser_CorruptLengthTooSmallDropsAndResyncs(t *testing.T) {
	p := NewParser()
	bad := make([]byte, HeaderLen)
	PutHeader(bad, Header{Len: 4}) // declared < 16: corrupt
	good := buildMessage([]byte("OK"))

	out := p.Feed(append(bad, good...))
	if len(out) != 1 || string(out[0]) != "OK" {
		t.Fatalf("expected recovery after corrupt prefix, got %v", out)
	}
}

func TestParser_CorruptLengthTooLargeDropsAndResyncs(t *testing.T) {
	p := NewParser()
	bad := make([]byte, HeaderLen)
	PutHeader(bad, Header{Len: 2 * 1024 * 1024})
	good := buildMessage([]byte("OK"))

	out := p.Feed(append(bad, good...))
	if len(out) != 1 || string(out[0]) != "OK" {
		t.Fatalf("expected recovery after corrupt prefix, got %v", out)
	}
}

func TestParseAttrs_RoundTrip(t *testing.T) {
	buf := PutAttr(nil, CtrlAttrFamilyName, append([]byte("sonic_stel"), 0))
	buf = PutAttr(buf, CtrlAttrFamilyID, []byte{0x2a, 0x00})

	attrs := ParseAttrs(buf)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Type != CtrlAttrFamilyName || nulTerminatedString(attrs[0].Value) != "sonic_stel" {
		t.Fatalf("unexpected attr 0: %+v", attrs[0])
	}
	if attrs[1].Type != CtrlAttrFamilyID {
		t.Fatalf("unexpected attr 1: %+v", attrs[1])
	}
}

func TestParseFamilyEvent(t *testing.T) {
	body := PutAttr(nil, CtrlAttrFamilyName, append([]byte("sonic_stel"), 0))
	msg := RawMessage{Genl: GenlHeader{Cmd: CtrlCmdNewFamily}, Body: body}

	ev, ok := ParseFamilyEvent(msg)
	if !ok {
		t.Fatal("expected ok")
	}
	if !ev.Appeared || ev.FamilyName != "sonic_stel" {
		t.Fatalf("got %+v", ev)
	}
}
