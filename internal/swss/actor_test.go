package swss

import (
	"reflect"
	"testing"

	"firestige.xyz/otus/internal/ipfix"
)

func TestSplitObjectNames(t *testing.T) {
	got := splitObjectNames(" Ethernet0 , Ethernet4,, Ethernet8 ")
	want := []string{"Ethernet0", "Ethernet4", "Ethernet8"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if splitObjectNames("") != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestQualifies(t *testing.T) {
	if !qualifies(map[string]string{"stream_status": "enabled", "session_type": "ipfix"}) {
		t.Fatal("expected enabled ipfix session to qualify")
	}
	if qualifies(map[string]string{"stream_status": "disabled", "session_type": "ipfix"}) {
		t.Fatal("expected disabled session to not qualify")
	}
	if qualifies(map[string]string{"stream_status": "enabled", "session_type": "other"}) {
		t.Fatal("expected non-ipfix session to not qualify")
	}
}

func TestActor_QualifyingSessionEmitsUpsertThenDeleteOnRemoval(t *testing.T) {
	templates := make(chan ipfix.TemplateCommand, 4)
	a := &Actor{table: "STREAM_TELEMETRY_SESSION_TABLE", templates: templates, qualifying: make(map[string]bool)}

	fields := map[string]string{
		"stream_status":  "enabled",
		"session_type":   "ipfix",
		"object_names":   "Ethernet0",
		"session_config": "bundle-bytes",
	}
	a.seenOnce(t, fields, "s1")

	select {
	case cmd := <-templates:
		up, ok := cmd.(ipfix.Upsert)
		if !ok || up.SessionKey != "s1" || string(up.Bundle) != "bundle-bytes" {
			t.Fatalf("unexpected upsert: %+v", cmd)
		}
	default:
		t.Fatal("expected an Upsert command")
	}

	// Session disappears on the next poll: nothing in `seen` this round.
	for k := range a.qualifying {
		delete(a.qualifying, k)
		a.sendTemplate(ipfix.Delete{SessionKey: k})
	}
	select {
	case cmd := <-templates:
		if _, ok := cmd.(ipfix.Delete); !ok {
			t.Fatalf("expected Delete, got %+v", cmd)
		}
	default:
		t.Fatal("expected a Delete command")
	}
}

// seenOnce directly exercises the qualifying-session bookkeeping
// pollOnce performs, without a real RESP connection.
func (a *Actor) seenOnce(t *testing.T, fields map[string]string, sessionKey string) {
	t.Helper()
	if !qualifies(fields) {
		t.Fatal("expected test fixture to qualify")
	}
	a.qualifying[sessionKey] = true
	a.sendTemplate(ipfix.Upsert{
		SessionKey:  sessionKey,
		ObjectNames: splitObjectNames(fields["object_names"]),
		Bundle:      []byte(fields["session_config"]),
	})
}
