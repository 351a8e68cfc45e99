package counterdb

import (
	"testing"

	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/sai"
)

// noopLogger satisfies log.Logger without requiring log.Init in tests.
type noopLogger struct{}

func (noopLogger) Print(args ...interface{})                 {}
func (noopLogger) Printf(format string, args ...interface{}) {}
func (noopLogger) Trace(args ...interface{})                 {}
func (noopLogger) Tracef(format string, args ...interface{}) {}
func (noopLogger) Debug(args ...interface{})                 {}
func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Info(args ...interface{})                  {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Warn(args ...interface{})                  {}
func (noopLogger) Warnf(format string, args ...interface{})  {}
func (noopLogger) Error(args ...interface{})                 {}
func (noopLogger) Errorf(format string, args ...interface{}) {}
func (noopLogger) Fatal(args ...interface{})                 {}
func (noopLogger) Fatalf(format string, args ...interface{}) {}
func (n noopLogger) WithField(field string, value interface{}) log.Logger   { return n }
func (n noopLogger) WithFields(fields map[string]interface{}) log.Logger    { return n }
func (n noopLogger) WithError(err error) log.Logger                         { return n }
func (noopLogger) IsTraceEnabled() bool { return false }
func (noopLogger) IsDebugEnabled() bool { return false }

type fakeStore struct {
	nameMap map[string]string // table\x00field -> oid
	hsets   map[string]string // key\x00field -> value
}

func newFakeStore() *fakeStore {
	return &fakeStore{nameMap: make(map[string]string), hsets: make(map[string]string)}
}

func (f *fakeStore) HGet(table, field string) (string, bool, error) {
	v, ok := f.nameMap[table+"\x00"+field]
	return v, ok, nil
}

func (f *fakeStore) HSet(key, field, value string) error {
	f.hsets[key+"\x00"+field] = value
	return nil
}

func (f *fakeStore) Close() error { return nil }

func TestNormalizeObjectName(t *testing.T) {
	cases := map[string]string{
		"Ethernet0|Ethernet4":  "Ethernet0:Ethernet4",
		"a|b|c":                "a|b:c",
		"noSeparator":          "noSeparator",
	}
	for in, want := range cases {
		if got := normalizeObjectName(in); got != want {
			t.Errorf("normalizeObjectName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestActor_WriteTickWritesDirtyChangedEntries(t *testing.T) {
	store := newFakeStore()
	store.nameMap["COUNTERS_PORT_NAME_MAP\x00Ethernet0:Ethernet4"] = "oid:0x1000000000003"

	batches := make(chan ipfix.StatBatch, 1)
	a := NewActor(store, 0, batches)

	typeID := uint32(sai.ObjectTypePort)
	a.absorb(ipfix.StatBatch{
		{ObjectName: "Ethernet0|Ethernet4", TypeID: typeID, StatID: 0, Counter: 1000},
	})
	a.writeTick(noopLogger{})

	if v := store.hsets["COUNTERS:oid:0x1000000000003\x00SAI_PORT_STAT_IF_IN_OCTETS"]; v != "1000" {
		t.Fatalf("expected write, got hsets=%v", store.hsets)
	}

	key := cacheKey{objectName: "Ethernet0|Ethernet4", typeID: typeID, statID: 0}
	entry := a.cache[key]
	if entry.dirty || entry.lastWritten != 1000 {
		t.Fatalf("expected entry settled after write, got %+v", entry)
	}

	// Second tick with no change must not re-write.
	store.hsets = make(map[string]string)
	a.writeTick(noopLogger{})
	if len(store.hsets) != 0 {
		t.Fatalf("expected no writes for unchanged counter, got %v", store.hsets)
	}
}

func TestActor_MissingOIDSkipsWrite(t *testing.T) {
	store := newFakeStore()
	batches := make(chan ipfix.StatBatch, 1)
	a := NewActor(store, 0, batches)

	a.absorb(ipfix.StatBatch{
		{ObjectName: "Unknown|Port", TypeID: uint32(sai.ObjectTypePort), StatID: 0, Counter: 5},
	})
	a.writeTick(noopLogger{})

	if len(store.hsets) != 0 {
		t.Fatalf("expected no write on OID miss, got %v", store.hsets)
	}
}
