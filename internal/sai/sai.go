// Package sai holds the SAI (Switch Abstraction Interface) enum catalogs
// this sidecar resolves decoded (type_id, stat_id) pairs against. These
// tables are pure data — ported from the SAI C headers the original
// implementation mirrors — not design; a representative subset of each
// catalog is kept here rather than the full multi-hundred-entry set,
// since the mapping mechanism, not exhaustive enum coverage, is what
// needs exercising (§4.4, §9 of the originating spec).
package sai

import "fmt"

// ObjectType identifies a SAI hardware object class. Values mirror
// sai_object_type_t's ordering in the upstream SAI headers.
type ObjectType uint32

const (
	ObjectTypePort                 ObjectType = 1
	ObjectTypeQueue                ObjectType = 21
	ObjectTypeIngressPriorityGroup ObjectType = 22
	ObjectTypeBufferPool           ObjectType = 45
)

// objectTypeSuffix maps each known object type to the suffix used to
// derive both its counter name-map table (§4.4 step 1) and its stat
// identifier prefix (§4.4 step 4).
var objectTypeSuffix = map[ObjectType]string{
	ObjectTypePort:                 "PORT",
	ObjectTypeQueue:                "QUEUE",
	ObjectTypeIngressPriorityGroup: "INGRESS_PRIORITY_GROUP",
	ObjectTypeBufferPool:           "BUFFER_POOL",
}

// TableSuffix returns the `COUNTERS_<TYPE>_NAME_MAP` table name for the
// given object type. ok is false for a type_id not in the known catalog
// (the extended-id range from §4.3's saturating-add rule included).
func TableSuffix(t ObjectType) (table string, ok bool) {
	suffix, known := objectTypeSuffix[t]
	if !known {
		return "", false
	}
	return fmt.Sprintf("COUNTERS_%s_NAME_MAP", suffix), true
}

// StatName resolves (objectType, statID) to its canonical
// `SAI_<TYPE>_STAT_<NAME>` field identifier (§4.4 step 4). ok is false
// when the object type is unknown or the stat id has no entry in the
// kept subset of that type's catalog.
func StatName(t ObjectType, statID uint32) (name string, ok bool) {
	suffix, known := objectTypeSuffix[t]
	if !known {
		return "", false
	}
	table := statTables[t]
	if table == nil {
		return "", false
	}
	short, found := table[statID]
	if !found {
		return "", false
	}
	return fmt.Sprintf("SAI_%s_STAT_%s", suffix, short), true
}

// StripStatPrefix removes the `SAI_<TYPE>_STAT_` prefix from a canonical
// stat field name, for the reporter's "name" column (§4.5). If name
// doesn't carry the expected prefix for t, it is returned unchanged.
func StripStatPrefix(t ObjectType, name string) string {
	suffix, known := objectTypeSuffix[t]
	if !known {
		return name
	}
	prefix := fmt.Sprintf("SAI_%s_STAT_", suffix)
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

var statTables = map[ObjectType]map[uint32]string{
	ObjectTypePort:                 portStats,
	ObjectTypeQueue:                queueStats,
	ObjectTypeBufferPool:           bufferPoolStats,
	ObjectTypeIngressPriorityGroup: ingressPriorityGroupStats,
}

// portStats mirrors a representative prefix of sai_port_stat_t.
var portStats = map[uint32]string{
	0:  "IF_IN_OCTETS",
	1:  "IF_IN_UCAST_PKTS",
	2:  "IF_IN_NON_UCAST_PKTS",
	3:  "IF_IN_DISCARDS",
	4:  "IF_IN_ERRORS",
	5:  "IF_IN_UNKNOWN_PROTOS",
	6:  "IF_IN_BROADCAST_PKTS",
	7:  "IF_IN_MULTICAST_PKTS",
	9:  "IF_OUT_OCTETS",
	10: "IF_OUT_UCAST_PKTS",
	11: "IF_OUT_NON_UCAST_PKTS",
	12: "IF_OUT_DISCARDS",
	13: "IF_OUT_ERRORS",
	15: "IF_OUT_BROADCAST_PKTS",
	16: "IF_OUT_MULTICAST_PKTS",
	36: "ETHER_STATS_OCTETS",
	37: "ETHER_STATS_PKTS",
}

// queueStats mirrors a representative prefix of sai_queue_stat_t.
var queueStats = map[uint32]string{
	0: "PACKETS",
	1: "BYTES",
	2: "DROPPED_PACKETS",
	3: "DROPPED_BYTES",
	4: "GREEN_PACKETS",
	5: "GREEN_BYTES",
	6: "GREEN_DROPPED_PACKETS",
	7: "GREEN_DROPPED_BYTES",
}

// bufferPoolStats mirrors a representative prefix of sai_buffer_pool_stat_t.
var bufferPoolStats = map[uint32]string{
	0: "CURR_OCCUPANCY_BYTES",
	1: "WATERMARK_BYTES",
	2: "DROPPED_PACKETS",
	9: "WRED_DROPPED_PACKETS",
}

// ingressPriorityGroupStats mirrors a representative prefix of
// sai_ingress_priority_group_stat_t.
var ingressPriorityGroupStats = map[uint32]string{
	0: "PACKETS",
	1: "BYTES",
	2: "CURR_OCCUPANCY_BYTES",
	3: "WATERMARK_BYTES",
	4: "SHARED_CURR_OCCUPANCY_BYTES",
	5: "SHARED_WATERMARK_BYTES",
	6: "XOFF_ROOM_CURR_OCCUPANCY_BYTES",
	7: "XOFF_ROOM_WATERMARK_BYTES",
}
