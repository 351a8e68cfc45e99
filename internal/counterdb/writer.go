package counterdb

import (
	"context"
	"strconv"
	"strings"
	"time"

	"firestige.xyz/otus/internal/ipfix"
	"firestige.xyz/otus/internal/log"
	"firestige.xyz/otus/internal/metrics"
	"firestige.xyz/otus/internal/sai"
)

// cacheKey identifies one cached counter (§4.4 "On arrival").
type cacheKey struct {
	objectName string
	typeID     uint32
	statID     uint32
}

// cacheEntry is the lifecycle state of one cached counter (§4.4,
// §8 invariant 2: dirty=false implies counter=lastWritten).
type cacheEntry struct {
	counter      uint64
	dirty        bool
	lastWritten  uint64
	everWritten  bool
}

// Actor is the Counter Store Writer: single-threaded, owns the cache,
// the OID resolution cache, and the sole counter-database connection
// (§4.4 "Concurrency").
type Actor struct {
	store    Store
	interval time.Duration
	batches  <-chan ipfix.StatBatch

	cache    map[cacheKey]*cacheEntry
	oidCache map[string]string // table name + "\x00" + normalized object name -> oid
}

// NewActor builds a Counter Store Writer against store, consuming
// batches and flushing dirty entries every interval.
func NewActor(store Store, interval time.Duration, batches <-chan ipfix.StatBatch) *Actor {
	return &Actor{
		store:    store,
		interval: interval,
		batches:  batches,
		cache:    make(map[cacheKey]*cacheEntry),
		oidCache: make(map[string]string),
	}
}

// Run concurrent-selects between batch arrival and the write tick
// (§4.4 "Loop") until ctx is cancelled or the batch channel closes.
func (a *Actor) Run(ctx context.Context) error {
	logger := log.GetLogger()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	defer a.store.Close()

	for {
		select {
		case <-ctx.Done():
			a.writeTick(logger)
			return nil
		case batch, ok := <-a.batches:
			if !ok {
				a.writeTick(logger)
				return nil
			}
			a.absorb(batch)
		case <-ticker.C:
			a.writeTick(logger)
		}
	}
}

// absorb applies §4.4 "On arrival" to every stat in the batch.
func (a *Actor) absorb(batch ipfix.StatBatch) {
	for _, stat := range batch {
		key := cacheKey{objectName: stat.ObjectName, typeID: stat.TypeID, statID: stat.StatID}
		entry, ok := a.cache[key]
		if !ok {
			a.cache[key] = &cacheEntry{counter: stat.Counter, dirty: true}
			continue
		}
		if entry.counter != stat.Counter {
			entry.counter = stat.Counter
			entry.dirty = true
		}
	}
}

// writeTick applies §4.4 "On tick": scan the cache and write every
// entry that is dirty and whose counter differs from what was last
// successfully written.
func (a *Actor) writeTick(logger log.Logger) {
	successes, failures := 0, 0
	for key, entry := range a.cache {
		if !entry.dirty || (entry.everWritten && entry.counter == entry.lastWritten) {
			continue
		}
		if a.writeOne(logger, key, entry) {
			entry.lastWritten = entry.counter
			entry.everWritten = true
			entry.dirty = false
			successes++
			metrics.CounterWritesTotal.WithLabelValues("ok").Inc()
		} else {
			failures++
			metrics.CounterWritesTotal.WithLabelValues("fail").Inc()
		}
	}
	if successes > 0 || failures > 0 {
		logger.WithFields(map[string]interface{}{
			"successful": successes,
			"failed":     failures,
		}).Info("counter store write tick complete")
	}
}

func (a *Actor) writeOne(logger log.Logger, key cacheKey, entry *cacheEntry) bool {
	table, ok := sai.TableSuffix(sai.ObjectType(key.typeID))
	if !ok {
		logger.WithField("type_id", key.typeID).Debug("unknown object type, skipping write")
		return false
	}
	normalized := normalizeObjectName(key.objectName)
	oid, ok := a.resolveOID(logger, table, normalized)
	if !ok {
		return false
	}
	statField, ok := sai.StatName(sai.ObjectType(key.typeID), key.statID)
	if !ok {
		logger.WithFields(map[string]interface{}{
			"type_id": key.typeID,
			"stat_id": key.statID,
		}).Debug("unknown stat id, skipping write")
		return false
	}
	if err := a.store.HSet("COUNTERS:"+oid, statField, strconv.FormatUint(entry.counter, 10)); err != nil {
		logger.WithError(err).Debug("counter store write failed")
		return false
	}
	return true
}

// resolveOID looks up the object identifier for normalized, via the
// never-evicted OID cache on hit, or HGET on miss (§4.4 step 3).
func (a *Actor) resolveOID(logger log.Logger, table, normalized string) (string, bool) {
	cacheKey := table + "\x00" + normalized
	if oid, ok := a.oidCache[cacheKey]; ok {
		return oid, true
	}
	oid, ok, err := a.store.HGet(table, normalized)
	if err != nil {
		logger.WithError(err).Debug("OID lookup failed")
		return "", false
	}
	if !ok {
		logger.WithFields(map[string]interface{}{
			"table": table,
			"name":  normalized,
		}).Debug("no OID for object, skipping write")
		return "", false
	}
	a.oidCache[cacheKey] = oid
	return oid, true
}

// normalizeObjectName replaces the last '|' in name with ':'; leading
// segments retain '|' (§4.4 step 2).
func normalizeObjectName(name string) string {
	idx := strings.LastIndex(name, "|")
	if idx < 0 {
		return name
	}
	return name[:idx] + ":" + name[idx+1:]
}
