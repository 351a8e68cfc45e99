package ipfix

import "firestige.xyz/otus/internal/log"

// Registry owns the pending/applied/names template bookkeeping from §3,
// plus the template definitions needed to actually decode data records.
// It is exclusively owned by the Decoder actor (§5 "no shared locks");
// nothing here is safe for concurrent use.
type Registry struct {
	pending map[uint16]string            // template_id -> session_key, not yet confirmed by a data record
	applied map[string]map[uint16]bool   // session_key -> confirmed template ids
	names   map[string][]string          // session_key -> object_names (1-based label lookup)
	owner   map[uint16]string            // template_id -> owning session_key, valid whether pending or applied
	defs    map[uint16]Template          // template_id -> field layout, kept even across apply
}

// NewRegistry returns an empty template registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[uint16]string),
		applied: make(map[string]map[uint16]bool),
		names:   make(map[string][]string),
		owner:   make(map[uint16]string),
		defs:    make(map[uint16]Template),
	}
}

// Upsert parses bundle as a sequence of IPFIX messages, extracts its
// template records, and binds them to sessionKey (§4.3 "Template
// handling (Upsert)"). Last-writer-wins: a template id already owned by
// a different session is silently reassigned (§9 open question).
func (r *Registry) Upsert(sessionKey string, objectNames []string, bundle []byte) {
	for _, msg := range splitMessages(bundle) {
		for _, set := range splitSets(msg.sets) {
			if set.setID != templateSetID {
				continue
			}
			for _, tmpl := range splitTemplateRecords(set.body) {
				r.defs[tmpl.ID] = tmpl
				r.bindPending(tmpl.ID, sessionKey)
			}
		}
	}
	if objectNames != nil {
		r.names[sessionKey] = objectNames
	}
}

// bindPending assigns template id t to sessionKey, removing it from
// whichever map (pending or applied) previously owned it so the XOR
// invariant (§8 item 1) always holds.
func (r *Registry) bindPending(t uint16, sessionKey string) {
	if prevOwner, ok := r.owner[t]; ok {
		delete(r.pending, t)
		if set := r.applied[prevOwner]; set != nil {
			delete(set, t)
		}
	}
	r.pending[t] = sessionKey
	r.owner[t] = sessionKey
}

// Delete removes sessionKey from applied, erases every pending entry it
// owns, and drops its object-name list (§4.3 "Template handling (Delete)").
func (r *Registry) Delete(sessionKey string) {
	for id, sk := range r.pending {
		if sk == sessionKey {
			delete(r.pending, id)
			delete(r.owner, id)
		}
	}
	for id := range r.applied[sessionKey] {
		delete(r.owner, id)
	}
	delete(r.applied, sessionKey)
	delete(r.names, sessionKey)
}

// apply moves every pending template id sharing t's session into
// applied, the first time a data set references t (§4.3). It returns
// the owning session key and whether the template is known at all.
func (r *Registry) apply(t uint16) (sessionKey string, known bool) {
	sessionKey, known = r.owner[t]
	if !known {
		return "", false
	}
	if _, stillPending := r.pending[t]; !stillPending {
		return sessionKey, true // already applied
	}
	set := r.applied[sessionKey]
	if set == nil {
		set = make(map[uint16]bool)
		r.applied[sessionKey] = set
	}
	for id, sk := range r.pending {
		if sk == sessionKey {
			delete(r.pending, id)
			set[id] = true
		}
	}
	return sessionKey, true
}

func (r *Registry) templateDef(t uint16) (Template, bool) {
	tmpl, ok := r.defs[t]
	return tmpl, ok
}

func (r *Registry) objectName(sessionKey string, label int) string {
	list := r.names[sessionKey]
	if label >= 1 && label <= len(list) {
		return list[label-1]
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"session": sessionKey,
		"label":   label,
	}).Debug("object name label out of range, using placeholder")
	return unknownLabel(label)
}
