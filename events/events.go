// Package events delivers change notifications without requiring
// containers to hold their own subscriber lists (spec §4.J). Each
// container that ever gets a subscription gets one generation-gated
// record; writes on any container walk the parent chain (via registry)
// dispatching to every ancestor's record along the way.
//
// Grounded on the teacher's hive/namecache package for per-entity-record
// mutex discipline (one mutex per record, not one global lock over
// everything) and on hive/edit for the "mutation fans out, ancestors get
// notified" shape, generalized from registry-key edit propagation to
// arbitrary reference trees.
package events

import (
	"fmt"
	"sync"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/registry"
)

// Type identifies the kind of change an Event carries.
type Type int

const (
	Write Type = iota
	Rename
	Delete
	Dispose
)

func (t Type) String() string {
	switch t {
	case Write:
		return "write"
	case Rename:
		return "rename"
	case Delete:
		return "delete"
	case Dispose:
		return "dispose"
	default:
		return "unknown"
	}
}

// Event describes one change. Path is the dotted/bracketed path from the
// subscribing ancestor down to the field that changed (spec §4.J
// propagation protocol). A Dispose synthesized by generation-gated
// garbage collection carries an empty Target and Path.
type Event struct {
	Type   Type
	Target *container.Container
	Path   string
	Kind   kind.FieldKind
}

// Handler receives delivered events. Must not block.
type Handler func(Event)

type subscriber struct {
	id uint64
	fn Handler
}

func removeSub(list []subscriber, id uint64) []subscriber {
	out := list[:0]
	for _, s := range list {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// record is the per-container subscription bookkeeping of spec §4.J:
// a generation snapshot, field-keyed subscriber lists, container-level
// subscribers, and a monotonic id counter for issuing handles.
type record struct {
	mu         sync.Mutex
	generation uint64
	byField    map[string][]subscriber
	global     []subscriber
	nextID     uint64
}

func newRecord(generation uint64) *record {
	return &record{generation: generation, byField: make(map[string][]subscriber)}
}

// Registry is the event registry of spec §4.J. It consults a
// registry.Registry for parent links when bubbling an event upward.
type Registry struct {
	mu      sync.Mutex
	records map[*container.Container]*record
	reg     *registry.Registry
	logger  cellerr.Logger
	count   int
}

// New returns an event registry that bubbles events using reg's parent
// links.
func New(reg *registry.Registry) *Registry {
	return &Registry{records: make(map[*container.Container]*record), reg: reg}
}

// SetLogger installs an optional logger notified once per generation-gated
// record garbage collection.
func (r *Registry) SetLogger(l cellerr.Logger) { r.logger = l }

// SubscriptionCount returns the total number of live subscriptions across
// every container (spec §4.J "total subscription count").
func (r *Registry) SubscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Registry) recordFor(c *container.Container) *record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[c]
	if !ok {
		rec = newRecord(c.Generation())
		r.records[c] = rec
	}
	return rec
}

func (r *Registry) recordForExisting(c *container.Container) *record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[c]
}

// Subscribe registers fn for events on fieldName within c; fieldName == ""
// subscribes to container-level events only. Returns a handle for
// Unsubscribe.
func (r *Registry) Subscribe(c *container.Container, fieldName string, fn Handler) uint64 {
	rec := r.recordFor(c)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.nextID++
	id := rec.nextID
	sub := subscriber{id: id, fn: fn}
	if fieldName == "" {
		rec.global = append(rec.global, sub)
	} else {
		rec.byField[fieldName] = append(rec.byField[fieldName], sub)
	}
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	return id
}

// Unsubscribe removes a previously issued subscription. A no-op if the
// container has no record or the handle has already been removed.
func (r *Registry) Unsubscribe(c *container.Container, fieldName string, id uint64) {
	rec := r.recordForExisting(c)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	removed := 0
	if fieldName == "" {
		before := len(rec.global)
		rec.global = removeSub(rec.global, id)
		removed = before - len(rec.global)
	} else if lst, ok := rec.byField[fieldName]; ok {
		before := len(lst)
		lst = removeSub(lst, id)
		removed = before - len(lst)
		if len(lst) == 0 {
			delete(rec.byField, fieldName)
		} else {
			rec.byField[fieldName] = lst
		}
	}
	rec.mu.Unlock()
	if removed == 0 {
		return
	}

	r.mu.Lock()
	r.count -= removed
	r.mu.Unlock()
}

// Notify fires a Write/Delete event for fieldName on source, then bubbles
// it up the parent chain, prepending ".name" or "[index]" at each hop per
// spec §4.J's propagation protocol.
func (r *Registry) Notify(source *container.Container, fieldName string, fk kind.FieldKind, etype Type) {
	r.notify(source, fieldName, fk, etype)
}

// NotifyRename atomically moves the field-keyed subscriber list at c from
// oldName to newName, then delivers a Rename event whose path is newName
// (spec §4.J "Rename").
func (r *Registry) NotifyRename(c *container.Container, oldName, newName string, fk kind.FieldKind) {
	if rec := r.recordForExisting(c); rec != nil {
		rec.mu.Lock()
		if lst, ok := rec.byField[oldName]; ok {
			delete(rec.byField, oldName)
			rec.byField[newName] = lst
		}
		rec.mu.Unlock()
	}
	r.notify(c, newName, fk, Rename)
}

// DisposeContainer forces the generation-gated garbage-collection path for
// c: every live subscriber (field and container-level) receives a
// synthesized Dispose event and the record is dropped. Called when a
// container is finally disposed rather than merely rescheme-bumped.
func (r *Registry) DisposeContainer(c *container.Container) {
	rec := r.recordForExisting(c)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	global := append([]subscriber(nil), rec.global...)
	var fieldSubs []subscriber
	for _, lst := range rec.byField {
		fieldSubs = append(fieldSubs, lst...)
	}
	rec.byField = make(map[string][]subscriber)
	rec.global = nil
	rec.mu.Unlock()

	evt := Event{Type: Dispose}
	for _, s := range global {
		s.fn(evt)
	}
	for _, s := range fieldSubs {
		s.fn(evt)
	}

	r.mu.Lock()
	delete(r.records, c)
	r.count -= len(global) + len(fieldSubs)
	r.mu.Unlock()
}

// notify walks from source up through every ancestor reachable via
// registry parent links, delivering one event per hop. The bubbled key
// doubles as both the event's Path and the byField lookup key at each
// ancestor: a subscription taken out on an ancestor via the compound
// dotted/bracketed key (e.g. "player.hp") matches once the key accumulated
// while bubbling equals what was subscribed, not just the immediate child
// reference field's own name (spec §4.J propagation protocol).
func (r *Registry) notify(source *container.Container, key string, fk kind.FieldKind, etype Type) {
	cur := source
	for {
		if rec := r.recordForExisting(cur); rec != nil {
			r.dispatchAt(rec, cur, etype, key, fk)
		}
		parent, ok := r.reg.GetParent(cur)
		if !ok || parent == nil {
			return
		}
		name, idx, isArray, found := parent.FindReferenceField(cur.ID())
		if !found {
			return
		}
		if isArray {
			key = fmt.Sprintf("%s[%d].%s", name, idx, key)
		} else {
			key = fmt.Sprintf("%s.%s", name, key)
		}
		cur = parent
	}
}

// dispatchAt delivers one event at rec, first applying the generation gate
// of spec §4.J: if rec's stored generation no longer matches c's current
// generation, the whole subscriber set is snapshotted, the record is
// cleared, and a synthesized Dispose is delivered to the snapshot instead
// of the real event (the record's subscribers are stale — they subscribed
// to a container identity that no longer exists).
func (r *Registry) dispatchAt(rec *record, c *container.Container, etype Type, key string, fk kind.FieldKind) {
	rec.mu.Lock()
	if rec.generation != c.Generation() {
		global := append([]subscriber(nil), rec.global...)
		var fieldSubs []subscriber
		for _, lst := range rec.byField {
			fieldSubs = append(fieldSubs, lst...)
		}
		rec.generation = c.Generation()
		rec.byField = make(map[string][]subscriber)
		rec.global = nil
		rec.mu.Unlock()

		r.mu.Lock()
		r.count -= len(global) + len(fieldSubs)
		r.mu.Unlock()
		cellerr.LogIfSet(r.logger, "events: gc'd stale record for container %d", c.ID())
		evt := Event{Type: Dispose}
		for _, s := range global {
			s.fn(evt)
		}
		for _, s := range fieldSubs {
			s.fn(evt)
		}
		return
	}

	evt := Event{Type: etype, Target: c, Path: key, Kind: fk}
	fieldSubs := append([]subscriber(nil), rec.byField[key]...)
	globalSubs := append([]subscriber(nil), rec.global...)
	if etype == Delete {
		delete(rec.byField, key)
	}
	rec.mu.Unlock()
	if etype == Delete && len(fieldSubs) > 0 {
		r.mu.Lock()
		r.count -= len(fieldSubs)
		r.mu.Unlock()
	}

	for _, s := range fieldSubs {
		s.fn(evt)
	}
	for _, s := range globalSubs {
		s.fn(evt)
	}
}
