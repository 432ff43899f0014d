// Package registry mints container ids, locates containers by id, tracks
// parent/child links for event bubbling, and performs cascading unregister
// (spec §4.F).
//
// Grounded on the teacher's hive/alloc allocator (an id-keyed free-list plus
// a monotonic counter guarded by one mutex) generalized from disk-block ids
// to container ids, and on hive's subkey-tree parent pointers generalized
// from registry keys to arbitrary reference fields.
package registry

import (
	"errors"
	"sync"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/internal/pool"
)

// ErrNotWild is returned by Register when the container already carries an
// id (it has been registered before, or was never meant to be shared).
var ErrNotWild = errors.New("registry: container is not wild")

// Registry is the shared id table described in spec §4.F. Safe for
// concurrent use; all map mutations hold mu, but a container's own bytes
// are not protected by it (that's the container's job).
type Registry struct {
	mu     sync.Mutex
	next   uint64
	free   []uint64
	table  map[uint64]*container.Container
	parent map[*container.Container]*container.Container
	pool   *pool.Pool
	logger cellerr.Logger
}

// New returns an empty Registry that allocates new containers from p.
func New(p *pool.Pool) *Registry {
	return &Registry{
		next:   1,
		table:  make(map[uint64]*container.Container),
		parent: make(map[*container.Container]*container.Container),
		pool:   p,
	}
}

// SetLogger installs an optional logger used to report an unregister of an
// id that no longer resolves (not an error, just a diagnosable anomaly).
func (r *Registry) SetLogger(l cellerr.Logger) { r.logger = l }

// Stats is a snapshot of the registry's live allocation counters, mirroring
// hive/index.Stats().
type Stats struct {
	// Live is the number of currently registered containers.
	Live int
	// FreeIDs is the number of released ids waiting to be reused.
	FreeIDs int
	// NextID is the id Register will hand out once the free list is empty.
	NextID uint64
}

// Stats returns a point-in-time snapshot of the registry's allocation state.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Live: len(r.table), FreeIDs: len(r.free), NextID: r.next}
}

// Register allocates an id for c (popping the free list or advancing the
// monotonic counter), binds it in the table, and installs the unregister
// hook the container calls when a Rescheme drops a reference field.
func (r *Registry) Register(c *container.Container) (uint64, error) {
	if c.ID() != container.WildID {
		return 0, ErrNotWild
	}
	r.mu.Lock()
	var id uint64
	if n := len(r.free); n > 0 {
		id = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		id = r.next
		r.next++
	}
	r.table[id] = c
	r.mu.Unlock()

	c.SetID(id)
	c.SetUnregisterHook(func(refID uint64) { r.unregisterByID(refID) })
	return id, nil
}

// Lookup resolves id to its container, if still registered.
func (r *Registry) Lookup(id uint64) (*container.Container, bool) {
	if id == container.NullID || id == container.WildID {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.table[id]
	return c, ok
}

// Unregister removes c's id mapping, recursively unregisters every
// non-zero id reachable from c's reference fields, then disposes c.
// Idempotent: unregistering an already-unregistered container is a no-op
// (spec §4.F).
func (r *Registry) Unregister(c *container.Container) error {
	r.mu.Lock()
	bound := r.table[c.ID()] == c
	r.mu.Unlock()
	if bound {
		r.unregisterByID(c.ID())
	}
	return nil
}

// UnregisterRef resolves the id currently stored in parent's fieldName
// field, unregisters the referenced container (if any), and zeroes the
// field on return — the "Unregister(ref id)" variant of spec §4.F.
func (r *Registry) UnregisterRef(parent *container.Container, fieldName string) error {
	id, err := parent.GetRef(fieldName)
	if err != nil {
		return err
	}
	if uint64(id) != container.NullID {
		r.unregisterByID(uint64(id))
	}
	return parent.SetRef(fieldName, container.Null)
}

// CreateAt unregisters whatever currently lives in parent's fieldName slot
// (if anything), builds a fresh container from layoutBytes, registers it,
// writes its id into the slot, and records the parent link.
func (r *Registry) CreateAt(parent *container.Container, fieldName string, layoutBytes []byte) (*container.Container, error) {
	if err := r.UnregisterRef(parent, fieldName); err != nil {
		return nil, err
	}
	child, err := container.FromLayout(r.pool, layoutBytes)
	if err != nil {
		return nil, err
	}
	id, err := r.Register(child)
	if err != nil {
		return nil, err
	}
	if err := parent.SetRef(fieldName, container.RefID(id)); err != nil {
		return nil, err
	}
	r.SetParent(child, parent)
	return child, nil
}

// UnregisterByID unregisters whatever container is currently bound to id,
// if any (equivalent to Unregister when only the id, not the container
// pointer, is on hand).
func (r *Registry) UnregisterByID(id uint64) {
	r.unregisterByID(id)
}

// GetParent returns the last container recorded as c's parent via
// SetParent/CreateAt, used only for event propagation (not ownership).
func (r *Registry) GetParent(c *container.Container) (*container.Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parent[c]
	return p, ok
}

// SetParent records parent as c's parent for event bubbling.
func (r *Registry) SetParent(c, parent *container.Container) {
	r.mu.Lock()
	r.parent[c] = parent
	r.mu.Unlock()
}

// unregisterByID is the recursive core shared by Unregister and
// UnregisterRef. It is deliberately tolerant of an id that no longer
// resolves (already unregistered, or 0/wild) — cascading unregister must
// not fail partway through a subtree.
func (r *Registry) unregisterByID(id uint64) {
	if id == container.NullID || id == container.WildID {
		return
	}
	r.mu.Lock()
	c, ok := r.table[id]
	if ok {
		delete(r.table, id)
		r.free = append(r.free, id)
	}
	r.mu.Unlock()
	if !ok {
		cellerr.LogIfSet(r.logger, "registry: unregister: id %d not registered", id)
		return
	}

	children, err := c.ReferenceIDs()
	if err == nil {
		for _, childID := range children {
			r.unregisterByID(childID)
		}
	}

	r.mu.Lock()
	delete(r.parent, c)
	r.mu.Unlock()

	c.Dispose()
}
