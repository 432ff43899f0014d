// Package container implements the container binary layout and field index
// (spec §4.E): a single owned buffer with a sorted field descriptor table,
// typed reads/writes routed through the migration kernel, and in-place or
// rebuild-based rescheming.
//
// Grounded on the teacher's hive.Hive + internal/edit packages: one struct
// owns a byte slice, every accessor bounds-checks through internal/layout
// the way hivekit's reader bounds-checks through internal/format, and
// schema changes always go through a full rebuild (internal/edit/rebuild.go
// -> here, internal/layoutbuilder) rather than being patched in place.
package container

import (
	"fmt"
	"unicode/utf16"

	"github.com/cellstore/cellstore/cellerr"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/layout"
	"github.com/cellstore/cellstore/internal/layoutbuilder"
	"github.com/cellstore/cellstore/internal/migrate"
	"github.com/cellstore/cellstore/internal/pool"
)

// WildID is the sentinel id of a container never registered.
const WildID uint64 = ^uint64(0)

// NullID is the sentinel meaning "no container" in a reference field.
const NullID uint64 = 0

// Container owns one buffer and exposes typed field operations (spec §4.E).
type Container struct {
	id            uint64
	generation    uint64
	schemaVersion uint32
	buf           []byte
	logicalLen    int
	disposed      bool
	pool          *pool.Pool
	logger        cellerr.Logger

	// unregisterRef, when non-nil, is called by Rescheme/Delete-style
	// operations for every non-zero reference id dropped from a field so
	// the owning registry can cascade the unregister (spec §4.F). Wild
	// containers (never registered) leave this nil.
	unregisterRef func(id uint64)
}

// New allocates an empty, wild (unregistered) container: a buffer holding
// only the header with zero fields (spec §6 "Empty container").
func New(p *pool.Pool) (*Container, error) {
	empty, err := layoutbuilder.New().BuildLayout()
	if err != nil {
		return nil, fmt.Errorf("container: build empty layout: %w", err)
	}
	return FromLayout(p, empty)
}

// FromLayout allocates a container whose buffer is freshly built from
// layoutBytes (as produced by layoutbuilder.Builder.BuildLayout), with a
// zero-filled data region.
func FromLayout(p *pool.Pool, layoutBytes []byte) (*Container, error) {
	lease := p.Rent(len(layoutBytes))
	n := copy(lease, layoutBytes)
	if n < len(layoutBytes) {
		return nil, fmt.Errorf("container: pool lease shorter than layout (%d < %d)", n, len(layoutBytes))
	}
	c := &Container{
		id:         WildID,
		buf:        lease,
		logicalLen: len(layoutBytes),
		pool:       p,
	}
	return c, nil
}

// SetLogger installs an optional logger used to report recoverable
// anomalies: a conversion that fails in ReadT or in WriteT's kernel branch.
func (c *Container) SetLogger(l cellerr.Logger) { c.logger = l }

// ID returns the container's registry id (WildID if never registered).
func (c *Container) ID() uint64 { return c.id }

// Generation returns the init/dispose counter used to detect use-after-free.
func (c *Container) Generation() uint64 { return c.generation }

// SchemaVersion returns the rescheme counter.
func (c *Container) SchemaVersion() uint32 { return c.schemaVersion }

// Disposed reports whether the container has been disposed.
func (c *Container) Disposed() bool { return c.disposed }

// SetID is called by the registry on Register. Exported for the registry
// package; not meant for general callers.
func (c *Container) SetID(id uint64) { c.id = id }

// SetUnregisterHook installs the callback the registry uses to cascade
// unregistration of reference ids dropped by Rescheme/Delete. Exported for
// the registry package; not meant for general callers.
func (c *Container) SetUnregisterHook(fn func(id uint64)) { c.unregisterRef = fn }

func (c *Container) checkLive() error {
	if c.disposed {
		return cellerr.New(cellerr.Disposed, "container %d", c.id)
	}
	return nil
}

// view parses the current buffer into a layout.View.
func (c *Container) view() (layout.View, error) {
	return layout.Parse(c.buf[:c.logicalLen])
}

// IndexOf locates name (binary search) and returns its field index, or the
// bitwise complement of the insertion point if absent (spec §4.C/§4.E).
func (c *Container) IndexOf(name string) (int, error) {
	if err := c.checkLive(); err != nil {
		return 0, err
	}
	v, err := c.view()
	if err != nil {
		return 0, err
	}
	return v.IndexOf(nameUTF16LE(name))
}

// FieldCount returns the number of fields.
func (c *Container) FieldCount() (int, error) {
	if err := c.checkLive(); err != nil {
		return 0, err
	}
	v, err := c.view()
	if err != nil {
		return 0, err
	}
	return v.FieldCount(), nil
}

// FieldNameAt returns the decoded name of the field at idx.
func (c *Container) FieldNameAt(idx int) (string, error) {
	if err := c.checkLive(); err != nil {
		return "", err
	}
	v, err := c.view()
	if err != nil {
		return "", err
	}
	raw, err := v.FieldName(idx)
	if err != nil {
		return "", err
	}
	return utf16ToString(raw), nil
}

// FieldKindAt returns the field-kind of the field at idx.
func (c *Container) FieldKindAt(idx int) (kind.FieldKind, error) {
	if err := c.checkLive(); err != nil {
		return kind.FieldKind{}, err
	}
	v, err := c.view()
	if err != nil {
		return kind.FieldKind{}, err
	}
	fd, err := v.Field(idx)
	if err != nil {
		return kind.FieldKind{}, err
	}
	return fd.FieldKind, nil
}

// Clone returns an independent wild container with an identical buffer
// (the in-memory half of the serializer boundary named in spec §6).
func (c *Container) Clone(p *pool.Pool) (*Container, error) {
	if err := c.checkLive(); err != nil {
		return nil, err
	}
	return FromLayout(p, c.buf[:c.logicalLen])
}

// Dispose returns the buffer to the pool and flips the disposed flag. The
// registry clears id mappings before calling this when disposing via
// Unregister; direct Dispose is permitted only for wild containers
// (spec §5 "Disposal discipline").
func (c *Container) Dispose() {
	if c.disposed {
		return
	}
	c.pool.Return(c.buf)
	c.buf = nil
	c.logicalLen = 0
	c.disposed = true
	c.generation++
}

// reinit replaces the buffer after a rescheme. Bumps generation only when
// the caller should observe identity change; Rescheme itself always
// replaces the underlying buffer (a full rebuild), so generation always
// bumps on Rescheme, matching "Bump generation only if the underlying
// buffer is replaced" in spec §4.E (the container never rebuilds without
// replacing the buffer).
func (c *Container) reinit(newBuf []byte, newLen int) {
	old := c.buf
	c.buf = newBuf
	c.logicalLen = newLen
	c.generation++
	if old != nil {
		c.pool.Return(old)
	}
}

func nameUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		b[i*2] = byte(u)
		b[i*2+1] = byte(u >> 8)
	}
	return b
}

func utf16ToString(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[i*2]) | uint16(b[i*2+1])<<8
	}
	return string(utf16.Decode(units))
}

// fieldSpecs returns the current field list as layoutbuilder.FieldSpec,
// the building block for Rebuilder (spec §4.G "derive a builder
// from an existing container's descriptors").
func (c *Container) fieldSpecs() ([]layoutbuilder.FieldSpec, string, error) {
	v, err := c.view()
	if err != nil {
		return nil, "", err
	}
	specs := make([]layoutbuilder.FieldSpec, v.FieldCount())
	for i := 0; i < v.FieldCount(); i++ {
		fd, err := v.Field(i)
		if err != nil {
			return nil, "", err
		}
		nameRaw, err := v.FieldName(i)
		if err != nil {
			return nil, "", err
		}
		length := 1
		if fd.FieldKind.IsArray {
			elemSize := int(fd.ElementSize)
			if elemSize == 0 {
				elemSize = 1
			}
			length = int(fd.DataLength) / elemSize
		}
		specs[i] = layoutbuilder.FieldSpec{
			Name:    utf16ToString(nameRaw),
			Kind:    fd.FieldKind.Kind,
			IsArray: fd.FieldKind.IsArray,
			Length:  length,
		}
	}
	name := ""
	if raw, ok := v.ContainerName(); ok {
		name = utf16ToString(raw)
	}
	return specs, name, nil
}

// Rebuilder returns a layoutbuilder.Builder pre-populated from the
// container's current schema (spec §4.G "Variate / FromContainer").
func (c *Container) Rebuilder() (*layoutbuilder.Builder, error) {
	if err := c.checkLive(); err != nil {
		return nil, err
	}
	specs, name, err := c.fieldSpecs()
	if err != nil {
		return nil, err
	}
	return layoutbuilder.FromFields(name, specs), nil
}

// convertBytes is a small wrapper so container.go doesn't need to import
// migrate in every file that calls it.
func convertBytes(src []byte, srcKind kind.Value, dst []byte, dstKind kind.Value, explicit bool) error {
	return migrate.Convert(src, srcKind, dst, dstKind, explicit)
}
