package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/events"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/pool"
	"github.com/cellstore/cellstore/registry"
	"github.com/cellstore/cellstore/storage"
)

type harness struct {
	p   *pool.Pool
	reg *registry.Registry
	ev  *events.Registry
}

func newHarness() *harness {
	p := pool.New()
	reg := registry.New(p)
	return &harness{p: p, reg: reg, ev: events.New(reg)}
}

func (h *harness) object(t *testing.T) storage.Object {
	t.Helper()
	c, err := container.New(h.p)
	require.NoError(t, err)
	_, err = h.reg.Register(c)
	require.NoError(t, err)
	return storage.New(c, h.reg, h.ev, h.p)
}

func TestReadWriteScalarRoundTrips(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	require.NoError(t, storage.Write(o, "age", int32(30), true))
	v, err := storage.Read[int32](o, "age")
	require.NoError(t, err)
	require.Equal(t, int32(30), v)
}

func TestWriteNotifiesSubscribers(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	// Create the field first so the subsequent same-size overwrite below
	// doesn't itself trigger a rescheme (which would bump the generation
	// and invalidate the subscription before the event is dispatched).
	require.NoError(t, storage.Write(o, "age", int32(1), true))

	var got events.Event
	h.ev.Subscribe(o.Container(), "age", func(e events.Event) { got = e })
	require.NoError(t, storage.Write(o, "age", int32(2), true))

	require.Equal(t, events.Write, got.Type)
	require.Equal(t, "age", got.Path)
}

func TestWriteStringInlineRoundTrips(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	require.NoError(t, o.WriteString("name", "hello"))
	s, err := o.ReadString("name")
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestReadStringAbsentIsEmpty(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	s, err := o.ReadString("missing")
	require.NoError(t, err)
	require.Empty(t, s)
}

func TestWriteStringThroughExistingChildReference(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	child, err := o.GetObject("name", nil)
	require.NoError(t, err)
	require.NoError(t, child.WriteString("value", "placeholder"))

	require.NoError(t, o.WriteString("name", "redirected"))
	s, err := o.ReadString("name")
	require.NoError(t, err)
	require.Equal(t, "redirected", s)
}

func TestWriteArrayAndReadArrayRoundTrip(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	require.NoError(t, storage.WriteArray(o, "vals", []int32{1, 2, 3}))
	got, err := storage.ReadArray[int32](o, "vals")
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, got)
}

func TestReadArrayConvertsElementsViaKernel(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	require.NoError(t, storage.WriteArray(o, "vals", []int8{1, 2, 3}))
	got, err := storage.ReadArray[int64](o, "vals")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, got)
}

func TestGetObjectCreatesEmptyChildWhenAbsent(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	child, err := o.GetObject("nested", nil)
	require.NoError(t, err)
	n, err := child.Container().FieldCount()
	require.NoError(t, err)
	require.Zero(t, n)

	again, err := o.GetObject("nested", nil)
	require.NoError(t, err)
	require.Equal(t, child.Container().ID(), again.Container().ID(), "a second GetObject resolves the same child")
}

func TestDeleteInvalidatesExistingSubscriptionAsDispose(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	require.NoError(t, storage.Write(o, "age", int32(1), true))

	var got events.Event
	h.ev.Subscribe(o.Container(), "age", func(e events.Event) { got = e })
	require.NoError(t, o.Delete("age"))

	// Delete reschemes the container to drop the field, which bumps the
	// generation before the Delete event is dispatched; a subscription
	// taken out beforehand is therefore already stale and receives a
	// synthesized Dispose rather than the Delete itself.
	require.Equal(t, events.Dispose, got.Type)
	idx, err := o.Container().IndexOf("age")
	require.NoError(t, err)
	require.Less(t, idx, 0)
}

func TestDeleteReferenceUnregistersChild(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	child, err := o.GetObject("nested", nil)
	require.NoError(t, err)
	childID := child.Container().ID()

	require.NoError(t, o.Delete("nested"))

	_, ok := h.reg.Lookup(childID)
	require.False(t, ok)
	require.True(t, child.Container().Disposed())
}

func TestEachVisitsEveryField(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	require.NoError(t, storage.Write(o, "a", int32(1), true))
	require.NoError(t, storage.Write(o, "b", int64(2), true))

	seen := map[string]bool{}
	require.NoError(t, o.Each(func(name string, fk kind.FieldKind) error {
		seen[name] = true
		return nil
	}))
	require.True(t, seen["a"])
	require.True(t, seen["b"])
}

func TestNavigateResolvesNestedDottedPath(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	child, err := o.GetObject("addr", nil)
	require.NoError(t, err)
	require.NoError(t, storage.Write(child, "zip", int32(90210), true))

	leafObj, leafName, err := o.Navigate("addr.zip", false)
	require.NoError(t, err)
	require.Equal(t, "zip", leafName)
	v, err := storage.Read[int32](leafObj, leafName)
	require.NoError(t, err)
	require.Equal(t, int32(90210), v)
}

func TestNavigateCreatesMissingIntermediates(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	leafObj, leafName, err := o.Navigate("a.b.c", true)
	require.NoError(t, err)
	require.Equal(t, "c", leafName)
	require.NoError(t, storage.Write(leafObj, leafName, int32(7), true))

	again, _, err := o.Navigate("a.b.c", false)
	require.NoError(t, err)
	v, err := storage.Read[int32](again, "c")
	require.NoError(t, err)
	require.Equal(t, int32(7), v)
}

func TestNavigateIndexedSegmentWithoutCreateFailsOnMissingArray(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	_, _, err := o.Navigate("items[0].leaf", false)
	require.Error(t, err, "a missing indexed segment fails when createIfMissing is false")
}

func TestNavigateIndexedSegmentCreatesArrayAndElement(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	leafObj, leafName, err := o.Navigate("items[2]", true)
	require.NoError(t, err)
	require.Empty(t, leafName, "an indexed leaf segment returns the target Object itself")
	require.NoError(t, storage.Write(leafObj, "n", int32(5), true))
}

func TestReadBlobTextDecodesWindows1252(t *testing.T) {
	h := newHarness()
	o := h.object(t)

	b, err := o.Container().Rebuilder()
	require.NoError(t, err)
	b.SetArray("legacy", kind.Blob, 1)
	layoutBytes, err := b.BuildLayout()
	require.NoError(t, err)
	require.NoError(t, o.Container().Rescheme(layoutBytes))
	require.NoError(t, o.Container().WriteBytes("legacy", []byte{0x93})) // Windows-1252 "“"

	s, err := o.ReadBlobText("legacy")
	require.NoError(t, err)
	require.NotEmpty(t, s)
}

func TestReadBlobTextRejectsNonBlobField(t *testing.T) {
	h := newHarness()
	o := h.object(t)
	require.NoError(t, storage.Write(o, "n", int32(1), true))
	_, err := o.ReadBlobText("n")
	require.Error(t, err)
}
