package events_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cellstore/cellstore/container"
	"github.com/cellstore/cellstore/events"
	"github.com/cellstore/cellstore/internal/kind"
	"github.com/cellstore/cellstore/internal/pool"
	"github.com/cellstore/cellstore/registry"
)

func newContainer(t *testing.T, p *pool.Pool) *container.Container {
	t.Helper()
	c, err := container.New(p)
	require.NoError(t, err)
	return c
}

func TestSubscribeAndNotifyDeliversFieldEvent(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)

	c := newContainer(t, p)
	require.NoError(t, container.WriteT(c, "age", int32(1), true))

	var got events.Event
	evReg.Subscribe(c, "age", func(e events.Event) { got = e })

	fk := kind.FieldKind{Kind: kind.Int32}
	evReg.Notify(c, "age", fk, events.Write)

	require.Equal(t, events.Write, got.Type)
	require.Equal(t, "age", got.Path)
	require.Same(t, c, got.Target)
}

func TestGlobalSubscriberReceivesAnyFieldEvent(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	var count int
	evReg.Subscribe(c, "", func(events.Event) { count++ })
	evReg.Notify(c, "a", kind.FieldKind{Kind: kind.Int32}, events.Write)
	evReg.Notify(c, "b", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Equal(t, 2, count)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	var count int
	id := evReg.Subscribe(c, "age", func(events.Event) { count++ })
	evReg.Unsubscribe(c, "age", id)
	evReg.Notify(c, "age", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Zero(t, count)
}

func TestNotifyBubblesPathThroughParentReferenceField(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)

	parent := newContainer(t, p)
	child := newContainer(t, p)
	childID, err := reg.Register(child)
	require.NoError(t, err)
	reg.SetParent(child, parent)

	_, err = parent.GetRef("kid")
	require.NoError(t, err)
	require.NoError(t, parent.SetRef("kid", container.RefID(childID)))

	var got events.Event
	evReg.Subscribe(parent, "", func(e events.Event) { got = e })
	evReg.Notify(child, "value", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Equal(t, "kid.value", got.Path)
	require.Same(t, parent, got.Target)
}

func TestNotifyBubblesArrayIndexSegment(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)

	parent := newContainer(t, p)
	child := newContainer(t, p)
	childID, err := reg.Register(child)
	require.NoError(t, err)
	reg.SetParent(child, parent)

	b, err := parent.Rebuilder()
	require.NoError(t, err)
	b.SetArray("kids", kind.Ref, 2)
	layoutBytes, err := b.BuildLayout()
	require.NoError(t, err)
	require.NoError(t, parent.Rescheme(layoutBytes))
	require.NoError(t, parent.WriteRefElem("kids", 1, uint64(childID)))

	var got events.Event
	evReg.Subscribe(parent, "", func(e events.Event) { got = e })
	evReg.Notify(child, "value", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Equal(t, "kids[1].value", got.Path)
}

func TestSubscribeAtAncestorByCompoundFieldPathMatches(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)

	parent := newContainer(t, p)
	child := newContainer(t, p)
	childID, err := reg.Register(child)
	require.NoError(t, err)
	reg.SetParent(child, parent)

	_, err = parent.GetRef("player")
	require.NoError(t, err)
	require.NoError(t, parent.SetRef("player", container.RefID(childID)))

	// A field-specific ancestor subscription is only reachable through the
	// dotted compound key, since storage.Object has no Subscribe wrapper:
	// the subscriber must know the full path from parent down to the field.
	var got events.Event
	evReg.Subscribe(parent, "player.hp", func(e events.Event) { got = e })
	evReg.Notify(child, "hp", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Equal(t, "player.hp", got.Path)
	require.Same(t, parent, got.Target)
}

func TestNotifyRenameMovesSubscriberList(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	var hits int
	evReg.Subscribe(c, "old", func(events.Event) { hits++ })

	evReg.NotifyRename(c, "old", "new", kind.FieldKind{Kind: kind.Int32})
	evReg.Notify(c, "new", kind.FieldKind{Kind: kind.Int32}, events.Write)
	evReg.Notify(c, "old", kind.FieldKind{Kind: kind.Int32}, events.Write)

	require.Equal(t, 2, hits, "the subscription moved to \"new\" and also caught the Rename event delivered under \"new\"")
}

func TestStaleGenerationSynthesizesDispose(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	var evts []events.Event
	evReg.Subscribe(c, "age", func(e events.Event) { evts = append(evts, e) })

	require.NoError(t, container.WriteT(c, "age", int8(1), true))
	require.NoError(t, container.WriteT(c, "age", int64(100), true)) // forces rescheme -> generation bump

	evReg.Notify(c, "age", kind.FieldKind{Kind: kind.Int64}, events.Write)

	require.Len(t, evts, 1)
	require.Equal(t, events.Dispose, evts[0].Type, "a generation bump since subscribing invalidates the record")
}

func TestDisposeContainerDeliversDisposeToAllSubscribers(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	var fieldHit, globalHit bool
	evReg.Subscribe(c, "age", func(e events.Event) { fieldHit = e.Type == events.Dispose })
	evReg.Subscribe(c, "", func(e events.Event) { globalHit = e.Type == events.Dispose })

	evReg.DisposeContainer(c)

	require.True(t, fieldHit)
	require.True(t, globalHit)
}

func TestSubscriptionCountTracksLiveSubscriptions(t *testing.T) {
	p := pool.New()
	reg := registry.New(p)
	evReg := events.New(reg)
	c := newContainer(t, p)

	id1 := evReg.Subscribe(c, "a", func(events.Event) {})
	evReg.Subscribe(c, "b", func(events.Event) {})
	require.Equal(t, 2, evReg.SubscriptionCount())

	evReg.Unsubscribe(c, "a", id1)
	require.Equal(t, 1, evReg.SubscriptionCount())
}
