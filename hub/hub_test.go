package hub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cameroncuttingedge/scorepad/events"
	"github.com/cameroncuttingedge/scorepad/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu         sync.Mutex
	events     [][]byte
	heartbeats int
	failWrites bool
	closed     bool
}

func (f *fakeSink) WriteEvent(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return ErrSinkClosed
	}
	cp := append([]byte{}, data...)
	f.events = append(f.events, cp)
	return nil
}

func (f *fakeSink) WriteHeartbeat() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return ErrSinkClosed
	}
	f.heartbeats++
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) fail() {
	f.mu.Lock()
	f.failWrites = true
	f.mu.Unlock()
}

func (f *fakeSink) eventTypes(t *testing.T) []events.Type {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []events.Type
	for _, raw := range f.events {
		var ev events.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		types = append(types, ev.Type)
	}
	return types
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testGame() *game.Game {
	return game.New("g1", "alice", "Alice")
}

func quietOptions() Options {
	return Options{
		HeartbeatInterval: time.Hour,
		SweepInterval:     time.Hour,
		StaleAfter:        time.Hour,
	}
}

func TestSubscribeSendsConnectedHandshake(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	sink := &fakeSink{}
	_, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.NoError(t, err)

	assert.Equal(t, []events.Type{events.TypeConnected}, sink.eventTypes(t))
	assert.Equal(t, 1, h.SubscriberCount("g1"))
}

func TestSubscribeRejectsDeadSink(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	sink := &fakeSink{failWrites: true}
	_, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.Error(t, err)
	assert.True(t, sink.isClosed())
	assert.Equal(t, 0, h.SubscriberCount("g1"))
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	a, b := &fakeSink{}, &fakeSink{}
	g := testGame()
	_, err := h.Subscribe("g1", a, events.Connected(g))
	require.NoError(t, err)
	_, err = h.Subscribe("g1", b, events.Connected(g))
	require.NoError(t, err)

	h.Publish("g1", events.RoundStarted(g))

	want := []events.Type{events.TypeConnected, events.TypeRoundStarted}
	assert.Equal(t, want, a.eventTypes(t))
	assert.Equal(t, want, b.eventTypes(t))
}

func TestPublishToUnknownGameIsNoOp(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	// Must not panic or create an entry.
	h.Publish("nope", events.RoundStarted(testGame()))
	assert.Equal(t, 0, h.SubscriberCount("nope"))
}

func TestBrokenSubscriberIsRemovedOthersUnaffected(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	healthy, broken := &fakeSink{}, &fakeSink{}
	g := testGame()
	_, err := h.Subscribe("g1", healthy, events.Connected(g))
	require.NoError(t, err)
	_, err = h.Subscribe("g1", broken, events.Connected(g))
	require.NoError(t, err)

	broken.fail()
	h.Publish("g1", events.RoundStarted(g))

	assert.Equal(t, 1, h.SubscriberCount("g1"))
	assert.True(t, broken.isClosed())
	assert.Equal(t, []events.Type{events.TypeConnected, events.TypeRoundStarted}, healthy.eventTypes(t))
}

func TestLastSubscriberRemovalDropsGameEntry(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	sink := &fakeSink{}
	sub, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.NoError(t, err)

	sub.Close()

	h.mu.Lock()
	_, exists := h.subs["g1"]
	h.mu.Unlock()
	assert.False(t, exists, "empty subscriber set must be deleted")
	assert.True(t, sink.isClosed())
}

func TestHeartbeatKeepsSubscriberAlive(t *testing.T) {
	h := New(Options{
		HeartbeatInterval: 10 * time.Millisecond,
		SweepInterval:     25 * time.Millisecond,
		StaleAfter:        100 * time.Millisecond,
	})
	defer h.Close()

	sink := &fakeSink{}
	_, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.NoError(t, err)

	// Well past StaleAfter; heartbeats keep refreshing the last write.
	time.Sleep(250 * time.Millisecond)

	assert.Equal(t, 1, h.SubscriberCount("g1"))
	sink.mu.Lock()
	beats := sink.heartbeats
	sink.mu.Unlock()
	assert.Greater(t, beats, 0)
}

func TestStaleSweepRemovesSilentSubscriber(t *testing.T) {
	h := New(Options{
		HeartbeatInterval: time.Hour, // heartbeat never fires
		SweepInterval:     10 * time.Millisecond,
		StaleAfter:        30 * time.Millisecond,
	})
	defer h.Close()

	sink := &fakeSink{}
	_, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.SubscriberCount("g1") == 0
	}, time.Second, 5*time.Millisecond, "silent subscriber must be swept")

	h.mu.Lock()
	_, exists := h.subs["g1"]
	h.mu.Unlock()
	assert.False(t, exists)
	assert.True(t, sink.isClosed())
}

func TestDropGameDisconnectsEverySubscriber(t *testing.T) {
	h := New(quietOptions())
	defer h.Close()

	a, b := &fakeSink{}, &fakeSink{}
	g := testGame()
	_, err := h.Subscribe("g1", a, events.Connected(g))
	require.NoError(t, err)
	_, err = h.Subscribe("g1", b, events.Connected(g))
	require.NoError(t, err)

	h.DropGame("g1")

	assert.Equal(t, 0, h.SubscriberCount("g1"))
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
}

func TestCloseStopsHeartbeats(t *testing.T) {
	h := New(Options{
		HeartbeatInterval: 10 * time.Millisecond,
		SweepInterval:     10 * time.Millisecond,
		StaleAfter:        time.Hour,
	})

	sink := &fakeSink{}
	_, err := h.Subscribe("g1", sink, events.Connected(testGame()))
	require.NoError(t, err)

	h.Close()
	time.Sleep(30 * time.Millisecond)

	sink.mu.Lock()
	after := sink.heartbeats
	sink.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	sink.mu.Lock()
	later := sink.heartbeats
	sink.mu.Unlock()

	assert.Equal(t, after, later, "no heartbeats after Close")
	assert.True(t, sink.isClosed())
}
