// Package hub fans out game events to live subscribers, keyed by game id.
package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cameroncuttingedge/scorepad/events"
	"github.com/rs/zerolog/log"
)

// Sink is one subscriber's write side. WriteHeartbeat sends a no-op frame
// distinguishable from data frames; the transport decides what that is.
type Sink interface {
	WriteEvent(data []byte) error
	WriteHeartbeat() error
	Close() error
}

// Options tune the liveness timers. Zero values take the defaults; tests
// inject short intervals.
type Options struct {
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	StaleAfter        time.Duration
}

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultSweepInterval     = 60 * time.Second
	defaultStaleAfter        = 2 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = defaultSweepInterval
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = defaultStaleAfter
	}
	return o
}

type subscriber struct {
	gameID    string
	sink      Sink
	lastWrite atomic.Int64 // unix nanos of the last successful write
	stop      chan struct{}
	stopOnce  sync.Once
}

func (s *subscriber) touch() {
	s.lastWrite.Store(time.Now().UnixNano())
}

// Hub owns the per-game subscriber table and the liveness timers. Construct
// with New and release with Close.
type Hub struct {
	opts Options

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func New(opts Options) *Hub {
	h := &Hub{
		opts: opts.withDefaults(),
		subs: make(map[string]map[*subscriber]struct{}),
		done: make(chan struct{}),
	}
	go h.sweepLoop()
	return h
}

// Subscription is a registered subscriber's handle. Close disconnects it and
// releases its hub entry; closing twice is harmless.
type Subscription struct {
	hub *Hub
	sub *subscriber
}

func (s *Subscription) Close() {
	s.hub.remove(s.sub)
}

// Subscribe registers a sink for a game, sends it the handshake event and
// starts its heartbeat. A failed handshake write means the sink is already
// dead; it is closed and never registered.
func (h *Hub) Subscribe(gameID string, sink Sink, handshake events.Event) (*Subscription, error) {
	data, err := json.Marshal(handshake)
	if err != nil {
		return nil, err
	}
	if err := sink.WriteEvent(data); err != nil {
		_ = sink.Close()
		return nil, err
	}

	sub := &subscriber{gameID: gameID, sink: sink, stop: make(chan struct{})}
	sub.touch()

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*subscriber]struct{})
	}
	h.subs[gameID][sub] = struct{}{}
	count := len(h.subs[gameID])
	h.mu.Unlock()

	go h.heartbeatLoop(sub)
	log.Info().Str("gameID", gameID).Int("connectionsCount", count).Msg("Subscriber registered")
	return &Subscription{hub: h, sub: sub}, nil
}

// Publish writes the event to every live subscriber of the game. Broken
// subscribers are removed; the publisher never sees their errors. With no
// subscribers it is a no-op.
func (h *Hub) Publish(gameID string, ev events.Event) {
	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		h.mu.Unlock()
		return
	}
	targets := make([]*subscriber, 0, len(set))
	for sub := range set {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("gameID", gameID).Msg("Failed to marshal event")
		return
	}

	log.Info().Str("gameID", gameID).Str("type", string(ev.Type)).Int("connectionsCount", len(targets)).Msg("Broadcasting event")
	for _, sub := range targets {
		if err := sub.sink.WriteEvent(data); err != nil {
			log.Error().Err(err).Str("gameID", gameID).Msg("Subscriber write failed, removing")
			h.remove(sub)
			continue
		}
		sub.touch()
	}
}

// DropGame disconnects every subscriber of the game and deletes its entry.
// Called when the owning lobby deletes the game.
func (h *Hub) DropGame(gameID string) {
	h.mu.Lock()
	set := h.subs[gameID]
	delete(h.subs, gameID)
	h.mu.Unlock()
	for sub := range set {
		sub.stopOnce.Do(func() { close(sub.stop) })
		_ = sub.sink.Close()
	}
}

// SubscriberCount reports the live subscribers of a game.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// Close stops the sweep timer and disconnects everything.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for sub := range set {
			sub.stopOnce.Do(func() { close(sub.stop) })
			_ = sub.sink.Close()
		}
	}
}

// remove drops one subscriber and its game's entry when it was the last.
func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	set, ok := h.subs[sub.gameID]
	if ok {
		if _, member := set[sub]; !member {
			ok = false
		} else {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sub.gameID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		sub.stopOnce.Do(func() { close(sub.stop) })
		_ = sub.sink.Close()
		log.Info().Str("gameID", sub.gameID).Msg("Subscriber removed")
	}
}

func (h *Hub) heartbeatLoop(sub *subscriber) {
	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := sub.sink.WriteHeartbeat(); err != nil {
				if !errors.Is(err, ErrSinkClosed) {
					log.Info().Err(err).Str("gameID", sub.gameID).Msg("Heartbeat failed, removing subscriber")
				}
				h.remove(sub)
				return
			}
			sub.touch()
		case <-sub.stop:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(h.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepStale()
		case <-h.done:
			return
		}
	}
}

func (h *Hub) sweepStale() {
	cutoff := time.Now().Add(-h.opts.StaleAfter).UnixNano()
	h.mu.Lock()
	var stale []*subscriber
	for _, set := range h.subs {
		for sub := range set {
			if sub.lastWrite.Load() < cutoff {
				stale = append(stale, sub)
			}
		}
	}
	h.mu.Unlock()

	for _, sub := range stale {
		log.Info().Str("gameID", sub.gameID).Msg("Removing stale subscriber")
		h.remove(sub)
	}
}

// ErrSinkClosed is returned by sinks whose connection is already gone.
var ErrSinkClosed = errors.New("sink closed")
