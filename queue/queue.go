// Package queue serializes mutating operations per game id.
package queue

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Serializer runs at most one operation per key at a time, in strict arrival
// order. Operations for different keys run fully concurrently. A failed
// operation does not block or cancel later operations for its key.
type Serializer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
	depth map[string]int
}

func NewSerializer() *Serializer {
	return &Serializer{
		tails: make(map[string]chan struct{}),
		depth: make(map[string]int),
	}
}

// Do enqueues op behind any operations already queued for key, waits for its
// turn, runs it to completion, and returns its error. Arrival order is the
// order in which Do calls reach the internal lock.
func (s *Serializer) Do(key string, op func() error) error {
	s.mu.Lock()
	prev := s.tails[key]
	turn := make(chan struct{})
	s.tails[key] = turn
	s.depth[key]++
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}

	defer func() {
		close(turn)
		s.mu.Lock()
		// Drop may have discarded the entry while this op was running.
		if n, ok := s.depth[key]; ok {
			if n--; n > 0 {
				s.depth[key] = n
			} else {
				delete(s.depth, key)
				if s.tails[key] == turn {
					delete(s.tails, key)
				}
			}
		}
		s.mu.Unlock()
	}()

	return op()
}

// Drop discards the queue entry for a deleted game. Operations already
// waiting still run; they are expected to fail on load once the record is
// gone.
func (s *Serializer) Drop(key string) {
	s.mu.Lock()
	if n := s.depth[key]; n > 0 {
		log.Info().Str("gameID", key).Int("pending", n).Msg("Dropping queue entry with operations still pending")
	}
	delete(s.tails, key)
	delete(s.depth, key)
	s.mu.Unlock()
}

// Pending reports how many operations are queued or running for key.
func (s *Serializer) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth[key]
}
