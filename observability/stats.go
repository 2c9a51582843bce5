// Package observability aggregates room counters for logs and the
// debug inspector.
package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Stats collects room-level counters. All increments are atomic so the
// hot paths never contend on a lock; the language tally is the only
// mutex-guarded map.
type Stats struct {
	MessagesStored  atomic.Uint64
	EventsPublished atomic.Uint64
	EventsDropped   atomic.Uint64
	RecordsRejected atomic.Uint64
	CensoredBodies  atomic.Uint64

	mu        sync.Mutex
	languages map[string]uint64
}

func NewStats() *Stats {
	return &Stats{languages: make(map[string]uint64)}
}

// RecordLanguage tallies the detected language of a posted body.
func (s *Stats) RecordLanguage(iso string) {
	if iso == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.languages[iso]++
}

// Snapshot returns a point-in-time copy of every counter plus Go memory
// stats, in a shape the debug inspector can render directly.
func (s *Stats) Snapshot() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s.mu.Lock()
	languages := make(map[string]uint64, len(s.languages))
	for k, v := range s.languages {
		languages[k] = v
	}
	s.mu.Unlock()

	return map[string]any{
		"messages_stored":  s.MessagesStored.Load(),
		"events_published": s.EventsPublished.Load(),
		"events_dropped":   s.EventsDropped.Load(),
		"records_rejected": s.RecordsRejected.Load(),
		"censored_bodies":  s.CensoredBodies.Load(),
		"languages":        languages,
		"alloc_mem_mb":     m.Alloc / 1024 / 1024,
		"num_gc":           m.NumGC,
	}
}
