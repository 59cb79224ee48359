package replication

import (
	"sync"

	"vigor/server/internal/actor"
)

// DefaultMirrorInterval matches the authority slide sweep.
const DefaultMirrorInterval = 0.5

// Entry is the observer's copy of one actor's stamina.
type Entry struct {
	CurrentValue    float32
	CanSlide        bool
	SlideCost       uint8
	ActualRegenRate float32
	Stimulated      bool
	SlideRemaining  float64
	SlideTarget     actor.Vec2
}

// Sliding reports whether the local slide timer is still running.
func (e Entry) Sliding() bool {
	return e.SlideRemaining > 0
}

// SlideRequest is what an observer sends to ask for a slide.
type SlideRequest struct {
	Target actor.Vec2
}

// Mirror is the observer side of stamina replication. It only stores what
// the authority sends and runs local slide timers for prediction; it never
// recomputes bands or triggers side effects. Safe for concurrent use by a
// network reader and a render loop.
type Mirror struct {
	mu       sync.RWMutex
	entries  map[actor.ID]*Entry
	interval float64
	elapsed  float64
}

// NewMirror returns an empty mirror whose slide timers tick every interval
// seconds.
func NewMirror(interval float64) *Mirror {
	if interval <= 0 {
		interval = DefaultMirrorInterval
	}
	return &Mirror{entries: make(map[actor.ID]*Entry), interval: interval}
}

func (m *Mirror) entryLocked(id actor.ID) *Entry {
	entry, ok := m.entries[id]
	if !ok {
		entry = &Entry{}
		m.entries[id] = entry
	}
	return entry
}

// Apply overwrites the five replicated fields, creating the entry if the
// actor is unknown.
func (m *Mirror) Apply(snapshot Snapshot) {
	if m == nil || snapshot.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entryLocked(snapshot.ID)
	entry.CurrentValue = snapshot.CurrentValue
	entry.CanSlide = snapshot.CanSlide
	entry.SlideCost = snapshot.SlideCost
	entry.ActualRegenRate = snapshot.ActualRegenRate
	entry.Stimulated = snapshot.Stimulated
}

// SlideStarted starts the local slide timer announced by the authority.
func (m *Mirror) SlideStarted(id actor.ID, target actor.Vec2, slideTime float64) {
	if m == nil || id == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entryLocked(id)
	entry.SlideRemaining = slideTime
	entry.SlideTarget = target
}

// Update advances local slide timers. Update(0) does nothing.
func (m *Mirror) Update(dt float64) {
	if m == nil || dt <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed += dt
	for m.elapsed >= m.interval {
		m.elapsed -= m.interval
		for _, entry := range m.entries {
			if entry.SlideRemaining <= 0 {
				continue
			}
			entry.SlideRemaining -= m.interval
			if entry.SlideRemaining <= 0 {
				entry.SlideRemaining = 0
			}
		}
	}
}

// Entry returns a copy of the mirrored state of id.
func (m *Mirror) Entry(id actor.ID) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Forget drops the entry of an actor that left.
func (m *Mirror) Forget(id actor.ID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
}

func (m *Mirror) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// RequestSlide builds a slide request for the local actor when the mirror
// allows it. The authority still validates the request.
func (m *Mirror) RequestSlide(id actor.ID, target actor.Vec2) (SlideRequest, bool) {
	if m == nil {
		return SlideRequest{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok || !entry.CanSlide || entry.Sliding() {
		return SlideRequest{}, false
	}
	return SlideRequest{Target: target}, true
}
