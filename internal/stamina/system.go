package stamina

import (
	"context"
	"slices"

	"vigor/server/internal/actor"
	"vigor/server/logging"
	loggingstamina "vigor/server/logging/stamina"
)

// Deps bundles the collaborators the periodic updater drives.
type Deps struct {
	Alerts    actor.Alerts
	Movement  actor.Movement
	Publisher logging.Publisher
	Tick      func() uint64
}

// System owns the stamina records of one authority and runs the periodic
// updater on a fixed interval.
type System struct {
	tuning    Tuning
	alerts    actor.Alerts
	movement  actor.Movement
	publisher logging.Publisher
	tick      func() uint64

	records map[actor.ID]*Record
	order   []actor.ID
	elapsed float64
}

// NewSystem returns an empty system. The tuning is assumed validated.
func NewSystem(tuning Tuning, deps Deps) *System {
	if tuning.Interval <= 0 {
		tuning.Interval = DefaultInterval
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	tick := deps.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	return &System{
		tuning:    tuning,
		alerts:    deps.Alerts,
		movement:  deps.Movement,
		publisher: publisher,
		tick:      tick,
		records:   make(map[actor.ID]*Record),
	}
}

func (s *System) Tuning() Tuning {
	if s == nil {
		return Tuning{}
	}
	return s.tuning
}

// Attach gives id a stamina record, returning the existing one if present.
func (s *System) Attach(id actor.ID) *Record {
	if s == nil || id == "" {
		return nil
	}
	if record, ok := s.records[id]; ok {
		return record
	}
	record := NewRecord(id, &s.tuning)
	s.records[id] = record
	s.order = append(s.order, id)
	return record
}

// Detach removes the record of id and clears its alert.
func (s *System) Detach(id actor.ID) {
	if s == nil {
		return
	}
	if _, ok := s.records[id]; !ok {
		return
	}
	delete(s.records, id)
	if idx := slices.Index(s.order, id); idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
	if s.alerts != nil {
		s.alerts.ClearAlert(id, actor.AlertStamina)
	}
}

func (s *System) Record(id actor.ID) (*Record, bool) {
	if s == nil {
		return nil, false
	}
	record, ok := s.records[id]
	return record, ok
}

// Records returns the live records in attach order.
func (s *System) Records() []*Record {
	if s == nil {
		return nil
	}
	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}
	return out
}

func (s *System) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// ApplyDelta is the standard mutation path: it changes the stamina of id and
// fires the transition side effects. Actors without stamina are ignored.
func (s *System) ApplyDelta(id actor.ID, delta float64) bool {
	if s == nil {
		return false
	}
	record, ok := s.records[id]
	if !ok {
		return false
	}
	s.apply(record, delta)
	return true
}

// SpeedModifier returns the band speed multiplier of id, or 1 without stamina.
func (s *System) SpeedModifier(id actor.ID) float64 {
	record, ok := s.Record(id)
	if !ok {
		return 1
	}
	return record.SpeedModifier()
}

// Update advances the interval accumulator by dt seconds and runs one Tick per
// elapsed interval. Update(0) does nothing.
func (s *System) Update(dt float64) int {
	if s == nil || dt <= 0 {
		return 0
	}
	s.elapsed += dt
	ticks := 0
	for s.elapsed >= s.tuning.Interval {
		s.elapsed -= s.tuning.Interval
		s.Tick()
		ticks++
	}
	return ticks
}

// Tick applies one periodic update to every record.
func (s *System) Tick() {
	if s == nil {
		return
	}
	for _, id := range s.order {
		record := s.records[id]
		if record.noRegenTicks > 0 {
			record.noRegenTicks--
			continue
		}
		s.apply(record, record.PeriodicDelta())
	}
}

func (s *System) apply(record *Record, delta float64) {
	transition := record.ApplyDelta(delta)
	if !transition.Changed {
		return
	}
	severity := s.tuning.Severity(transition.To)
	if s.alerts != nil {
		s.alerts.ShowAlert(record.id, actor.AlertStamina, severity)
	}
	if s.movement != nil {
		s.movement.RefreshSpeedModifiers(record.id)
	}
	loggingstamina.ThresholdChanged(
		context.Background(),
		s.publisher,
		s.tick(),
		logging.PlayerRef(string(record.id)),
		loggingstamina.ThresholdChangedPayload{
			From:     transition.From.String(),
			To:       transition.To.String(),
			Value:    record.value,
			Severity: severity,
		},
		nil,
	)
}
