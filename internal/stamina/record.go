package stamina

import "vigor/server/internal/actor"

// Transition describes the band movement caused by a single mutation.
type Transition struct {
	From    Band
	To      Band
	Changed bool
}

// Record is the authoritative stamina state of one actor. Every mutation that
// touches a replicated field marks the record dirty.
type Record struct {
	id     actor.ID
	tuning *Tuning

	value    float64
	band     Band
	lastBand Band

	regenAdded      float64
	regenMultiplier float64
	actualRate      float64
	stimulated      bool

	canSlide       bool
	slideCost      uint8
	slideRemaining float64

	noRegenTicks uint8
	dirty        bool
}

// NewRecord creates a record at the Normal boundary.
func NewRecord(id actor.ID, tuning *Tuning) *Record {
	r := &Record{id: id, tuning: tuning}
	r.Reset()
	return r
}

// Reset restores the record to its freshly attached state.
func (r *Record) Reset() {
	if r == nil {
		return
	}
	r.value = r.tuning.Table.MustBoundary(Normal)
	r.band = Normal
	r.lastBand = Normal
	r.regenAdded = 0
	r.regenMultiplier = 1
	r.stimulated = false
	r.canSlide = true
	r.slideCost = r.tuning.SlideCost
	r.slideRemaining = 0
	r.noRegenTicks = 0
	r.recomputeRate()
	r.dirty = true
}

func (r *Record) ID() actor.ID {
	if r == nil {
		return ""
	}
	return r.id
}

func (r *Record) Value() float64 {
	if r == nil {
		return 0
	}
	return r.value
}

func (r *Record) Band() Band {
	if r == nil {
		return Normal
	}
	return r.band
}

// ActualRate is (base rate of the band + additive bonus) * multiplier.
func (r *Record) ActualRate() float64 {
	if r == nil {
		return 0
	}
	return r.actualRate
}

func (r *Record) Stimulated() bool {
	return r != nil && r.stimulated
}

func (r *Record) CanSlide() bool {
	return r != nil && r.canSlide
}

func (r *Record) SlideCost() uint8 {
	if r == nil {
		return 0
	}
	return r.slideCost
}

// SlideRemaining is the countdown of an active slide. Zero or below means the
// actor is not sliding.
func (r *Record) SlideRemaining() float64 {
	if r == nil {
		return 0
	}
	return r.slideRemaining
}

func (r *Record) SetSlideRemaining(seconds float64) {
	if r == nil {
		return
	}
	r.slideRemaining = seconds
}

func (r *Record) NoRegenTicks() uint8 {
	if r == nil {
		return 0
	}
	return r.noRegenTicks
}

// SuppressRegen skips the next ticks periodic updates.
func (r *Record) SuppressRegen(ticks uint8) {
	if r == nil {
		return
	}
	r.noRegenTicks = ticks
}

func (r *Record) Dirty() bool {
	return r != nil && r.dirty
}

func (r *Record) ClearDirty() {
	if r == nil {
		return
	}
	r.dirty = false
}

// ApplyDelta adds delta, clamps to [0, capacity] and reclassifies. The
// returned transition is Changed only when the band differs from the last
// observed one; lastBand is advanced so the same change is never reported
// twice.
func (r *Record) ApplyDelta(delta float64) Transition {
	if r == nil {
		return Transition{}
	}
	next := min(max(r.value+delta, 0), r.tuning.Table.Capacity())
	if next != r.value {
		r.value = next
		r.dirty = true
	}
	r.band = Classify(r.value, r.tuning.Table)
	if r.band == r.lastBand {
		return Transition{From: r.band, To: r.band}
	}
	transition := Transition{From: r.lastBand, To: r.band, Changed: true}
	r.lastBand = r.band
	r.recomputeRate()
	return transition
}

// SetRegenModifiers replaces the additive bonus and multiplier applied on top
// of the band base rate.
func (r *Record) SetRegenModifiers(added, multiplier float64) {
	if r == nil {
		return
	}
	if r.regenAdded == added && r.regenMultiplier == multiplier {
		return
	}
	r.regenAdded = added
	r.regenMultiplier = multiplier
	r.recomputeRate()
}

// SetStimulated makes the periodic update drain instead of regenerate.
func (r *Record) SetStimulated(stimulated bool) {
	if r == nil || r.stimulated == stimulated {
		return
	}
	r.stimulated = stimulated
	r.dirty = true
}

func (r *Record) SetCanSlide(canSlide bool) {
	if r == nil || r.canSlide == canSlide {
		return
	}
	r.canSlide = canSlide
	r.dirty = true
}

func (r *Record) SetSlideCost(cost uint8) {
	if r == nil || r.slideCost == cost {
		return
	}
	r.slideCost = cost
	r.dirty = true
}

// SpeedModifier returns the movement multiplier of the current band.
func (r *Record) SpeedModifier() float64 {
	if r == nil {
		return 1
	}
	return r.tuning.SpeedModifier(r.band)
}

// PeriodicDelta is the signed change applied by one periodic update: the
// record regenerates only while below the Normal boundary and not
// stimulated, and drains otherwise.
func (r *Record) PeriodicDelta() float64 {
	if r == nil {
		return 0
	}
	if r.value < r.tuning.Table.MustBoundary(Normal) && !r.stimulated {
		return r.actualRate
	}
	return -r.actualRate
}

func (r *Record) recomputeRate() {
	rate := (r.tuning.BaseRate(r.band) + r.regenAdded) * r.regenMultiplier
	if rate != r.actualRate {
		r.actualRate = rate
		r.dirty = true
	}
}
