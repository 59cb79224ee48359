package stamina

import (
	"fmt"
	"math"
)

const (
	// DefaultSlideCost is the stamina spent by a slide.
	DefaultSlideCost uint8 = 200
	// DefaultInterval is the periodic updater cadence in seconds.
	DefaultInterval = 1.0
	// severityStep maps a band boundary onto its alert severity.
	severityStep = 250
)

// Tuning holds the per-band rates and modifiers shared by every record.
type Tuning struct {
	Table          Table
	BaseRates      map[Band]float64
	SpeedModifiers map[Band]float64
	SlideCost      uint8
	Interval       float64
}

// DefaultTuning returns the stock stamina tuning.
func DefaultTuning() Tuning {
	return Tuning{
		Table: DefaultTable(),
		BaseRates: map[Band]float64{
			Collapsed:   25,
			Tired:       10,
			Normal:      5,
			Energetic:   2.5,
			Overcharged: 5,
		},
		SpeedModifiers: map[Band]float64{
			Collapsed:   0.7,
			Tired:       0.9,
			Normal:      1,
			Energetic:   1,
			Overcharged: 1,
		},
		SlideCost: DefaultSlideCost,
		Interval:  DefaultInterval,
	}
}

// Validate reports the first inconsistency in the tuning.
func (t Tuning) Validate() error {
	if err := t.Table.Validate(); err != nil {
		return err
	}
	for _, band := range AllBands {
		rate, ok := t.BaseRates[band]
		if !ok {
			return fmt.Errorf("missing base rate for band %s", band)
		}
		if rate < 0 || math.IsNaN(rate) {
			return fmt.Errorf("base rate for band %s must be non-negative, got %v", band, rate)
		}
		modifier, ok := t.SpeedModifiers[band]
		if !ok {
			return fmt.Errorf("missing speed modifier for band %s", band)
		}
		if modifier <= 0 {
			return fmt.Errorf("speed modifier for band %s must be positive, got %v", band, modifier)
		}
	}
	if t.Interval <= 0 {
		return fmt.Errorf("stamina interval must be positive, got %v", t.Interval)
	}
	return nil
}

// BaseRate returns the per-second rate for band. A band without a rate
// panics: the tuning was not validated.
func (t Tuning) BaseRate(band Band) float64 {
	rate, ok := t.BaseRates[band]
	if !ok {
		panic(fmt.Sprintf("stamina: no base rate for %s", band))
	}
	return rate
}

// SpeedModifier returns the movement speed multiplier for band.
func (t Tuning) SpeedModifier(band Band) float64 {
	modifier, ok := t.SpeedModifiers[band]
	if !ok {
		panic(fmt.Sprintf("stamina: no speed modifier for %s", band))
	}
	return modifier
}

// Severity is the alert level for band: its boundary divided by 250,
// capped at the largest level an alert can carry.
func (t Tuning) Severity(band Band) int8 {
	level := math.Floor(t.Table.MustBoundary(band) / severityStep)
	return int8(math.Min(level, math.MaxInt8))
}
