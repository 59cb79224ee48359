package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vigor/server/internal/pain"
	"vigor/server/internal/slide"
	"vigor/server/internal/stamina"
	"vigor/server/internal/world"
)

// ErrInvalidTable is wrapped by every threshold table validation failure.
var ErrInvalidTable = errors.New("invalid stamina table")

// Tuning is the gameplay tuning file. Sections left out of the file keep
// their defaults.
type Tuning struct {
	Stamina StaminaTuning `yaml:"stamina" json:"stamina"`
	Slide   slide.Config  `yaml:"slide" json:"slide"`
	Pain    pain.Config   `yaml:"pain" json:"pain"`
	World   world.Config  `yaml:"world" json:"world"`
}

// StaminaTuning is the file representation of stamina.Tuning. Bands are keyed
// by name (collapsed, tired, normal, energetic, overcharged).
type StaminaTuning struct {
	Bands     map[string]BandTuning `yaml:"bands" json:"bands" jsonschema:"required"`
	SlideCost uint8                 `yaml:"slideCost" json:"slideCost"`
	Interval  float64               `yaml:"interval" json:"interval" jsonschema:"exclusiveMinimum=0"`
}

type BandTuning struct {
	Boundary      float64 `yaml:"boundary" json:"boundary" jsonschema:"exclusiveMinimum=0"`
	BaseRate      float64 `yaml:"baseRate" json:"baseRate" jsonschema:"minimum=0"`
	SpeedModifier float64 `yaml:"speedModifier" json:"speedModifier" jsonschema:"exclusiveMinimum=0"`
}

// DefaultTuning mirrors the built-in defaults of every subsystem.
func DefaultTuning() Tuning {
	defaults := stamina.DefaultTuning()
	bands := make(map[string]BandTuning, len(stamina.AllBands))
	for _, band := range stamina.AllBands {
		bands[band.String()] = BandTuning{
			Boundary:      defaults.Table.MustBoundary(band),
			BaseRate:      defaults.BaseRates[band],
			SpeedModifier: defaults.SpeedModifiers[band],
		}
	}
	return Tuning{
		Stamina: StaminaTuning{
			Bands:     bands,
			SlideCost: defaults.SlideCost,
			Interval:  defaults.Interval,
		},
		Slide: slide.DefaultConfig(),
		Pain:  pain.DefaultConfig(),
		World: world.DefaultConfig(),
	}
}

// LoadTuning reads and validates a YAML tuning file. An empty path returns
// the defaults.
func LoadTuning(path string) (Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	tuning, err := ParseTuning(data)
	if err != nil {
		return Tuning{}, fmt.Errorf("load tuning %s: %w", path, err)
	}
	return tuning, nil
}

// ParseTuning decodes YAML over the defaults and validates the result.
func ParseTuning(data []byte) (Tuning, error) {
	tuning := DefaultTuning()
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return Tuning{}, err
	}
	return tuning, nil
}

func (t Tuning) Validate() error {
	if _, err := t.Stamina.Build(); err != nil {
		return err
	}
	if err := validateSlide(t.Slide); err != nil {
		return err
	}
	if err := t.Pain.Validate(); err != nil {
		return err
	}
	return nil
}

// Build converts the file representation into a validated stamina.Tuning.
func (s StaminaTuning) Build() (stamina.Tuning, error) {
	boundaries := make(map[stamina.Band]float64, len(s.Bands))
	rates := make(map[stamina.Band]float64, len(s.Bands))
	modifiers := make(map[stamina.Band]float64, len(s.Bands))
	for name, band := range s.Bands {
		parsed, ok := stamina.ParseBand(name)
		if !ok {
			return stamina.Tuning{}, fmt.Errorf("%w: unknown band %q", ErrInvalidTable, name)
		}
		boundaries[parsed] = band.Boundary
		rates[parsed] = band.BaseRate
		modifiers[parsed] = band.SpeedModifier
	}
	table, err := stamina.NewTable(boundaries)
	if err != nil {
		return stamina.Tuning{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	tuning := stamina.Tuning{
		Table:          table,
		BaseRates:      rates,
		SpeedModifiers: modifiers,
		SlideCost:      s.SlideCost,
		Interval:       s.Interval,
	}
	if err := tuning.Validate(); err != nil {
		return stamina.Tuning{}, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return tuning, nil
}

func validateSlide(cfg slide.Config) error {
	switch {
	case cfg.MinSpeed < 0:
		return fmt.Errorf("slide min speed must not be negative, got %v", cfg.MinSpeed)
	case cfg.VelocityFactor <= 0:
		return fmt.Errorf("slide velocity factor must be positive, got %v", cfg.VelocityFactor)
	case cfg.TimeDivisor <= 0:
		return fmt.Errorf("slide time divisor must be positive, got %v", cfg.TimeDivisor)
	case cfg.SweepInterval <= 0:
		return fmt.Errorf("slide sweep interval must be positive, got %v", cfg.SweepInterval)
	}
	return nil
}
