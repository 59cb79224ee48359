package pain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid pain config")

// Config tunes the pain accumulator. Times are in seconds of simulation.
type Config struct {
	Ceiling           float64 `yaml:"ceiling" json:"ceiling"`
	DecayPerSecond    float64 `yaml:"decayPerSecond" json:"decayPerSecond"`
	DecayCooldown     float64 `yaml:"decayCooldown" json:"decayCooldown"`
	SweepInterval     float64 `yaml:"sweepInterval" json:"sweepInterval"`
	CriticalDuration  float64 `yaml:"criticalDuration" json:"criticalDuration"`
	CriticalBuffer    float64 `yaml:"criticalBuffer" json:"criticalBuffer"`
	SlowdownDuration  float64 `yaml:"slowdownDuration" json:"slowdownDuration"`
	SlowdownWalk      float64 `yaml:"slowdownWalk" json:"slowdownWalk"`
	SlowdownSprint    float64 `yaml:"slowdownSprint" json:"slowdownSprint"`
	AlertLevels       int     `yaml:"alertLevels" json:"alertLevels"`
	MeleeDamage       float64 `yaml:"meleeDamage" json:"meleeDamage"`
	CollideDamage     float64 `yaml:"collideDamage" json:"collideDamage"`
	ProjectileFixture string  `yaml:"projectileFixture" json:"projectileFixture"`
}

func DefaultConfig() Config {
	return Config{
		Ceiling:           100,
		DecayPerSecond:    3,
		DecayCooldown:     5,
		SweepInterval:     2,
		CriticalDuration:  6,
		CriticalBuffer:    3,
		SlowdownDuration:  3,
		SlowdownWalk:      0.8,
		SlowdownSprint:    0.8,
		AlertLevels:       6,
		MeleeDamage:       30,
		CollideDamage:     55,
		ProjectileFixture: "projectile",
	}
}

func (c Config) Validate() error {
	switch {
	case c.Ceiling <= 0:
		return fmt.Errorf("%w: ceiling must be positive, got %v", ErrInvalidConfig, c.Ceiling)
	case c.DecayPerSecond < 0:
		return fmt.Errorf("%w: decay rate must be non-negative, got %v", ErrInvalidConfig, c.DecayPerSecond)
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep interval must be positive, got %v", ErrInvalidConfig, c.SweepInterval)
	case c.CriticalDuration < 0 || c.CriticalBuffer < 0 || c.DecayCooldown < 0 || c.SlowdownDuration < 0:
		return fmt.Errorf("%w: durations must be non-negative", ErrInvalidConfig)
	case c.AlertLevels <= 0:
		return fmt.Errorf("%w: alert levels must be positive, got %d", ErrInvalidConfig, c.AlertLevels)
	}
	return nil
}
