package world

import "strings"

const (
	DefaultSeed        = "prototype"
	DefaultWidth       = 100.0
	DefaultHeight      = 100.0
	DefaultWalkSpeed   = 4.0
	DefaultSprintSpeed = 7.0
	// ActorHalf is the half extent of an actor's collision box.
	ActorHalf = 0.5
)

type Config struct {
	Seed        string  `json:"seed" yaml:"seed"`
	Width       float64 `json:"width" yaml:"width"`
	Height      float64 `json:"height" yaml:"height"`
	WalkSpeed   float64 `json:"walkSpeed" yaml:"walkSpeed"`
	SprintSpeed float64 `json:"sprintSpeed" yaml:"sprintSpeed"`
}

func DefaultConfig() Config {
	return Config{
		Seed:        DefaultSeed,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		WalkSpeed:   DefaultWalkSpeed,
		SprintSpeed: DefaultSprintSpeed,
	}
}

func (cfg Config) Normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.WalkSpeed <= 0 {
		normalized.WalkSpeed = DefaultWalkSpeed
	}
	if normalized.SprintSpeed <= 0 {
		normalized.SprintSpeed = DefaultSprintSpeed
	}
	return normalized
}
