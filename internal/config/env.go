package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env is the process configuration read from VIGOR_* variables.
type Env struct {
	Addr            string `env:"VIGOR_ADDR" envDefault:":8080"`
	TickRate        int    `env:"VIGOR_TICK_RATE" envDefault:"15"`
	CatchupMaxTicks int    `env:"VIGOR_CATCHUP_MAX_TICKS" envDefault:"3"`
	CommandCapacity int    `env:"VIGOR_COMMAND_CAPACITY" envDefault:"1024"`
	PerActorLimit   int    `env:"VIGOR_PER_ACTOR_LIMIT" envDefault:"16"`
	TuningFile      string `env:"VIGOR_TUNING_FILE"`

	LogJSONPath    string `env:"VIGOR_LOG_JSON_PATH"`
	LogMinSeverity string `env:"VIGOR_LOG_MIN_SEVERITY" envDefault:"info"`
	LogBufferSize  int    `env:"VIGOR_LOG_BUFFER_SIZE" envDefault:"1024"`
	DebugTelemetry bool   `env:"VIGOR_DEBUG_TELEMETRY"`
	PprofTrace     bool   `env:"VIGOR_PPROF_TRACE"`

	OTelEnabled     bool    `env:"VIGOR_OTEL_ENABLED"`
	OTelEndpoint    string  `env:"VIGOR_OTEL_ENDPOINT"`
	OTelInsecure    bool    `env:"VIGOR_OTEL_INSECURE" envDefault:"true"`
	OTelSampleRatio float64 `env:"VIGOR_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv parses and validates Env.
func LoadEnv() (Env, error) {
	var cfg Env
	if err := ParseEnv(&cfg); err != nil {
		return Env{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Env{}, err
	}
	return cfg, nil
}

func (e Env) Validate() error {
	switch {
	case e.Addr == "":
		return fmt.Errorf("VIGOR_ADDR must not be empty")
	case e.TickRate <= 0:
		return fmt.Errorf("VIGOR_TICK_RATE must be positive, got %d", e.TickRate)
	case e.CommandCapacity <= 0:
		return fmt.Errorf("VIGOR_COMMAND_CAPACITY must be positive, got %d", e.CommandCapacity)
	case e.PerActorLimit < 0:
		return fmt.Errorf("VIGOR_PER_ACTOR_LIMIT must not be negative, got %d", e.PerActorLimit)
	case e.OTelSampleRatio < 0 || e.OTelSampleRatio > 1:
		return fmt.Errorf("VIGOR_OTEL_SAMPLE_RATIO must be within [0,1], got %v", e.OTelSampleRatio)
	}
	return nil
}
