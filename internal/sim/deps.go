package sim

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"vigor/server/internal/telemetry"
	"vigor/server/logging"
)

const tracerName = "vigor/server/internal/sim"

// Deps carries shared infrastructure dependencies required by the loop.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
	Tracer  trace.Tracer
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer(tracerName)
	}
	return d
}
