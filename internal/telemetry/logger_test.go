package telemetry

import (
	"bytes"
	"log"
	"testing"
)

func TestStdLoggerForwardsAndExposesBase(t *testing.T) {
	var buf bytes.Buffer
	base := log.New(&buf, "[vigor] ", 0)
	logger := WrapLogger(base)

	logger.Printf("disconnecting %s due to heartbeat timeout", "actor-2")
	if got := buf.String(); got != "[vigor] disconnecting actor-2 due to heartbeat timeout\n" {
		t.Fatalf("unexpected log output: %q", got)
	}
	if logger.StandardLogger() != base {
		t.Fatalf("expected the wrapped logger to be exposed for router fallback")
	}
}

func TestLoggersTolerateNil(t *testing.T) {
	WrapLogger(nil).Printf("ignored %d", 1)
	var missing *StdLogger
	missing.Printf("ignored")
	if missing.StandardLogger() != nil {
		t.Fatalf("expected nil standard logger")
	}
	Discard.Printf("ignored %s", "too")
}
