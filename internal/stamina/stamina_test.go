package stamina

import (
	"context"
	"testing"

	"vigor/server/internal/actor"
	"vigor/server/logging"
	loggingstamina "vigor/server/logging/stamina"
)

type alertCall struct {
	id       actor.ID
	kind     actor.AlertKind
	severity int8
	cleared  bool
}

type alertRecorder struct {
	calls []alertCall
}

func (a *alertRecorder) ShowAlert(id actor.ID, kind actor.AlertKind, severity int8) {
	a.calls = append(a.calls, alertCall{id: id, kind: kind, severity: severity})
}

func (a *alertRecorder) ClearAlert(id actor.ID, kind actor.AlertKind) {
	a.calls = append(a.calls, alertCall{id: id, kind: kind, cleared: true})
}

type movementRecorder struct {
	refreshed []actor.ID
}

func (m *movementRecorder) RefreshSpeedModifiers(id actor.ID) {
	m.refreshed = append(m.refreshed, id)
}

func newTestSystem(t *testing.T) (*System, *alertRecorder, *movementRecorder, *[]logging.Event) {
	t.Helper()
	alerts := &alertRecorder{}
	movement := &movementRecorder{}
	var events []logging.Event
	system := NewSystem(DefaultTuning(), Deps{
		Alerts:   alerts,
		Movement: movement,
		Publisher: logging.PublisherFunc(func(_ context.Context, event logging.Event) {
			events = append(events, event)
		}),
	})
	return system, alerts, movement, &events
}

func TestClassifyBoundaries(t *testing.T) {
	table := DefaultTable()
	tests := []struct {
		value float64
		want  Band
	}{
		{0, Collapsed},
		{100, Collapsed},
		{100.5, Tired},
		{250, Tired},
		{251, Normal},
		{500, Normal},
		{749.9, Energetic},
		{750, Energetic},
		{1000, Overcharged},
		{1500, Overcharged},
	}
	for _, tt := range tests {
		if got := Classify(tt.value, table); got != tt.want {
			t.Fatalf("Classify(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

func TestClassifyBoundaryIsIdempotent(t *testing.T) {
	table := DefaultTable()
	for _, entry := range table {
		band := Classify(entry.Boundary, table)
		if band != entry.Band {
			t.Fatalf("boundary %v classified as %s, want %s", entry.Boundary, band, entry.Band)
		}
		if again := Classify(table.MustBoundary(band), table); again != band {
			t.Fatalf("reclassifying %s boundary gave %s", band, again)
		}
	}
}

func TestNewTableValidation(t *testing.T) {
	if _, err := NewTable(map[Band]float64{Collapsed: 100, Tired: 250}); err == nil {
		t.Fatalf("expected missing bands to fail validation")
	}
	if _, err := NewTable(map[Band]float64{
		Collapsed: 300, Tired: 250, Normal: 500, Energetic: 750, Overcharged: 1000,
	}); err == nil {
		t.Fatalf("expected out of order boundaries to fail validation")
	}
	table, err := NewTable(map[Band]float64{
		Collapsed: 10, Tired: 20, Normal: 50, Energetic: 75, Overcharged: 100,
	})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if table.Capacity() != 100 {
		t.Fatalf("expected capacity 100, got %v", table.Capacity())
	}
}

func TestSeverityFromBoundary(t *testing.T) {
	tuning := DefaultTuning()
	want := map[Band]int8{Collapsed: 0, Tired: 1, Normal: 2, Energetic: 3, Overcharged: 4}
	for band, severity := range want {
		if got := tuning.Severity(band); got != severity {
			t.Fatalf("severity(%s) = %d, want %d", band, got, severity)
		}
	}
}

func TestSeverityCapsLargeBoundaries(t *testing.T) {
	tuning := DefaultTuning()
	table, err := NewTable(map[Band]float64{
		Collapsed:   100,
		Tired:       250,
		Normal:      500,
		Energetic:   32_000,
		Overcharged: 1e9,
	})
	if err != nil {
		t.Fatalf("unexpected table error: %v", err)
	}
	tuning.Table = table
	if got := tuning.Severity(Energetic); got != 127 {
		t.Fatalf("expected 32000 to cap at 127, got %d", got)
	}
	if got := tuning.Severity(Overcharged); got != 127 {
		t.Fatalf("expected 1e9 to cap at 127, got %d", got)
	}
	if got := tuning.Severity(Normal); got != 2 {
		t.Fatalf("expected uncapped severity 2, got %d", got)
	}
}

func TestUnknownBandPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected rate lookup for an unknown band to panic")
		}
	}()
	DefaultTuning().BaseRate(Band(42))
}

func TestNewRecordStartsAtNormal(t *testing.T) {
	tuning := DefaultTuning()
	record := NewRecord("a", &tuning)
	if record.Value() != 500 || record.Band() != Normal {
		t.Fatalf("expected 500/normal, got %v/%s", record.Value(), record.Band())
	}
	if !record.CanSlide() || record.SlideCost() != DefaultSlideCost {
		t.Fatalf("unexpected slide defaults: canSlide=%v cost=%d", record.CanSlide(), record.SlideCost())
	}
	if record.ActualRate() != 5 {
		t.Fatalf("expected normal base rate 5, got %v", record.ActualRate())
	}
	if !record.Dirty() {
		t.Fatalf("expected new record to be dirty")
	}
}

func TestRecordClampsToCapacity(t *testing.T) {
	tuning := DefaultTuning()
	record := NewRecord("a", &tuning)
	for _, delta := range []float64{-10000, 300, 10000, -1, 25.5} {
		record.ApplyDelta(delta)
		if record.Value() < 0 || record.Value() > tuning.Table.Capacity() {
			t.Fatalf("value %v escaped [0, %v] after delta %v", record.Value(), tuning.Table.Capacity(), delta)
		}
	}
}

func TestRegenModifiers(t *testing.T) {
	tuning := DefaultTuning()
	record := NewRecord("a", &tuning)
	record.ClearDirty()
	record.SetRegenModifiers(3, 2)
	if got := record.ActualRate(); got != 16 {
		t.Fatalf("expected (5+3)*2 = 16, got %v", got)
	}
	if !record.Dirty() {
		t.Fatalf("expected rate change to mark record dirty")
	}
	record.ApplyDelta(-300)
	if got := record.ActualRate(); got != 26 {
		t.Fatalf("expected tired rate (10+3)*2 = 26, got %v", got)
	}
}

func TestApplyDeltaFiresSingleAlertOnTransition(t *testing.T) {
	system, alerts, movement, events := newTestSystem(t)
	record := system.Attach("p1")

	if !system.ApplyDelta("p1", -300) {
		t.Fatalf("expected delta to apply")
	}
	if record.Value() != 200 || record.Band() != Tired {
		t.Fatalf("expected 200/tired, got %v/%s", record.Value(), record.Band())
	}
	if len(alerts.calls) != 1 {
		t.Fatalf("expected exactly one alert, got %+v", alerts.calls)
	}
	call := alerts.calls[0]
	if call.kind != actor.AlertStamina || call.severity != 1 || call.cleared {
		t.Fatalf("unexpected alert %+v", call)
	}
	if len(movement.refreshed) != 1 {
		t.Fatalf("expected one speed refresh, got %d", len(movement.refreshed))
	}
	if len(*events) != 1 || (*events)[0].Type != loggingstamina.EventThresholdChanged {
		t.Fatalf("expected one threshold event, got %+v", *events)
	}

	system.ApplyDelta("p1", -10)
	if len(alerts.calls) != 1 {
		t.Fatalf("expected no alert for a change inside the band, got %+v", alerts.calls)
	}
}

func TestApplyDeltaIgnoresActorsWithoutStamina(t *testing.T) {
	system, alerts, _, _ := newTestSystem(t)
	if system.ApplyDelta("ghost", -100) {
		t.Fatalf("expected missing record to be a no-op")
	}
	if len(alerts.calls) != 0 {
		t.Fatalf("unexpected alerts %+v", alerts.calls)
	}
}

func TestPeriodicDirection(t *testing.T) {
	tests := []struct {
		name       string
		delta      float64
		stimulated bool
		want       float64
	}{
		{name: "below normal regenerates", delta: -300, want: 210},
		{name: "at normal drains", delta: 0, want: 495},
		{name: "above normal drains", delta: 200, want: 697.5},
		{name: "stimulated below normal drains", delta: -300, stimulated: true, want: 190},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			system, _, _, _ := newTestSystem(t)
			record := system.Attach("p1")
			system.ApplyDelta("p1", tt.delta)
			record.SetStimulated(tt.stimulated)
			system.Tick()
			if record.Value() != tt.want {
				t.Fatalf("expected %v after tick, got %v", tt.want, record.Value())
			}
		})
	}
}

func TestUpdateAccumulatesInterval(t *testing.T) {
	system, _, _, _ := newTestSystem(t)
	record := system.Attach("p1")

	if ticks := system.Update(0); ticks != 0 || record.Value() != 500 {
		t.Fatalf("expected zero dt to be a no-op, ticks=%d value=%v", ticks, record.Value())
	}
	if ticks := system.Update(0.5); ticks != 0 {
		t.Fatalf("expected no tick before the interval, got %d", ticks)
	}
	if ticks := system.Update(0.5); ticks != 1 || record.Value() != 495 {
		t.Fatalf("expected one tick at the interval, ticks=%d value=%v", ticks, record.Value())
	}
	if ticks := system.Update(2); ticks != 2 {
		t.Fatalf("expected two catch-up ticks, got %d", ticks)
	}
}

func TestNoRegenTicksSkipPeriodicDelta(t *testing.T) {
	system, _, _, _ := newTestSystem(t)
	record := system.Attach("p1")
	record.SuppressRegen(2)
	system.Tick()
	system.Tick()
	if record.Value() != 500 {
		t.Fatalf("expected suppressed ticks to leave value at 500, got %v", record.Value())
	}
	if record.NoRegenTicks() != 0 {
		t.Fatalf("expected counter to run out, got %d", record.NoRegenTicks())
	}
	system.Tick()
	if record.Value() != 495 {
		t.Fatalf("expected periodic delta to resume, got %v", record.Value())
	}
}

func TestDetachClearsAlert(t *testing.T) {
	system, alerts, _, _ := newTestSystem(t)
	system.Attach("p1")
	system.Attach("p2")
	system.Detach("p1")
	if _, ok := system.Record("p1"); ok {
		t.Fatalf("expected record to be removed")
	}
	if system.Len() != 1 || system.Records()[0].ID() != "p2" {
		t.Fatalf("unexpected remaining records %+v", system.Records())
	}
	if len(alerts.calls) != 1 || !alerts.calls[0].cleared || alerts.calls[0].id != "p1" {
		t.Fatalf("expected alert clear for p1, got %+v", alerts.calls)
	}
	system.Detach("p1")
	if len(alerts.calls) != 1 {
		t.Fatalf("expected detaching twice to be a no-op")
	}
}

func TestAttachIsIdempotent(t *testing.T) {
	system, _, _, _ := newTestSystem(t)
	first := system.Attach("p1")
	first.ApplyDelta(-50)
	second := system.Attach("p1")
	if first != second || second.Value() != 450 {
		t.Fatalf("expected attach to return the existing record")
	}
}
