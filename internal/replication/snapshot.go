package replication

import (
	"vigor/server/internal/actor"
	"vigor/server/internal/stamina"
)

// Snapshot carries the five presentation fields of a stamina record.
type Snapshot struct {
	ID              actor.ID `json:"id"`
	CurrentValue    float32  `json:"currentValue"`
	CanSlide        bool     `json:"canSlide"`
	SlideCost       uint8    `json:"slideCost"`
	ActualRegenRate float32  `json:"actualRegenRate"`
	Stimulated      bool     `json:"stimulated"`
}

// Source lists the authoritative records to replicate.
type Source interface {
	Records() []*stamina.Record
}

// SnapshotOf copies the replicated fields of record.
func SnapshotOf(record *stamina.Record) Snapshot {
	if record == nil {
		return Snapshot{}
	}
	return Snapshot{
		ID:              record.ID(),
		CurrentValue:    float32(record.Value()),
		CanSlide:        record.CanSlide(),
		SlideCost:       record.SlideCost(),
		ActualRegenRate: float32(record.ActualRate()),
		Stimulated:      record.Stimulated(),
	}
}

// Collect snapshots every dirty record and clears its dirty flag.
func Collect(src Source) []Snapshot {
	if src == nil {
		return nil
	}
	var out []Snapshot
	for _, record := range src.Records() {
		if !record.Dirty() {
			continue
		}
		out = append(out, SnapshotOf(record))
		record.ClearDirty()
	}
	return out
}

// All snapshots every record without touching dirty flags. New observers
// receive this as their initial state.
func All(src Source) []Snapshot {
	if src == nil {
		return nil
	}
	records := src.Records()
	out := make([]Snapshot, 0, len(records))
	for _, record := range records {
		out = append(out, SnapshotOf(record))
	}
	return out
}
