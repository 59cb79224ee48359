package stamina

import (
	"fmt"
	"sort"
)

// Band is a discrete classification of a stamina value, ordered from the
// least to the most energy.
type Band uint8

const (
	Collapsed Band = iota
	Tired
	Normal
	Energetic
	Overcharged
)

// AllBands lists every band in ascending energy order.
var AllBands = []Band{Collapsed, Tired, Normal, Energetic, Overcharged}

func (b Band) String() string {
	switch b {
	case Collapsed:
		return "collapsed"
	case Tired:
		return "tired"
	case Normal:
		return "normal"
	case Energetic:
		return "energetic"
	case Overcharged:
		return "overcharged"
	default:
		return fmt.Sprintf("band(%d)", uint8(b))
	}
}

// ParseBand maps a band name back to its value.
func ParseBand(name string) (Band, bool) {
	for _, band := range AllBands {
		if band.String() == name {
			return band, true
		}
	}
	return 0, false
}

// Threshold is the inclusive upper boundary of a band.
type Threshold struct {
	Band     Band
	Boundary float64
}

// Table is a threshold table sorted by ascending boundary.
type Table []Threshold

// DefaultTable returns the stock 0..1000 stamina table.
func DefaultTable() Table {
	return Table{
		{Band: Collapsed, Boundary: 100},
		{Band: Tired, Boundary: 250},
		{Band: Normal, Boundary: 500},
		{Band: Energetic, Boundary: 750},
		{Band: Overcharged, Boundary: 1000},
	}
}

// NewTable builds a table from a band → boundary mapping and validates it.
func NewTable(boundaries map[Band]float64) (Table, error) {
	table := make(Table, 0, len(boundaries))
	for band, boundary := range boundaries {
		table = append(table, Threshold{Band: band, Boundary: boundary})
	}
	sort.Slice(table, func(i, j int) bool { return table[i].Boundary < table[j].Boundary })
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Validate checks that every band is present exactly once and that the
// boundaries grow strictly with the band order.
func (t Table) Validate() error {
	if len(t) != len(AllBands) {
		return fmt.Errorf("threshold table has %d bands, want %d", len(t), len(AllBands))
	}
	for i, entry := range t {
		if entry.Band != AllBands[i] {
			return fmt.Errorf("threshold table entry %d is %s, want %s", i, entry.Band, AllBands[i])
		}
		if entry.Boundary <= 0 {
			return fmt.Errorf("band %s boundary must be positive, got %v", entry.Band, entry.Boundary)
		}
		if i > 0 && entry.Boundary <= t[i-1].Boundary {
			return fmt.Errorf("band %s boundary %v must exceed %s boundary %v", entry.Band, entry.Boundary, t[i-1].Band, t[i-1].Boundary)
		}
	}
	return nil
}

// Boundary returns the boundary configured for band.
func (t Table) Boundary(band Band) (float64, bool) {
	for _, entry := range t {
		if entry.Band == band {
			return entry.Boundary, true
		}
	}
	return 0, false
}

// MustBoundary is Boundary for bands that are required to exist. A missing
// band means the table is corrupt and panics.
func (t Table) MustBoundary(band Band) float64 {
	boundary, ok := t.Boundary(band)
	if !ok {
		panic(fmt.Sprintf("stamina: threshold table has no entry for %s", band))
	}
	return boundary
}

// Capacity is the largest boundary in the table.
func (t Table) Capacity() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Boundary
}

// Classify returns the band with the smallest boundary that is still >= value.
// A value on a boundary belongs to that boundary's band and a value above
// every boundary falls into the topmost band. Callers clamp first.
func Classify(value float64, table Table) Band {
	if len(table) == 0 {
		panic("stamina: classify against an empty threshold table")
	}
	for _, entry := range table {
		if value <= entry.Boundary {
			return entry.Band
		}
	}
	return table[len(table)-1].Band
}
