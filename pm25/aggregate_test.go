package pm25

import "testing"

// TestAggregatePolygonsBounds is property P7: avg/min/max per polygon equal
// the mean/min/max of that polygon's grid predictions, with
// min <= avg <= max.
func TestAggregatePolygonsBounds(t *testing.T) {
	grid := &Grid{
		Kelurahans: []Kelurahan{{Name: "Kel A"}, {Name: "Kel B"}},
		ByKelurahan: map[int][]int{
			0: {0, 1, 2},
			1: {3},
		},
	}
	predictions := []IDWPrediction{
		{GridPointID: 0, Value: 10, Contributors: []string{"s1"}},
		{GridPointID: 1, Value: 20, Contributors: []string{"s2"}},
		{GridPointID: 2, Value: 30, Contributors: []string{"s1", "s2"}},
		{GridPointID: 3, Value: 99, Contributors: []string{"s3"}},
	}

	rows := AggregatePolygons(grid, predictions, 3, 1000)
	byName := make(map[string]ResultRow)
	for _, r := range rows {
		byName[r.Kelurahan] = r
	}

	a := byName["Kel A"]
	if a.MinPM25 != 10 || a.MaxPM25 != 30 || a.AvgPM25 != 20 {
		t.Errorf("Kel A = %+v, want min=10 max=30 avg=20", a)
	}
	if a.AvgPM25 < a.MinPM25 || a.AvgPM25 > a.MaxPM25 {
		t.Errorf("Kel A avg %v not within [min,max] [%v,%v]", a.AvgPM25, a.MinPM25, a.MaxPM25)
	}
	if a.NGrids != 3 {
		t.Errorf("Kel A NGrids = %d, want 3", a.NGrids)
	}
	if a.NContributingSensors != 2 {
		t.Errorf("Kel A NContributingSensors = %d, want 2 (union of s1,s2)", a.NContributingSensors)
	}
	if a.NSensorsUsed != 3 {
		t.Errorf("Kel A NSensorsUsed = %d, want 3 (passed-through active count)", a.NSensorsUsed)
	}

	b := byName["Kel B"]
	if b.MinPM25 != 99 || b.MaxPM25 != 99 || b.AvgPM25 != 99 {
		t.Errorf("Kel B = %+v, want min=max=avg=99", b)
	}
	if b.TimestampUnix != 1000 {
		t.Errorf("Kel B TimestampUnix = %d, want 1000", b.TimestampUnix)
	}
}

// TestAggregatePolygonsOmitsEmpty checks that polygons with zero grid
// points are omitted from output (spec §4.8).
func TestAggregatePolygonsOmitsEmpty(t *testing.T) {
	grid := &Grid{
		Kelurahans: []Kelurahan{{Name: "Empty"}},
		ByKelurahan: map[int][]int{
			0: {}, // degenerate: no grid points landed in this polygon
		},
	}
	rows := AggregatePolygons(grid, nil, 0, 0)
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want none for a polygon with zero grid points", rows)
	}
}
