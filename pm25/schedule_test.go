package pm25

import (
	"context"
	"testing"
)

func testGrid() *Grid {
	return &Grid{
		Kelurahans: []Kelurahan{{Name: "Kel A"}},
		Points: []GridPoint{
			{ID: 0, Lon: 106.8, Lat: -6.2, Kelurahan: 0},
		},
		ByKelurahan: map[int][]int{0: {0}},
	}
}

func TestSchedulerRunProducesOneResultPerTimestamp(t *testing.T) {
	sensors := map[string]Sensor{
		"a": {ID: "a", Lon: 106.8, Lat: -6.2},
		"b": {ID: "b", Lon: 106.81, Lat: -6.2},
	}
	accepted := []int64{0, 1800}
	series := ActiveSeries{
		0:    {"a": 10, "b": 20},
		1800: {"a": 15, "b": 25},
	}
	grid := testGrid()
	repr := SelectRepresentative(accepted, series)

	sched := NewScheduler(2, 60, defaultLogger())
	results, err := sched.Run(context.Background(), accepted, series, grid, sensors, 2, 2, repr)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Errorf("results[%d].Err = %v, want nil", i, r.Err)
		}
		if len(r.Rows) != 1 {
			t.Errorf("results[%d].Rows = %v, want one row for Kel A", i, r.Rows)
		}
	}
}

func TestSchedulerAttachesDistanceRowsOnlyToRepresentativeTimestamps(t *testing.T) {
	sensors := map[string]Sensor{"a": {ID: "a", Lon: 106.8, Lat: -6.2}}
	accepted := []int64{0, 1800, 3600}
	series := ActiveSeries{
		0:    {"a": 10},
		1800: {"a": 10},
		3600: {"a": 10},
	}
	grid := testGrid()
	// Force a representative set that only contains timestamp 1800.
	repr := RepresentativeSet{Max: 1800, Min: 1800, Median: 1800}

	sched := NewScheduler(1, 60, defaultLogger())
	results, err := sched.Run(context.Background(), accepted, series, grid, sensors, 1, 2, repr)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Timestamp == 1800 {
			if len(r.Distances) == 0 {
				t.Errorf("timestamp 1800 is representative, want distance rows")
			}
		} else if len(r.Distances) != 0 {
			t.Errorf("timestamp %d is not representative, want no distance rows, got %v", r.Timestamp, r.Distances)
		}
	}
}

func TestSchedulerDefaultsWorkersAndTimeout(t *testing.T) {
	sched := NewScheduler(0, 0, defaultLogger())
	if sched.taskTimeout.Seconds() != 60 {
		t.Errorf("taskTimeout = %v, want 60s default", sched.taskTimeout)
	}
}
