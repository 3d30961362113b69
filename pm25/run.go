package pm25

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Run executes the full interpolation pipeline: load and validate, classify
// cadence, normalize/impute onto a common axis, filter to complete
// timestamps, build the spatial grid, interpolate and aggregate each
// accepted timestamp in parallel, compute the representative-timestamp
// distance report, and write both output tables. It returns a Summary of
// every recoverable condition encountered even when the run otherwise
// succeeds, and a non-nil error only for the fatal ConfigError,
// InputShapeError, GeometryError, and IOWriteError kinds.
func Run(ctx context.Context, cfg Config, now time.Time) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	log := cfg.logOrDefault()

	measFile, err := os.Open(cfg.InputFile)
	if err != nil {
		return Summary{}, InputShapeError{Msg: fmt.Sprintf("opening %s: %v", cfg.InputFile, err)}
	}
	rawRows, err := ReadMeasurementTable(measFile)
	measFile.Close()
	if err != nil {
		return Summary{}, err
	}

	var rawStations []rawStationRow
	if cfg.StationFile != "" {
		stationFile, err := os.Open(cfg.StationFile)
		if err != nil {
			return Summary{}, InputShapeError{Msg: fmt.Sprintf("opening %s: %v", cfg.StationFile, err)}
		}
		rawStations, err = ReadStationTable(stationFile)
		stationFile.Close()
		if err != nil {
			return Summary{}, err
		}
	}

	loadResult, err := LoadAndValidate(rawRows, rawStations, cfg.BBox, cfg.PM25Cap, log)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		ExcludedSensors:    loadResult.ExcludedSensors,
		ExcludedRows:       loadResult.ExcludedRows,
		DuplicateSensorIDs: loadResult.DuplicateIDs,
	}

	labels, cadenceSum := ClassifyCadence(loadResult.Measurements)
	delta := ElectInterval(cadenceSum, cfg.IntervalTiePolicy)
	log.WithFields(map[string]interface{}{
		"thirty": cadenceSum.Thirty, "hourly": cadenceSum.Hourly,
		"mixed": cadenceSum.Mixed, "other": cadenceSum.Other,
		"electedIntervalSeconds": int(delta),
	}).Infof("cadence: interval elected")

	var norm []NormalizedMeasurement
	var axis []int64
	if delta == Interval60 {
		norm, axis = MeanAggregateHourly(loadResult.Measurements)
	} else {
		norm, axis = Normalize(loadResult.Measurements, delta)
		norm = Impute(norm, axis, labels)
	}

	accepted, series, dropped := FilterComplete(axis, norm, cfg.SMin)
	summary.DroppedTimestamps = len(dropped)
	summary.AcceptedTimestamps = len(accepted)
	summary.InsufficientDataEvents = dropped
	for _, d := range dropped {
		log.Warnf("completeness: dropping timestamp: %v", d)
	}
	if len(accepted) == 0 {
		log.Warnf("run: no timestamp met S_min=%d; nothing to interpolate", cfg.SMin)
		summary.PartialSuccess = true
		return summary, nil
	}

	grid, err := BuildGrid(cfg.ShapefileBase, cfg.CellSizeDeg, log)
	if err != nil {
		return summary, err
	}
	for i := range grid.Kelurahans {
		if len(grid.ByKelurahan[i]) == 0 {
			summary.DegenerateKelurahans++
		}
	}

	repr := SelectRepresentative(accepted, series)

	workers := cfg.Workers
	sched := NewScheduler(workers, cfg.TaskTimeoutSeconds, log)
	results, runErr := sched.Run(ctx, accepted, series, grid, loadResult.Sensors, cfg.K, cfg.P, repr)
	if runErr != nil {
		log.Warnf("run: scheduler stopped early: %v", runErr)
		summary.PartialSuccess = true
	}

	var allRows []ResultRow
	var allDistances []DistanceRow
	for _, r := range results {
		if r.Err != nil {
			summary.TaskFailures++
			if tf, ok := r.Err.(TaskFailure); ok {
				summary.TaskFailureEvents = append(summary.TaskFailureEvents, tf)
			}
			continue
		}
		allRows = append(allRows, r.Rows...)
		allDistances = append(allDistances, r.Distances...)
	}

	if summary.TaskFailures > 0 {
		summary.PartialSuccess = true
	}

	// Restore deterministic ordering (spec §4.10): per-timestamp
	// aggregation iterates a map keyed by kelurahan index, so rows arrive
	// in an unspecified order within each timestamp.
	sort.Slice(allRows, func(i, j int) bool {
		if allRows[i].TimestampUnix != allRows[j].TimestampUnix {
			return allRows[i].TimestampUnix < allRows[j].TimestampUnix
		}
		return allRows[i].Kelurahan < allRows[j].Kelurahan
	})
	sort.Slice(allDistances, func(i, j int) bool {
		if allDistances[i].TimestampUnix != allDistances[j].TimestampUnix {
			return allDistances[i].TimestampUnix < allDistances[j].TimestampUnix
		}
		return allDistances[i].Kelurahan < allDistances[j].Kelurahan
	})

	dateRange := ParseDateRange(cfg.InputFile, now)
	resultPath := filepath.Join(cfg.OutputDir, ResultFilename(cfg.K, dateRange))
	if err := WriteWithRetry(resultPath, log, func(w io.Writer) error {
		return WriteResultTable(w, allRows)
	}); err != nil {
		return summary, err
	}

	distancePath := filepath.Join(cfg.OutputDir, DistanceFilename(dateRange))
	if err := WriteWithRetry(distancePath, log, func(w io.Writer) error {
		return WriteDistanceTable(w, allDistances)
	}); err != nil {
		return summary, err
	}

	log.WithFields(map[string]interface{}{
		"resultRows":    len(allRows),
		"distanceRows":  len(allDistances),
		"partialSuccess": summary.PartialSuccess,
	}).Infof("run: complete")

	return summary, nil
}
