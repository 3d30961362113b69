package pm25

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TimestampType tags a representative-timestamp distance row.
type TimestampType string

const (
	MaxSensors    TimestampType = "max_sensors"
	MinSensors    TimestampType = "min_sensors"
	MedianSensors TimestampType = "median_sensors"
)

// earthRadiusKM is the mean Earth radius used for Haversine distance.
const earthRadiusKM = 6371.0

// haversineKM returns the great-circle distance in kilometers between two
// WGS84 lon/lat points in degrees.
func haversineKM(lon1, lat1, lon2, lat2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	lat1r := lat1 * rad
	lat2r := lat2 * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// RepresentativeSet is the three timestamps chosen for distance reporting:
// the accepted timestamp with the most active sensors, the one with the
// fewest (still >= S_min), and the median by active-sensor count.
type RepresentativeSet struct {
	Max, Min, Median int64
}

// Contains reports whether t is one of the three representative timestamps
// and, if so, which type it is.
func (r RepresentativeSet) Contains(t int64) (TimestampType, bool) {
	switch t {
	case r.Max:
		return MaxSensors, true
	case r.Min:
		return MinSensors, true
	case r.Median:
		return MedianSensors, true
	}
	return "", false
}

// SelectRepresentative picks the three representative timestamps: sorts
// accepted timestamps by active-sensor count (ties broken by timestamp,
// ascending, for determinism), then takes the last (max), first (min), and
// the upper-median element.
func SelectRepresentative(accepted []int64, series ActiveSeries) RepresentativeSet {
	type entry struct {
		t     int64
		count int
	}
	entries := make([]entry, len(accepted))
	for i, t := range accepted {
		entries[i] = entry{t: t, count: len(series[t])}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count < entries[j].count
		}
		return entries[i].t < entries[j].t
	})

	n := len(entries)
	if n == 0 {
		return RepresentativeSet{}
	}
	medianIdx := n / 2 // upper median on ties
	return RepresentativeSet{
		Max:    entries[n-1].t,
		Min:    entries[0].t,
		Median: entries[medianIdx].t,
	}
}

// DistanceRow is one per-kelurahan distance-provenance row for a
// representative timestamp.
type DistanceRow struct {
	Kelurahan      string
	TimestampType  TimestampType
	TimestampUnix  int64

	AvgPM25, MinPM25, MaxPM25                                     float64
	MinDistanceKM, MedianDistanceKM, AvgDistanceKM, MaxDistanceKM float64

	NGrids, NSensorsUsed, NContributingSensors int
}

// ComputeDistanceRows reports, for a single representative timestamp and
// every grid point in a kelurahan, the Haversine distance to each sensor in
// that point's contributing set, then the min/median/mean/max of the
// combined per-kelurahan distance collection.
func ComputeDistanceRows(grid *Grid, sensors map[string]Sensor, predictions []IDWPrediction, nSensorsUsed int, timestampUnix int64, tsType TimestampType) []DistanceRow {
	rows := make([]DistanceRow, 0, len(grid.Kelurahans))
	for kIdx, pointIdxs := range grid.ByKelurahan {
		if len(pointIdxs) == 0 {
			continue
		}
		values := make([]float64, len(pointIdxs))
		var distances []float64
		contributors := make(map[string]struct{})
		for i, pIdx := range pointIdxs {
			gp := grid.Points[pIdx]
			pred := predictions[pIdx]
			values[i] = pred.Value
			for _, sensorID := range pred.Contributors {
				s, ok := sensors[sensorID]
				if !ok {
					continue
				}
				distances = append(distances, haversineKM(gp.Lon, gp.Lat, s.Lon, s.Lat))
				contributors[sensorID] = struct{}{}
			}
		}
		if len(distances) == 0 {
			continue
		}
		sort.Float64s(distances)

		rows = append(rows, DistanceRow{
			Kelurahan:            grid.Kelurahans[kIdx].Name,
			TimestampType:        tsType,
			TimestampUnix:        timestampUnix,
			AvgPM25:              floats.Sum(values) / float64(len(values)),
			MinPM25:              floats.Min(values),
			MaxPM25:              floats.Max(values),
			MinDistanceKM:        distances[0],
			MedianDistanceKM:     stat.Quantile(0.5, stat.Empirical, distances, nil),
			AvgDistanceKM:        floats.Sum(distances) / float64(len(distances)),
			MaxDistanceKM:        distances[len(distances)-1],
			NGrids:               len(pointIdxs),
			NSensorsUsed:         nSensorsUsed,
			NContributingSensors: len(contributors),
		})
	}
	return rows
}
