package pm25

import "gonum.org/v1/gonum/floats"

// ResultRow is one per-timestamp, per-kelurahan output row.
type ResultRow struct {
	Kelurahan               string
	TimestampUnix           int64
	AvgPM25, MinPM25, MaxPM25 float64
	NGrids                  int
	NSensorsUsed            int
	NContributingSensors    int
}

// AggregatePolygons implements the Polygon Aggregator: reduces
// per-grid-point IDW predictions to one row per kelurahan that contains at
// least one grid point, using the precomputed grid_to_polygon assignment.
// predictions must be aligned index-for-index with grid.Points (as returned
// by IDWAtTimestamp).
func AggregatePolygons(grid *Grid, predictions []IDWPrediction, nSensorsUsed int, timestampUnix int64) []ResultRow {
	rows := make([]ResultRow, 0, len(grid.Kelurahans))
	for kIdx, pointIdxs := range grid.ByKelurahan {
		if len(pointIdxs) == 0 {
			continue
		}
		values := make([]float64, len(pointIdxs))
		contributors := make(map[string]struct{})
		for i, pIdx := range pointIdxs {
			pred := predictions[pIdx]
			values[i] = pred.Value
			for _, c := range pred.Contributors {
				contributors[c] = struct{}{}
			}
		}
		rows = append(rows, ResultRow{
			Kelurahan:            grid.Kelurahans[kIdx].Name,
			TimestampUnix:        timestampUnix,
			AvgPM25:              floats.Sum(values) / float64(len(values)),
			MinPM25:              floats.Min(values),
			MaxPM25:              floats.Max(values),
			NGrids:               len(pointIdxs),
			NSensorsUsed:         nSensorsUsed,
			NContributingSensors: len(contributors),
		})
	}
	return rows
}
