package pm25

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// sensorPos is an active sensor's planar position and value at a single
// timestamp, used as the input to IDW neighbor search.
type sensorPos struct {
	ID   string
	X, Y float64 // degrees
	Z    float64 // pm25
}

// activeSensorPositions joins the active-sensor value map for a timestamp
// against sensor coordinates, sorted by sensor ID for deterministic
// tie-breaking (spec P9: determinism after canonical sort).
func activeSensorPositions(sensors map[string]Sensor, active map[string]float64) []sensorPos {
	out := make([]sensorPos, 0, len(active))
	for id, v := range active {
		s, ok := sensors[id]
		if !ok {
			continue
		}
		out = append(out, sensorPos{ID: id, X: s.Lon, Y: s.Lat, Z: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDWPrediction is the interpolated value at one grid point, with the
// sensor IDs that contributed to it.
type IDWPrediction struct {
	GridPointID  int
	Value        float64
	Contributors []string
}

type neighborCand struct {
	sensor *sensorPos
	dist   float64
}

// nearestNeighbors returns the min(k, len(active)) sensors closest to (x,
// y) in planar degree distance, sorted ascending by distance with sensor ID
// as a deterministic tie-break.
func nearestNeighbors(x, y float64, active []sensorPos, k int) []neighborCand {
	cands := make([]neighborCand, len(active))
	for i := range active {
		dx := x - active[i].X
		dy := y - active[i].Y
		cands[i] = neighborCand{sensor: &active[i], dist: math.Sqrt(dx*dx + dy*dy)}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].sensor.ID < cands[j].sensor.ID
	})
	n := k
	if n > len(cands) {
		n = len(cands)
	}
	return cands[:n]
}

// idwValue computes the inverse-distance-weighted prediction from a
// neighbor set, applying the degenerate-weight rule: if any
// neighbor is co-located with the grid point, the prediction is the mean of
// those co-located sensors' values; otherwise it's the power-p weighted
// mean of all neighbors.
func idwValue(neighbors []neighborCand, p float64) float64 {
	var zeroSum float64
	var zeroCount int
	for _, n := range neighbors {
		if n.dist == 0 {
			zeroSum += n.sensor.Z
			zeroCount++
		}
	}
	if zeroCount > 0 {
		return zeroSum / float64(zeroCount)
	}

	weights := make([]float64, len(neighbors))
	values := make([]float64, len(neighbors))
	for i, n := range neighbors {
		weights[i] = math.Pow(n.dist, -p)
		values[i] = n.sensor.Z * weights[i]
	}
	return floats.Sum(values) / floats.Sum(weights)
}

// IDWAtTimestamp implements the IDW Engine for a single
// accepted timestamp: for every grid point, selects its k nearest active
// sensors by planar Euclidean distance in degrees and interpolates pm25
// with power p.
func IDWAtTimestamp(points []GridPoint, sensors map[string]Sensor, active map[string]float64, k int, p float64) []IDWPrediction {
	activePos := activeSensorPositions(sensors, active)
	out := make([]IDWPrediction, len(points))
	for i, pt := range points {
		neighbors := nearestNeighbors(pt.Lon, pt.Lat, activePos, k)
		contributors := make([]string, len(neighbors))
		for j, n := range neighbors {
			contributors[j] = n.sensor.ID
		}
		out[i] = IDWPrediction{
			GridPointID:  pt.ID,
			Value:        idwValue(neighbors, p),
			Contributors: contributors,
		}
	}
	return out
}
