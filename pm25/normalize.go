package pm25

import "sort"

// NormalizedMeasurement is a (sensor_id, t_k, pm25) tuple after rounding to
// the elected interval and deduplication (spec §3/§4.3).
type NormalizedMeasurement struct {
	SensorID string
	T        int64 // UTC Unix seconds, rounded to Δ
	PM25     float64
	Missing  bool
}

// roundToInterval rounds t to the nearest multiple of delta seconds,
// breaking exact half-interval ties up (spec §3: "half-up on the
// boundary").
func roundToInterval(t int64, delta Interval) int64 {
	d := int64(delta)
	q := t / d
	r := t % d
	if r < 0 {
		// Go truncates toward zero; normalize to a positive remainder.
		q--
		r += d
	}
	if 2*r >= d {
		q++
	}
	return q * d
}

// Normalize implements the Temporal Normalizer: rounds every
// measurement to the elected interval, deduplicates (sensor_id, t_k) by
// keeping the first non-missing reading (ties keep the first), and
// constructs the complete regular timestamp axis spanning the rounded
// min/max.
func Normalize(measurements []Measurement, delta Interval) (norm []NormalizedMeasurement, axis []int64) {
	type key struct {
		sensor string
		t      int64
	}
	seen := make(map[key]int) // index into result slice
	var result []NormalizedMeasurement

	var tMin, tMax int64
	first := true

	for _, m := range measurements {
		t := roundToInterval(m.Unix, delta)
		if first || t < tMin {
			tMin = t
		}
		if first || t > tMax {
			tMax = t
		}
		first = false

		k := key{sensor: m.SensorID, t: t}
		if idx, ok := seen[k]; ok {
			if result[idx].Missing && !m.Missing {
				result[idx].PM25 = m.PM25
				result[idx].Missing = false
			}
			continue
		}
		seen[k] = len(result)
		result = append(result, NormalizedMeasurement{
			SensorID: m.SensorID,
			T:        t,
			PM25:     m.PM25,
			Missing:  m.Missing,
		})
	}

	if len(result) == 0 {
		return nil, nil
	}

	d := int64(delta)
	for t := tMin; t <= tMax; t += d {
		axis = append(axis, t)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SensorID != result[j].SensorID {
			return result[i].SensorID < result[j].SensorID
		}
		return result[i].T < result[j].T
	})

	return result, axis
}

// buildAxis returns the complete regular timestamp axis from tMin to tMax
// (inclusive) at the given interval.
func buildAxis(tMin, tMax int64, delta Interval) []int64 {
	d := int64(delta)
	var axis []int64
	for t := tMin; t <= tMax; t += d {
		axis = append(axis, t)
	}
	return axis
}
