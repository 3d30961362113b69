package pm25

import "sort"

// MeanAggregateHourly handles the hourly-interval path: every sensor is
// aggregated per hour by the mean of its non-null values, with no
// imputation. Unlike Normalize's first-non-missing-wins dedup used for the
// 30-minute path, every raw reading that rounds into the same hourly slot
// for a sensor is averaged.
func MeanAggregateHourly(measurements []Measurement) (norm []NormalizedMeasurement, axis []int64) {
	type key struct {
		sensor string
		t      int64
	}
	type acc struct {
		sum   float64
		count int
	}
	accs := make(map[key]*acc)
	order := make([]key, 0)

	var tMin, tMax int64
	first := true

	for _, m := range measurements {
		t := roundToInterval(m.Unix, Interval60)
		if first || t < tMin {
			tMin = t
		}
		if first || t > tMax {
			tMax = t
		}
		first = false

		k := key{sensor: m.SensorID, t: t}
		a, ok := accs[k]
		if !ok {
			a = &acc{}
			accs[k] = a
			order = append(order, k)
		}
		if !m.Missing {
			a.sum += m.PM25
			a.count++
		}
	}

	if len(order) == 0 {
		return nil, nil
	}

	result := make([]NormalizedMeasurement, 0, len(order))
	for _, k := range order {
		a := accs[k]
		nm := NormalizedMeasurement{SensorID: k.sensor, T: k.t}
		if a.count == 0 {
			nm.Missing = true
		} else {
			nm.PM25 = a.sum / float64(a.count)
		}
		result = append(result, nm)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SensorID != result[j].SensorID {
			return result[i].SensorID < result[j].SensorID
		}
		return result[i].T < result[j].T
	})

	return result, buildAxis(tMin, tMax, Interval60)
}

// Impute implements the Selective Imputer. It is only called
// when Δ=30 minutes. For every sensor labeled hourly or mixed, each
// half-hour slot that is missing is filled with the arithmetic mean of the
// two flanking hourly readings, but only when both of those readings exist
// on the axis and are non-missing. thirty-labeled sensors, and any
// half-hour slot missing one or both flanking readings, are left
// untouched — no forward/backward fill, no extrapolation.
func Impute(norm []NormalizedMeasurement, axis []int64, labels map[string]CadenceLabel) []NormalizedMeasurement {
	bySensor := make(map[string]map[int64]int) // sensor -> t -> index into norm
	for i, nm := range norm {
		m, ok := bySensor[nm.SensorID]
		if !ok {
			m = make(map[int64]int)
			bySensor[nm.SensorID] = m
		}
		m[nm.T] = i
	}

	out := make([]NormalizedMeasurement, len(norm))
	copy(out, norm)

	for sensorID, series := range bySensor {
		label := labels[sensorID]
		if label != CadenceHourly && label != CadenceMixed {
			continue
		}
		for _, t := range axis {
			if minuteOf(t) != 30 {
				continue
			}
			idx, present := series[t]
			if present && !out[idx].Missing {
				continue // already has a valid reading
			}
			beforeIdx, haveBefore := series[t-1800]
			afterIdx, haveAfter := series[t+1800]
			if !haveBefore || !haveAfter {
				continue
			}
			if out[beforeIdx].Missing || out[afterIdx].Missing {
				continue
			}
			mean := (out[beforeIdx].PM25 + out[afterIdx].PM25) / 2
			if present {
				out[idx].PM25 = mean
				out[idx].Missing = false
			} else {
				out = append(out, NormalizedMeasurement{SensorID: sensorID, T: t, PM25: mean})
				series[t] = len(out) - 1
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SensorID != out[j].SensorID {
			return out[i].SensorID < out[j].SensorID
		}
		return out[i].T < out[j].T
	})
	return out
}
