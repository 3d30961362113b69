package pm25

// ActiveSeries maps each accepted timestamp to the set of sensors that are
// active (non-missing pm25) at that timestamp.
type ActiveSeries map[int64]map[string]float64

// buildActiveSeries indexes normalized measurements by timestamp for O(1)
// per-timestamp lookups downstream.
func buildActiveSeries(norm []NormalizedMeasurement) ActiveSeries {
	series := make(ActiveSeries)
	for _, nm := range norm {
		if nm.Missing {
			continue
		}
		m, ok := series[nm.T]
		if !ok {
			m = make(map[string]float64)
			series[nm.T] = m
		}
		m[nm.SensorID] = nm.PM25
	}
	return series
}

// FilterComplete implements the Completeness Filter: keeps
// only axis timestamps with at least sMin active sensors. Returns the
// accepted timestamps in ascending order, the per-timestamp active series,
// and the dropped InsufficientDataWarning events for the run Summary.
func FilterComplete(axis []int64, norm []NormalizedMeasurement, sMin int) (accepted []int64, series ActiveSeries, dropped []InsufficientDataWarning) {
	full := buildActiveSeries(norm)
	series = make(ActiveSeries)
	for _, t := range axis {
		active := full[t]
		if len(active) >= sMin {
			accepted = append(accepted, t)
			series[t] = active
		} else {
			dropped = append(dropped, InsufficientDataWarning{
				Timestamp:    t,
				ActiveCount:  len(active),
				RequiredSMin: sMin,
			})
		}
	}
	return accepted, series, dropped
}
