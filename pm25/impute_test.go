package pm25

import "testing"

// TestImputeScenarioS4 is spec scenario S4: one hourly sensor with
// pm25=20 at 10:00, 30 at 11:00, missing at 10:30 and 11:30 (no
// right-adjacent hour). Expect 10:30 -> 25.0 and 11:30 to remain missing.
func TestImputeScenarioS4(t *testing.T) {
	const h10, h1030, h11, h1130 = 10 * 3600, 10*3600 + 1800, 11 * 3600, 11*3600 + 1800
	norm := []NormalizedMeasurement{
		{SensorID: "s", T: h10, PM25: 20},
		{SensorID: "s", T: h11, PM25: 30},
	}
	axis := []int64{h10, h1030, h11, h1130}
	labels := map[string]CadenceLabel{"s": CadenceHourly}

	out := Impute(norm, axis, labels)

	byT := make(map[int64]NormalizedMeasurement)
	for _, nm := range out {
		byT[nm.T] = nm
	}

	if nm, ok := byT[h1030]; !ok || nm.Missing || nm.PM25 != 25.0 {
		t.Errorf("10:30 = %+v, want non-missing 25.0", nm)
	}
	// 11:30 has no right-adjacent hourly reading, so Impute leaves it
	// untouched: either absent from the output entirely, or present but
	// still flagged missing. Either way it must not carry a filled value.
	if nm, ok := byT[h1130]; ok && !nm.Missing {
		t.Errorf("11:30 = %+v, want no filled value (no right-adjacent hour)", nm)
	}
}

func TestImputeSkipsThirtyLabeledSensors(t *testing.T) {
	const h10, h1030, h11 = 10 * 3600, 10*3600 + 1800, 11 * 3600
	norm := []NormalizedMeasurement{
		{SensorID: "s", T: h10, PM25: 20},
		{SensorID: "s", T: h11, PM25: 30},
	}
	axis := []int64{h10, h1030, h11}
	labels := map[string]CadenceLabel{"s": CadenceThirty}

	out := Impute(norm, axis, labels)
	for _, nm := range out {
		if nm.T == h1030 {
			t.Fatalf("thirty-labeled sensor must never be imputed, got %+v", nm)
		}
	}
}

func TestImputeDoesNotOverwriteValidReading(t *testing.T) {
	const h10, h1030, h11 = 10 * 3600, 10*3600 + 1800, 11 * 3600
	norm := []NormalizedMeasurement{
		{SensorID: "s", T: h10, PM25: 20},
		{SensorID: "s", T: h1030, PM25: 999}, // already a valid reading
		{SensorID: "s", T: h11, PM25: 30},
	}
	axis := []int64{h10, h1030, h11}
	labels := map[string]CadenceLabel{"s": CadenceMixed}

	out := Impute(norm, axis, labels)
	for _, nm := range out {
		if nm.T == h1030 && nm.PM25 != 999 {
			t.Errorf("existing valid reading at 10:30 was overwritten: %+v", nm)
		}
	}
}

// TestMeanAggregateHourlyNoImputation is spec scenario S5: when the elected
// interval is 60 minutes, sensors are aggregated per hour by mean of
// non-null values, with no imputation of missing hours.
func TestMeanAggregateHourlyNoImputation(t *testing.T) {
	meas := []Measurement{
		{SensorID: "s", Unix: 0, PM25: 10},
		{SensorID: "s", Unix: 900, PM25: 20}, // rounds into the same hour, averaged
		{SensorID: "s", Unix: 3600, Missing: true},
	}
	norm, axis := MeanAggregateHourly(meas)
	if len(axis) != 2 {
		t.Fatalf("axis = %v, want 2 hourly slots", axis)
	}
	byT := make(map[int64]NormalizedMeasurement)
	for _, nm := range norm {
		byT[nm.T] = nm
	}
	if nm := byT[0]; nm.Missing || nm.PM25 != 15 {
		t.Errorf("hour 0 = %+v, want mean(10,20)=15", nm)
	}
	if nm := byT[3600]; !nm.Missing {
		t.Errorf("hour 1 = %+v, want missing (no non-null readings, no imputation)", nm)
	}
}
