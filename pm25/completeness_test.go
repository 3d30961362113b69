package pm25

import "testing"

// TestFilterCompleteScenarioS3 is spec scenario S3: timestamp Ta has 49
// valid sensors, Tb has 50. With S_min=50, only Tb is accepted, and exactly
// one timestamp is dropped.
func TestFilterCompleteScenarioS3(t *testing.T) {
	const ta, tb = 0, 1800
	axis := []int64{ta, tb}

	var norm []NormalizedMeasurement
	for i := 0; i < 49; i++ {
		id := sensorID(i)
		norm = append(norm, NormalizedMeasurement{SensorID: id, T: ta, PM25: 10})
	}
	for i := 0; i < 50; i++ {
		id := sensorID(i)
		norm = append(norm, NormalizedMeasurement{SensorID: id, T: tb, PM25: 10})
	}

	accepted, series, dropped := FilterComplete(axis, norm, 50)

	if len(accepted) != 1 || accepted[0] != tb {
		t.Fatalf("accepted = %v, want [%d]", accepted, tb)
	}
	if len(dropped) != 1 || dropped[0].Timestamp != ta {
		t.Fatalf("dropped = %+v, want exactly timestamp %d", dropped, ta)
	}
	if len(series[tb]) != 50 {
		t.Errorf("active series for tb has %d sensors, want 50", len(series[tb]))
	}
}

func TestFilterCompleteIgnoresMissingReadings(t *testing.T) {
	axis := []int64{0}
	norm := []NormalizedMeasurement{
		{SensorID: "a", T: 0, PM25: 10, Missing: false},
		{SensorID: "b", T: 0, Missing: true},
	}
	accepted, series, dropped := FilterComplete(axis, norm, 1)
	if len(accepted) != 1 {
		t.Fatalf("accepted = %v, want exactly one timestamp", accepted)
	}
	if len(series[0]) != 1 {
		t.Errorf("active series = %v, want only sensor a", series[0])
	}
	if len(dropped) != 0 {
		t.Errorf("dropped = %v, want none", dropped)
	}
}

func sensorID(i int) string {
	return string(rune('A'+(i%26))) + string(rune('a'+(i/26)))
}
