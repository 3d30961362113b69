package pm25

import "testing"

// synthMeasurements builds validAtHalf/slotsAtHalf counts for one sensor by
// generating a sequence of hourly slots, each optionally followed by a
// half-hour slot that is present (valid) or absent (counts toward
// slotsAtHalf only if a row exists; per spec §3, f is counts of valid
// readings over counts of slots at minute==30, so we always emit a row at
// minute 30, sometimes missing).
func synthMeasurements(sensor string, n int, halfHourValidEvery int) []Measurement {
	var out []Measurement
	t := int64(0)
	for i := 0; i < n; i++ {
		out = append(out, Measurement{SensorID: sensor, Unix: t, PM25: 10, Missing: false})
		t += 1800
		valid := halfHourValidEvery > 0 && i%halfHourValidEvery == 0
		out = append(out, Measurement{SensorID: sensor, Unix: t, PM25: 10, Missing: !valid})
		t += 1800
	}
	return out
}

func TestClassifyCadenceLabels(t *testing.T) {
	var all []Measurement
	all = append(all, synthMeasurements("thirty_sensor", 10, 1)...)  // f=1.0
	all = append(all, synthMeasurements("hourly_sensor", 10, 0)...)  // f=0.0
	all = append(all, synthMeasurements("mixed_sensor", 10, 2)...)   // f=0.5

	labels, sum := ClassifyCadence(all)
	if labels["thirty_sensor"] != CadenceThirty {
		t.Errorf("thirty_sensor labeled %v, want thirty", labels["thirty_sensor"])
	}
	if labels["hourly_sensor"] != CadenceHourly {
		t.Errorf("hourly_sensor labeled %v, want hourly", labels["hourly_sensor"])
	}
	if labels["mixed_sensor"] != CadenceMixed {
		t.Errorf("mixed_sensor labeled %v, want mixed", labels["mixed_sensor"])
	}
	if sum.Thirty != 1 || sum.Hourly != 1 || sum.Mixed != 1 || sum.Total != 3 {
		t.Errorf("summary = %+v, want {Thirty:1 Hourly:1 Mixed:1 Total:3}", sum)
	}
}

func TestClassifyCadenceOtherHasNoHalfHourSlots(t *testing.T) {
	// Only on-the-hour readings: no minute==30 rows at all.
	meas := []Measurement{
		{SensorID: "s", Unix: 0, PM25: 10},
		{SensorID: "s", Unix: 3600, PM25: 10},
	}
	labels, sum := ClassifyCadence(meas)
	if labels["s"] != CadenceOther {
		t.Errorf("labeled %v, want other", labels["s"])
	}
	if sum.Other != 1 {
		t.Errorf("sum.Other = %d, want 1", sum.Other)
	}
}

func TestElectIntervalMajority(t *testing.T) {
	cases := []struct {
		name   string
		sum    CadenceSummary
		policy IntervalTiePolicy
		want   Interval
	}{
		{"thirty majority", CadenceSummary{Thirty: 6, Hourly: 4}, PreferHourly, Interval30},
		{"hourly majority", CadenceSummary{Thirty: 4, Hourly: 6}, PreferHourly, Interval60},
		{"tie prefers hourly by default", CadenceSummary{Thirty: 5, Hourly: 5}, PreferHourly, Interval60},
		{"tie prefers 30min when policy set", CadenceSummary{Thirty: 5, Hourly: 5}, Prefer30Min, Interval30},
	}
	for _, c := range cases {
		if got := ElectInterval(c.sum, c.policy); got != c.want {
			t.Errorf("%s: ElectInterval() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestMinuteOf(t *testing.T) {
	cases := []struct {
		unix int64
		want int
	}{
		{0, 0},
		{1800, 30},
		{3600, 0},
		{3600 + 1800, 30},
	}
	for _, c := range cases {
		if got := minuteOf(c.unix); got != c.want {
			t.Errorf("minuteOf(%d) = %d, want %d", c.unix, got, c.want)
		}
	}
}
