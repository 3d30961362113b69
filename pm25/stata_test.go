package pm25

import "testing"

// TestStataFixedPoint checks a known fixed point: 2020-01-01 00:00:00 UTC is
// 1577836800 Unix seconds, which is 60 years (with leap days) after the
// Stata %tc epoch of 1960-01-01.
func TestStataFixedPoint(t *testing.T) {
	const unix2020 = 1577836800
	got := ToStataTC(unix2020)
	want := int64(1893456000000)
	if got != want {
		t.Fatalf("ToStataTC(%d) = %d, want %d", unix2020, got, want)
	}
}

// TestStataEpoch checks the Stata epoch itself: Unix second 0 (1970-01-01)
// is 315619200 seconds, i.e. 315619200000 ms, after 1960-01-01.
func TestStataEpoch(t *testing.T) {
	if got := ToStataTC(0); got != stataEpochOffsetSeconds*1000 {
		t.Fatalf("ToStataTC(0) = %d, want %d", got, stataEpochOffsetSeconds*1000)
	}
}

// TestStataRoundTrip is property P8: decode(encode(t)) == t within 1ms, for
// arbitrary unix seconds.
func TestStataRoundTrip(t *testing.T) {
	cases := []int64{0, 1, -1, 1700000000, -315619200, 315619200, 1893456000}
	for _, unix := range cases {
		tc := ToStataTC(unix)
		back := FromStataTC(tc)
		if back != unix {
			t.Errorf("round trip failed for %d: got %d", unix, back)
		}
	}
}
