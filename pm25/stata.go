package pm25

// stataEpochOffsetSeconds is the number of seconds between the Unix epoch
// (1970-01-01 UTC) and the Stata %tc epoch (1960-01-01 UTC).
const stataEpochOffsetSeconds = 315619200

// ToStataTC converts a Unix timestamp (seconds, UTC) to a Stata %tc value:
// milliseconds since 1960-01-01 00:00:00 UTC.
func ToStataTC(unixSeconds int64) int64 {
	return (unixSeconds + stataEpochOffsetSeconds) * 1000
}

// FromStataTC is the inverse of ToStataTC, truncating sub-second precision.
func FromStataTC(tc int64) int64 {
	return tc/1000 - stataEpochOffsetSeconds
}
