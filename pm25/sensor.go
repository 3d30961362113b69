package pm25

import "math"

// Sensor is a single PM2.5 monitoring station. Its position is immutable
// for the run once loaded.
type Sensor struct {
	ID  string
	Lon float64
	Lat float64
}

// Valid reports whether s has finite coordinates inside box
func (s Sensor) Valid(box BBox) bool {
	return !math.IsNaN(s.Lon) && !math.IsNaN(s.Lat) &&
		!math.IsInf(s.Lon, 0) && !math.IsInf(s.Lat, 0) &&
		box.Contains(s.Lon, s.Lat)
}

// Measurement is one raw (sensor_id, datetime, pm25) reading, with datetime
// held as UTC Unix seconds, converted from the Jakarta local wall-clock input
// (UTC+07:00, no DST — see JakartaOffsetSeconds).
type Measurement struct {
	SensorID string
	Unix     int64
	PM25     float64
	Missing  bool
}

// JakartaOffsetSeconds is the fixed UTC+07:00 offset used to interpret
// input datetimes; Jakarta observes no daylight-saving time.
const JakartaOffsetSeconds = 7 * 3600

// isMissingPM25 applies the sensor-fault and upper-cap conventions from
// spec §3: readings of exactly 0 are a known sensor fault and readings
// above cap are rejected, both treated as missing rather than as values.
func isMissingPM25(v, cap float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	if v == 0 {
		return true
	}
	if v > cap {
		return true
	}
	if v < 0 {
		return true
	}
	return false
}

// LoadResult is the output of the Loader & Validator stage: a
// set of valid sensors keyed by ID, and the measurements that referenced a
// valid sensor.
type LoadResult struct {
	Sensors      map[string]Sensor
	Measurements []Measurement

	ExcludedSensors int // sensors dropped for invalid/missing coordinates
	ExcludedRows    int // measurement rows dropped for referencing no valid sensor
	DuplicateIDs    int // sensor IDs seen more than once with conflicting coordinates
}

// rawMeasurementRow is what the measurement-table reader (io.go) produces
// before sensors have been validated.
type rawMeasurementRow struct {
	SensorID       string
	Lon, Lat       float64
	HasCoordinates bool
	Unix           int64
	PM25           float64
	PM25Present    bool
}

// rawStationRow is an optional station-table override, authoritative for
// location when present (spec §4.1: "coordinate-bearing columns in the
// measurement table are then ignored").
type rawStationRow struct {
	SensorID string
	Lon, Lat float64
}

// LoadAndValidate implements the Loader & Validator stage. rows is the
// parsed measurement table; stations, if non-nil, is the optional station
// table that overrides coordinates by sensor_id.
func LoadAndValidate(rows []rawMeasurementRow, stations []rawStationRow, box BBox, pm25Cap float64, log Logger) (*LoadResult, error) {
	if len(rows) == 0 {
		return nil, InputShapeError{Msg: "measurement table is empty"}
	}

	// First non-null coordinates win per sensor; station table,
	// when given, is authoritative and measurement-table coordinates are
	// ignored entirely.
	firstCoord := make(map[string][2]float64)
	haveCoord := make(map[string]bool)
	duplicates := 0
	conflicted := make(map[string]bool)

	useStations := len(stations) > 0
	if useStations {
		for _, s := range stations {
			if _, ok := haveCoord[s.SensorID]; !ok {
				firstCoord[s.SensorID] = [2]float64{s.Lon, s.Lat}
				haveCoord[s.SensorID] = true
			}
		}
	} else {
		for _, r := range rows {
			if !r.HasCoordinates {
				continue
			}
			if haveCoord[r.SensorID] {
				cur := firstCoord[r.SensorID]
				if (cur[0] != r.Lon || cur[1] != r.Lat) && !conflicted[r.SensorID] {
					conflicted[r.SensorID] = true
					duplicates++
					log.Warnf("sensor %s has conflicting coordinates; keeping first non-null", r.SensorID)
				}
				continue
			}
			firstCoord[r.SensorID] = [2]float64{r.Lon, r.Lat}
			haveCoord[r.SensorID] = true
		}
	}

	sensors := make(map[string]Sensor)
	excludedSensors := 0
	for id, xy := range firstCoord {
		s := Sensor{ID: id, Lon: xy[0], Lat: xy[1]}
		if s.Valid(box) {
			sensors[id] = s
		} else {
			excludedSensors++
		}
	}
	// Sensors referenced by measurement rows but never given coordinates.
	uncoordinated := make(map[string]bool)
	for _, r := range rows {
		if !haveCoord[r.SensorID] && !uncoordinated[r.SensorID] {
			uncoordinated[r.SensorID] = true
			excludedSensors++
		}
	}

	out := make([]Measurement, 0, len(rows))
	excludedRows := 0
	for _, r := range rows {
		if _, ok := sensors[r.SensorID]; !ok {
			excludedRows++
			continue
		}
		m := Measurement{SensorID: r.SensorID, Unix: r.Unix}
		if !r.PM25Present || isMissingPM25(r.PM25, pm25Cap) {
			m.Missing = true
		} else {
			m.PM25 = r.PM25
		}
		out = append(out, m)
	}

	log.WithFields(map[string]interface{}{
		"excludedSensors": excludedSensors,
		"excludedRows":    excludedRows,
		"duplicateIDs":    duplicates,
		"validSensors":    len(sensors),
	}).Infof("loader: validated measurement table")

	return &LoadResult{
		Sensors:         sensors,
		Measurements:    out,
		ExcludedSensors: excludedSensors,
		ExcludedRows:    excludedRows,
		DuplicateIDs:    duplicates,
	}, nil
}
