package pm25

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// dateRangePattern extracts the "_{YYYY-MM-DD}_to_{YYYY-MM-DD}" suffix that
// the external preparation stage appends to the measurement table's
// filename, so the engine's own outputs can carry the same date range.
var dateRangePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})_to_(\d{4}-\d{2}-\d{2})`)

// DateRange is the from/to suffix parsed out of the input filename.
type DateRange struct {
	From, To string
}

// ParseDateRange extracts the date range from an input measurement table
// path. If the filename carries no such substring, both fields fall back to
// the current run date so output naming stays well-formed.
func ParseDateRange(path string, now time.Time) DateRange {
	m := dateRangePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		d := now.Format("2006-01-02")
		return DateRange{From: d, To: d}
	}
	return DateRange{From: m[1], To: m[2]}
}

// ResultFilename builds the primary output filename.
func ResultFilename(k int, r DateRange) string {
	return fmt.Sprintf("jakarta_kelurahan_pm25_nmax%d_%s_to_%s.csv", k, r.From, r.To)
}

// DistanceFilename builds the distance-metrics output filename.
func DistanceFilename(r DateRange) string {
	return fmt.Sprintf("jakarta_kelurahan_distances_%s_to_%s.csv", r.From, r.To)
}

// ReadMeasurementTable parses the prepared measurement table (columns
// sensor_id, longitude, latitude, datetime, pm25) into raw rows for
// LoadAndValidate. datetime is parsed as local Jakarta wall-clock time with
// no zone stored, matching the source file convention, then converted to a
// UTC Unix timestamp via the fixed UTC+07:00 offset.
func ReadMeasurementTable(r io.Reader) ([]rawMeasurementRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, InputShapeError{Msg: fmt.Sprintf("reading measurement table header: %v", err)}
	}
	col, err := columnIndex(header, "sensor_id", "longitude", "latitude", "datetime", "pm25")
	if err != nil {
		return nil, err
	}

	var rows []rawMeasurementRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, InputShapeError{Msg: fmt.Sprintf("reading measurement row: %v", err)}
		}

		lon, lonOK := parseFloat(rec[col["longitude"]])
		lat, latOK := parseFloat(rec[col["latitude"]])
		unix, ok := parseJakartaDatetime(rec[col["datetime"]])
		if !ok {
			return nil, InputShapeError{Msg: fmt.Sprintf("unparseable datetime %q", rec[col["datetime"]])}
		}
		pm25, pm25OK := parseFloat(rec[col["pm25"]])

		rows = append(rows, rawMeasurementRow{
			SensorID:       strings.TrimSpace(rec[col["sensor_id"]]),
			Lon:            lon,
			Lat:            lat,
			HasCoordinates: lonOK && latOK,
			Unix:           unix,
			PM25:           pm25,
			PM25Present:    pm25OK,
		})
	}
	return rows, nil
}

// ReadStationTable parses an optional station table (columns sensor_id,
// longitude, latitude) used to override measurement-table coordinates.
func ReadStationTable(r io.Reader) ([]rawStationRow, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, InputShapeError{Msg: fmt.Sprintf("reading station table header: %v", err)}
	}
	col, err := columnIndex(header, "sensor_id", "longitude", "latitude")
	if err != nil {
		return nil, err
	}

	var rows []rawStationRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, InputShapeError{Msg: fmt.Sprintf("reading station row: %v", err)}
		}
		lon, lonOK := parseFloat(rec[col["longitude"]])
		lat, latOK := parseFloat(rec[col["latitude"]])
		if !lonOK || !latOK {
			continue
		}
		rows = append(rows, rawStationRow{
			SensorID: strings.TrimSpace(rec[col["sensor_id"]]),
			Lon:      lon,
			Lat:      lat,
		})
	}
	return rows, nil
}

func columnIndex(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	col := make(map[string]int, len(names))
	for _, name := range names {
		i, ok := idx[name]
		if !ok {
			return nil, InputShapeError{Msg: fmt.Sprintf("missing required column %q", name)}
		}
		col[name] = i
	}
	return col, nil
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// jakartaDatetimeLayouts are the datetime encodings accepted from the
// prepared measurement table.
var jakartaDatetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// parseJakartaDatetime parses a zoneless local-Jakarta timestamp and
// returns the equivalent UTC Unix seconds.
func parseJakartaDatetime(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range jakartaDatetimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Unix() - JakartaOffsetSeconds, true
		}
	}
	return 0, false
}

// WriteResultTable writes the primary per-timestamp, per-kelurahan output
// table.
func WriteResultTable(w io.Writer, rows []ResultRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	header := []string{"KELURAHAN_NAME", "timestamp", "avg_pm25", "min_pm25", "max_pm25", "n_grids", "n_sensors_used", "n_contributing_sensors"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Kelurahan,
			strconv.FormatInt(ToStataTC(r.TimestampUnix), 10),
			strconv.FormatFloat(r.AvgPM25, 'f', 4, 64),
			strconv.FormatFloat(r.MinPM25, 'f', 4, 64),
			strconv.FormatFloat(r.MaxPM25, 'f', 4, 64),
			strconv.Itoa(r.NGrids),
			strconv.Itoa(r.NSensorsUsed),
			strconv.Itoa(r.NContributingSensors),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteDistanceTable writes the representative-timestamp distance-metrics
// table.
func WriteDistanceTable(w io.Writer, rows []DistanceRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	header := []string{"KELURAHAN_NAME", "timestamp_type", "timestamp", "avg_pm25", "min_pm25", "max_pm25",
		"min_distance", "median_distance", "avg_distance", "max_distance",
		"n_grids", "n_sensors_used", "n_contributing_sensors"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Kelurahan,
			string(r.TimestampType),
			strconv.FormatInt(ToStataTC(r.TimestampUnix), 10),
			strconv.FormatFloat(r.AvgPM25, 'f', 4, 64),
			strconv.FormatFloat(r.MinPM25, 'f', 4, 64),
			strconv.FormatFloat(r.MaxPM25, 'f', 4, 64),
			strconv.FormatFloat(r.MinDistanceKM, 'f', 4, 64),
			strconv.FormatFloat(r.MedianDistanceKM, 'f', 4, 64),
			strconv.FormatFloat(r.AvgDistanceKM, 'f', 4, 64),
			strconv.FormatFloat(r.MaxDistanceKM, 'f', 4, 64),
			strconv.Itoa(r.NGrids),
			strconv.Itoa(r.NSensorsUsed),
			strconv.Itoa(r.NContributingSensors),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteWithRetry writes out using writeFunc. Per spec §7 ("retry once to a
// temporary directory; if that also fails, emit final error and exit code
// 3"), a failed write is retried exactly once, against a path under
// os.TempDir() rather than the original path, after the first backoff
// interval from the same github.com/cenkalti/backoff.ExponentialBackOff the
// teacher uses in sr.go for transient job-submission failures. A second
// failure is surfaced as IOWriteError against the original path.
func WriteWithRetry(path string, log Logger, writeFunc func(io.Writer) error) error {
	write := func(p string) error {
		f, err := os.Create(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := writeFunc(f); err != nil {
			return err
		}
		return f.Sync()
	}

	err := write(path)
	if err == nil {
		return nil
	}

	d := backoff.NewExponentialBackOff().NextBackOff()
	retryPath := filepath.Join(os.TempDir(), filepath.Base(path))
	log.Warnf("io: writing %s failed, retrying once in %v to %s: %v", path, d, retryPath, err)
	time.Sleep(d)

	if err := write(retryPath); err != nil {
		return IOWriteError{Path: path, Err: err}
	}
	return nil
}
