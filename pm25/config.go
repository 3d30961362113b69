// Package pm25 implements a spatio-temporal interpolation engine that turns
// irregularly timed PM2.5 sensor readings into per-kelurahan concentration
// estimates on a regular time grid.
package pm25

import "fmt"

// IntervalTiePolicy selects how the Cadence Classifier resolves a tie
// between the count of thirty-minute and hourly sensors.
type IntervalTiePolicy string

const (
	// PreferHourly resolves a cadence tie to the 60-minute interval. This is
	// the conservative choice: it imputes fewer points.
	PreferHourly IntervalTiePolicy = "prefer_hourly"
	// Prefer30Min resolves a cadence tie to the 30-minute interval.
	Prefer30Min IntervalTiePolicy = "prefer_30min"
)

// BBox is an axis-aligned geographic bounding box in WGS84 degrees.
type BBox struct {
	LonMin, LonMax, LatMin, LatMax float64
}

// Contains reports whether (lon, lat) falls inside b, inclusive of the
// boundary.
func (b BBox) Contains(lon, lat float64) bool {
	return lon >= b.LonMin && lon <= b.LonMax && lat >= b.LatMin && lat <= b.LatMax
}

// DefaultBBox is the Jakarta study-area bounding box.
var DefaultBBox = BBox{LonMin: 106.0, LonMax: 107.0, LatMin: -7.0, LatMax: -5.4}

// Config holds every tunable parameter of a run. It is built once by the
// caller (the CLI layer or a test) and passed by value into Run; the engine
// itself never reads global or process-wide configuration state.
type Config struct {
	// InputFile is the path to the prepared measurement table (CSV).
	InputFile string
	// StationFile is an optional path to a station table that overrides
	// sensor coordinates by sensor_id. Empty means "not provided".
	StationFile string
	// ShapefileBase is the path to the kelurahan shapefile, without the
	// .shp extension.
	ShapefileBase string
	// OutputDir is the directory results are written to.
	OutputDir string

	// SMin is the minimum number of active sensors required for a
	// timestamp to be accepted. Default 50.
	SMin int
	// K is the IDW neighbor cap. Default 10.
	K int
	// P is the IDW power. Default 2.
	P float64
	// CellSizeDeg is the grid spacing in degrees. Default 0.005.
	CellSizeDeg float64
	// BBox clamps valid sensor coordinates. Default DefaultBBox.
	BBox BBox
	// PM25Cap is the upper rejection threshold for pm25 readings in
	// μg/m³. Default 500.
	PM25Cap float64
	// IntervalTiePolicy resolves a cadence-count tie. Default PreferHourly.
	IntervalTiePolicy IntervalTiePolicy
	// Workers is the number of concurrent per-timestamp workers. A value
	// <= 0 means max(1, runtime.NumCPU()-1).
	Workers int
	// TaskTimeoutSeconds is the soft per-timestamp compute budget. Default 60.
	TaskTimeoutSeconds int

	// Logger receives structured progress and drop-reason log lines. If
	// nil, Run installs a default logrus-backed logger.
	Logger Logger
}

// DefaultConfig returns a Config with every spec-mandated default filled in.
// Paths are left empty; the caller must set them.
func DefaultConfig() Config {
	return Config{
		SMin:               50,
		K:                  10,
		P:                  2,
		CellSizeDeg:        0.005,
		BBox:               DefaultBBox,
		PM25Cap:            500,
		IntervalTiePolicy:  PreferHourly,
		Workers:            0,
		TaskTimeoutSeconds: 60,
	}
}

// Validate checks that c is internally consistent, returning a ConfigError
// describing the first problem found.
func (c Config) Validate() error {
	switch {
	case c.InputFile == "":
		return ConfigError{Msg: "InputFile must be set"}
	case c.ShapefileBase == "":
		return ConfigError{Msg: "ShapefileBase must be set"}
	case c.OutputDir == "":
		return ConfigError{Msg: "OutputDir must be set"}
	case c.SMin < 1:
		return ConfigError{Msg: fmt.Sprintf("SMin must be >= 1, got %d", c.SMin)}
	case c.K < 1:
		return ConfigError{Msg: fmt.Sprintf("K must be >= 1, got %d", c.K)}
	case c.P <= 0:
		return ConfigError{Msg: fmt.Sprintf("P must be > 0, got %g", c.P)}
	case c.CellSizeDeg <= 0:
		return ConfigError{Msg: fmt.Sprintf("CellSizeDeg must be > 0, got %g", c.CellSizeDeg)}
	case c.PM25Cap <= 0:
		return ConfigError{Msg: fmt.Sprintf("PM25Cap must be > 0, got %g", c.PM25Cap)}
	case c.IntervalTiePolicy != PreferHourly && c.IntervalTiePolicy != Prefer30Min:
		return ConfigError{Msg: fmt.Sprintf("unknown IntervalTiePolicy %q", c.IntervalTiePolicy)}
	case c.BBox.LonMin >= c.BBox.LonMax || c.BBox.LatMin >= c.BBox.LatMax:
		return ConfigError{Msg: "BBox is degenerate"}
	}
	return nil
}
