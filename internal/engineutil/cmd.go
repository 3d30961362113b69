// Package engineutil wires pm25.Config to a cobra/viper command tree, the
// way inmaputil.Cfg wires inmap.VarGridConfig for the teacher's CLI.
package engineutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jakarta-airquality/pm25interp/pm25"
)

// Version is the engine's release version, printed by the version command.
const Version = "0.1.0"

// Cfg holds the command tree and the underlying viper-backed configuration.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, runCmd *cobra.Command
}

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

// InitializeConfig builds the pm25interp command tree, mirroring the
// options-table flag-registration pattern of inmaputil.InitializeConfig.
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "pm25interp",
		Short: "Spatio-temporal PM2.5 interpolation engine for Jakarta kelurahan.",
		Long: `pm25interp turns irregularly timed PM2.5 sensor readings into
per-kelurahan concentration estimates on a regular time grid.

Configuration can be set via command-line flags, a config file (--config),
or environment variables prefixed PM25INTERP_.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version number",
		DisableAutoGenTag: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("pm25interp v%s\n", Version)
		},
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the interpolation engine.",
		Long: `run reads the prepared measurement table and kelurahan shapefile,
interpolates PM2.5 concentrations onto the kelurahan grid for every
complete timestamp, and writes the primary and distance-metrics tables.`,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pmCfg, err := buildEngineConfig(cfg.Viper)
			if err != nil {
				return err
			}
			summary, err := pm25.Run(context.Background(), pmCfg, time.Now())
			if err != nil {
				return err
			}
			logSummary(pmCfg.Logger, summary)
			if summary.PartialSuccess {
				return partialSuccessError{}
			}
			return nil
		},
	}

	cfg.Root.AddCommand(cfg.versionCmd, cfg.runCmd)

	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{name: "config", usage: "path to a TOML configuration file", flagsets: []*pflag.FlagSet{cfg.Root.PersistentFlags()}},
		{name: "input", usage: "path to the prepared measurement table (CSV)", flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "stations", usage: "optional path to a station table overriding sensor coordinates", flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "shapefile", usage: "path to the kelurahan shapefile, without the .shp extension", flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "out", usage: "output directory for the result and distance tables", flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "s-min", usage: "minimum active sensors required to accept a timestamp", defaultVal: 50, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "k", usage: "IDW neighbor cap", defaultVal: 10, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "p", usage: "IDW power", defaultVal: 2.0, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "cell-size-deg", usage: "grid spacing in degrees", defaultVal: 0.005, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "bbox-lon-min", usage: "bounding box western edge (degrees)", defaultVal: pm25.DefaultBBox.LonMin, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "bbox-lon-max", usage: "bounding box eastern edge (degrees)", defaultVal: pm25.DefaultBBox.LonMax, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "bbox-lat-min", usage: "bounding box southern edge (degrees)", defaultVal: pm25.DefaultBBox.LatMin, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "bbox-lat-max", usage: "bounding box northern edge (degrees)", defaultVal: pm25.DefaultBBox.LatMax, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "pm25-cap", usage: "pm25 readings above this (μg/m³) are treated as missing", defaultVal: 500.0, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "interval-tie-policy", usage: "cadence tie resolution: prefer_hourly or prefer_30min", defaultVal: string(pm25.PreferHourly), flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "workers", usage: "concurrent per-timestamp workers (0 = NumCPU-1)", defaultVal: 0, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "task-timeout-seconds", usage: "soft per-timestamp compute budget", defaultVal: 60, flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
		{name: "log-file", usage: "path to the run log file; defaults to the input basename with a timestamp suffix", flagsets: []*pflag.FlagSet{cfg.runCmd.Flags()}},
	}

	cfg.SetEnvPrefix("PM25INTERP")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.String(option.name, v, option.usage)
			case int:
				set.Int(option.name, v, option.usage)
			case float64:
				set.Float64(option.name, v, option.usage)
			case nil:
				set.String(option.name, "", option.usage)
			default:
				panic(fmt.Errorf("engineutil: invalid default type %T for %s", v, option.name))
			}
			cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	return cfg
}

// setConfig reads a config file into cfg if --config was set.
func setConfig(cfg *Cfg) error {
	if cfgPath := cfg.GetString("config"); cfgPath != "" {
		cfg.SetConfigFile(cfgPath)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("engineutil: reading configuration file: %v", err)
		}
	}
	return nil
}

// buildEngineConfig translates the merged viper configuration into a
// pm25.Config, installing a logrus logger that also writes to --log-file
// when one is set or derivable from the input path.
func buildEngineConfig(v *viper.Viper) (pm25.Config, error) {
	c := pm25.DefaultConfig()
	c.InputFile = os.ExpandEnv(v.GetString("input"))
	c.StationFile = os.ExpandEnv(v.GetString("stations"))
	c.ShapefileBase = os.ExpandEnv(v.GetString("shapefile"))
	c.OutputDir = os.ExpandEnv(v.GetString("out"))
	c.SMin = v.GetInt("s-min")
	c.K = v.GetInt("k")
	c.P = v.GetFloat64("p")
	c.CellSizeDeg = v.GetFloat64("cell-size-deg")
	c.BBox = pm25.BBox{
		LonMin: v.GetFloat64("bbox-lon-min"),
		LonMax: v.GetFloat64("bbox-lon-max"),
		LatMin: v.GetFloat64("bbox-lat-min"),
		LatMax: v.GetFloat64("bbox-lat-max"),
	}
	c.PM25Cap = v.GetFloat64("pm25-cap")
	c.IntervalTiePolicy = pm25.IntervalTiePolicy(v.GetString("interval-tie-policy"))
	c.Workers = v.GetInt("workers")
	c.TaskTimeoutSeconds = v.GetInt("task-timeout-seconds")

	log, err := newRunLogger(c.InputFile, v.GetString("log-file"))
	if err != nil {
		return c, err
	}
	c.Logger = log

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// newRunLogger builds a logrus.Logger writing to stderr and to the run's
// log file (spec §6: "log file path mirrors input basename with a
// timestamped suffix").
func newRunLogger(inputFile, explicitLogFile string) (*logrus.Logger, error) {
	path := explicitLogFile
	if path == "" && inputFile != "" {
		path = fmt.Sprintf("%s.%s.log", inputFile, time.Now().Format("20060102T150405"))
	}
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("engineutil: creating log file: %v", err)
		}
		log.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	return log, nil
}

// partialSuccessError signals exit code 1 without itself being
// logged as a failure; the run already logged a warning per dropped
// timestamp and task failure.
type partialSuccessError struct{}

func (partialSuccessError) Error() string { return "run completed with partial success" }

// ExitCode maps a Run error to the CLI exit code convention of spec §6: 0
// success, 2 configuration/input error, 1 partial success, 3 unrecoverable.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch err.(type) {
	case partialSuccessError:
		return 1
	case pm25.ConfigError, pm25.InputShapeError, pm25.GeometryError:
		return 2
	default:
		return 3
	}
}

// logSummary writes the run Summary as a structured log line.
func logSummary(log pm25.Logger, s pm25.Summary) {
	log.WithFields(map[string]interface{}{
		"excludedSensors":      s.ExcludedSensors,
		"excludedRows":         s.ExcludedRows,
		"droppedTimestamps":    s.DroppedTimestamps,
		"acceptedTimestamps":   s.AcceptedTimestamps,
		"taskFailures":         s.TaskFailures,
		"duplicateSensorIDs":   s.DuplicateSensorIDs,
		"degenerateKelurahans": s.DegenerateKelurahans,
		"partialSuccess":       s.PartialSuccess,
	}).Infof("pm25interp: run summary")
}

// marshalForDebug renders v as indented JSON for diagnostic logging of a
// merged configuration.
func marshalForDebug(v interface{}) string {
	b := bytes.NewBuffer(nil)
	e := json.NewEncoder(b)
	e.SetIndent("", "  ")
	_ = e.Encode(v)
	return b.String()
}
