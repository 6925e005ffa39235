// Package config loads runtime configuration for a lakenet run.
package config

import "github.com/spf13/viper"

// Config holds all runtime configuration. Values are populated from
// .lakenet.yaml, LAKENET_* env vars, and CLI flags.
type Config struct {
	// SourcePath is the feature database (regions, lakes, rivers).
	SourcePath string `mapstructure:"source_path"`
	// DBPath is the checkpoint/output database.
	DBPath        string `mapstructure:"db_path"`
	ReportPath    string `mapstructure:"report_path"`
	TelemetryPath string `mapstructure:"telemetry_path"`
	// Workers bounds concurrent region processing; commits stay serialized
	// in run order regardless.
	Workers int  `mapstructure:"workers"`
	Verbose bool `mapstructure:"verbose"`

	// Calibration constants, in map units. These are approximations
	// chosen for the source data, not precision guarantees.
	LakeBuffer   float64 `mapstructure:"lake_buffer"`
	RiverBuffer  float64 `mapstructure:"river_buffer"`
	BoundaryBand float64 `mapstructure:"boundary_band"`
	MinPartArea  float64 `mapstructure:"min_part_area"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() Config {
	viper.SetDefault("source_path", "features.db")
	viper.SetDefault("db_path", "lakenet.db")
	viper.SetDefault("report_path", "lakenet.report.toml")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("workers", 1)
	viper.SetDefault("verbose", false)
	viper.SetDefault("lake_buffer", 3.0)
	viper.SetDefault("river_buffer", 7.0)
	viper.SetDefault("boundary_band", 1000.0)
	viper.SetDefault("min_part_area", 1_000_000.0)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
