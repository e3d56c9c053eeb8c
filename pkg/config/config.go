package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// LURIEN_SAMPLE_INTERVAL=1ms.
const EnvPrefix = "LURIEN"

// Config holds the configuration for the profiler and its sinks.
// It's populated from defaults, an optional lurien.yaml and the environment.
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	// SampleInterval is the pause between sampler passes; 0 spins.
	SampleInterval time.Duration `mapstructure:"sample_interval"`

	// Output selects the console sink: "text" or "none".
	Output      string `mapstructure:"output"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PprofDir    string `mapstructure:"pprof_dir"`
	OTelEnabled bool   `mapstructure:"otel_enabled"`
	BufferSize  int    `mapstructure:"buffer_size"`

	HotspotThreshold  float64 `mapstructure:"hotspot_threshold"`
	HotspotMinSamples uint64  `mapstructure:"hotspot_min_samples"`

	StatsInterval time.Duration `mapstructure:"stats_interval"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	ReporterPath  string        `mapstructure:"reporter_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("service_name", "unknown-service")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("sample_interval", time.Duration(0))
	v.SetDefault("output", "text")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("pprof_dir", "")
	v.SetDefault("otel_enabled", false)
	v.SetDefault("buffer_size", 100)
	v.SetDefault("hotspot_threshold", 0.0)
	v.SetDefault("hotspot_min_samples", uint64(100))
	v.SetDefault("stats_interval", 10*time.Second)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("reporter_path", "/debug/lurien")
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads lurien.yaml from path (if present) and applies environment
// overrides. An empty path skips the file lookup.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.AddConfigPath(path)
		v.SetConfigName("lurien")
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	switch c.Output {
	case "text", "none":
	default:
		return fmt.Errorf("invalid output %q: must be text or none", c.Output)
	}
	if c.SampleInterval < 0 {
		return fmt.Errorf("sample_interval must not be negative")
	}
	if c.HotspotThreshold < 0 || c.HotspotThreshold > 1 {
		return fmt.Errorf("hotspot_threshold must be between 0 and 1")
	}
	return nil
}
