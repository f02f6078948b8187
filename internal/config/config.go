// Package config loads the editor engine settings.
//
// Sources are applied in order, later ones winning: built-in defaults, an
// optional YAML file named by IMAGE_EDITOR_CONFIG, then IMAGE_EDITOR_*
// environment variables. A .env file in the working directory is read first
// so its values behave like real environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-editor-mcp/internal/transform"
)

// Environment variable names.
const (
	EnvConfigFile       = "IMAGE_EDITOR_CONFIG"
	EnvMinScale         = "IMAGE_EDITOR_MIN_SCALE"
	EnvMaxScale         = "IMAGE_EDITOR_MAX_SCALE"
	EnvDefaultQuality   = "IMAGE_EDITOR_DEFAULT_QUALITY"
	EnvAcceleration     = "IMAGE_EDITOR_ACCELERATION"
	EnvStrictInvariants = "IMAGE_EDITOR_STRICT_INVARIANTS"
	EnvMaxDecodeBytes   = "IMAGE_EDITOR_MAX_DECODE_BYTES"
	EnvMaxPixels        = "IMAGE_EDITOR_MAX_PIXELS"
	EnvMaxOutputPixels  = "IMAGE_EDITOR_MAX_OUTPUT_PIXELS"
	EnvMaxSessions      = "IMAGE_EDITOR_MAX_SESSIONS"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
)

// Config is the top-level configuration. Default returns a usable value;
// callers override only what they need.
type Config struct {
	// Zoom bounds for every session transform.
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`

	// DefaultQuality is used for lossy exports that do not set one (1-100).
	DefaultQuality int `yaml:"default_quality"`

	// Acceleration enables the parallel renderer when the host supports it.
	Acceleration bool `yaml:"acceleration"`

	// StrictInvariants makes crop invariant violations panic instead of
	// being clamped. Intended for debugging.
	StrictInvariants bool `yaml:"strict_invariants"`

	// Decode limits; 0 disables the limit.
	MaxDecodeBytes int64 `yaml:"max_decode_bytes"`
	MaxPixels      int64 `yaml:"max_pixels"`

	// MaxOutputPixels bounds preview and export sizes (width×height). 0 means
	// the hard buffer cap in package imaging.
	MaxOutputPixels int64 `yaml:"max_output_pixels"`

	// MaxSessions caps concurrently open sessions in the server; 0 = no cap.
	MaxSessions int `yaml:"max_sessions"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns a Config populated with production defaults.
func Default() Config {
	return Config{
		MinScale:       transform.DefaultMinScale,
		MaxScale:       transform.DefaultMaxScale,
		DefaultQuality: 92,
		Acceleration:   true,
		MaxDecodeBytes: 100 << 20,
		MaxPixels:       100_000_000,
		MaxOutputPixels: 50_000_000,
		MaxSessions:     16,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// Limits returns the transform scale bounds.
func (c Config) Limits() transform.Limits {
	return transform.Limits{MinScale: c.MinScale, MaxScale: c.MaxScale}
}

// Validate returns an error if the configuration is inconsistent.
func (c Config) Validate() error {
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DefaultQuality < 1 || c.DefaultQuality > 100 {
		return errors.New("config: DefaultQuality must be between 1 and 100")
	}
	if c.MaxDecodeBytes < 0 || c.MaxPixels < 0 {
		return errors.New("config: decode limits must not be negative")
	}
	if c.MaxOutputPixels < 0 {
		return errors.New("config: MaxOutputPixels must not be negative")
	}
	if c.MaxSessions < 0 {
		return errors.New("config: MaxSessions must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: unknown LogFormat %q", c.LogFormat)
	}
	return nil
}

// Load reads .env files (the working directory's .env when none are named),
// the optional YAML file and the environment, then validates the result.
// A missing ./.env is fine; a named file that cannot be read is an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if len(envFiles) > 0 || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	cfg := Default()
	if path := getEnv(EnvConfigFile, ""); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.MinScale = getFloat(EnvMinScale, cfg.MinScale)
	cfg.MaxScale = getFloat(EnvMaxScale, cfg.MaxScale)
	cfg.DefaultQuality = getInt(EnvDefaultQuality, cfg.DefaultQuality)
	cfg.Acceleration = getBool(EnvAcceleration, cfg.Acceleration)
	cfg.StrictInvariants = getBool(EnvStrictInvariants, cfg.StrictInvariants)
	cfg.MaxDecodeBytes = getInt64(EnvMaxDecodeBytes, cfg.MaxDecodeBytes)
	cfg.MaxPixels = getInt64(EnvMaxPixels, cfg.MaxPixels)
	cfg.MaxOutputPixels = getInt64(EnvMaxOutputPixels, cfg.MaxOutputPixels)
	cfg.MaxSessions = getInt(EnvMaxSessions, cfg.MaxSessions)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	cfg.LogFormat = getEnv(EnvLogFormat, cfg.LogFormat)
}

func getEnv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
