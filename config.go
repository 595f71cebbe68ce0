package framework

import (
	"reflect"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from strings with units, such
// as "30s" or "1m30s", in YAML, TOML and environment values.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

// Config holds the orchestrator's own settings. Values can be fed from YAML
// or TOML files and environment variables through feeders.
type Config struct {
	// StopTimeout bounds a full shutdown pass.
	StopTimeout Duration `yaml:"stop_timeout" toml:"stop_timeout" env:"STOP_TIMEOUT"`

	// DrainTimeout bounds the wait for outstanding watched operations
	// before a stop completes. Draining is best effort: expiry is reported,
	// not treated as a failure.
	DrainTimeout Duration `yaml:"drain_timeout" toml:"drain_timeout" env:"DRAIN_TIMEOUT"`

	// ExitOnError terminates the process with a non-zero status after a
	// terminal error. When disabled, the top-level start or stop operation
	// returns the terminal error instead and the caller owns the process's
	// fate.
	ExitOnError bool `yaml:"exit_on_error" toml:"exit_on_error" env:"EXIT_ON_ERROR"`

	// LogLevel configures the default logger: debug, info, warn or error.
	LogLevel string `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{
		StopTimeout:  Duration(30 * time.Second),
		DrainTimeout: Duration(60 * time.Second),
		ExitOnError:  true,
		LogLevel:     "info",
	}
}

// ConfigProvider supplies a configuration value.
type ConfigProvider interface {
	GetConfig() any
}

// StdConfigProvider wraps a static configuration value.
type StdConfigProvider struct {
	cfg any
}

// NewStdConfigProvider creates a provider around the given value.
func NewStdConfigProvider(cfg any) *StdConfigProvider {
	return &StdConfigProvider{cfg: cfg}
}

func (p *StdConfigProvider) GetConfig() any { return p.cfg }

// Feeder populates a configuration struct from one source.
type Feeder interface {
	Feed(target any) error
}

// LoadConfig applies the feeders to target in order, later feeders
// overriding earlier ones. Target must be a non-nil pointer to a struct.
func LoadConfig(target any, feeders ...Feeder) error {
	if target == nil {
		return ErrConfigNil
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return ErrConfigNotPointer
	}
	if v.Elem().Kind() != reflect.Struct {
		return ErrConfigNotStruct
	}
	for _, feeder := range feeders {
		if err := feeder.Feed(target); err != nil {
			return err
		}
	}
	return nil
}
