// Package config loads client settings from defaults, YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Zero-remaining policies applied when a code runs out of generations.
const (
	PolicyDisable      = "disable"
	PolicyReturnToCode = "return-to-code"
)

// Config is the runtime configuration of the portrait client.
type Config struct {
	BaseURL             string        `yaml:"base_url" env:"PORTRAIT_BASE_URL" validate:"required,url"`
	CodeLength          int           `yaml:"code_length" env:"PORTRAIT_CODE_LENGTH" validate:"gte=1,lte=64"`
	MaxImageBytes       int64         `yaml:"max_image_bytes" env:"PORTRAIT_MAX_IMAGE_BYTES" validate:"gt=0"`
	GenerateTimeout     time.Duration `yaml:"generate_timeout" env:"PORTRAIT_GENERATE_TIMEOUT" validate:"gt=0"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"PORTRAIT_REQUEST_TIMEOUT" validate:"gt=0"`
	ZeroRemainingPolicy string        `yaml:"zero_remaining_policy" env:"PORTRAIT_ZERO_REMAINING_POLICY" validate:"oneof=disable return-to-code"`
	Locale              string        `yaml:"locale" env:"PORTRAIT_LOCALE" validate:"required"`
	ProgressInterval    time.Duration `yaml:"progress_interval" env:"PORTRAIT_PROGRESS_INTERVAL" validate:"gte=0"`
	DownloadDir         string        `yaml:"download_dir" env:"PORTRAIT_DOWNLOAD_DIR"`
	LogLevel            string        `yaml:"log_level" env:"PORTRAIT_LOG_LEVEL" validate:"oneof=trace debug info warn warning error"`
	LogFormat           string        `yaml:"log_format" env:"PORTRAIT_LOG_FORMAT" validate:"oneof=text json"`
	OTelEndpoint        string        `yaml:"otel_endpoint" env:"PORTRAIT_OTEL_ENDPOINT" validate:"omitempty,url"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		BaseURL:             "http://localhost:5000",
		CodeLength:          8,
		MaxImageBytes:       16 << 20,
		GenerateTimeout:     150 * time.Second,
		RequestTimeout:      30 * time.Second,
		ZeroRemainingPolicy: PolicyReturnToCode,
		Locale:              "en-US",
		ProgressInterval:    4 * time.Second,
		DownloadDir:         ".",
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the process environment, in that order.
func Load(path string) (Config, error) {
	return LoadFrom(path, nil)
}

// LoadFrom is Load with an explicit environment. A nil environ reads the
// process environment.
func LoadFrom(path string, environ map[string]string) (Config, error) {
	cfg := Defaults()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			fields := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid fields: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
