// Package config holds iamsync's own settings: where to talk to, where to
// write login profiles and how to log.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = "iamsync.toml"

// Environment variables that override file settings.
const (
	EnvRegion    = "IAMSYNC_REGION"
	EnvProfile   = "IAMSYNC_PROFILE"
	EnvOutputDir = "IAMSYNC_OUTPUT_DIR"
	EnvLogLevel  = "IAMSYNC_LOG_LEVEL"
)

// MinPasswordLength is the shortest console password the default IAM
// password policy accepts. A shorter one would fail after the user was
// already created, and the user would never get a login profile.
const MinPasswordLength = 8

// ErrInvalid indicates settings that cannot be used.
var ErrInvalid = errors.New("invalid settings")

// Settings configures a run.
type Settings struct {
	// Region is the AWS region for STS; IAM is global.
	Region string `toml:"region"`

	// Profile is a named profile from the shared AWS config files.
	Profile string `toml:"profile"`

	// OutputDir receives one login profile record per created user.
	OutputDir string `toml:"output_dir"`

	// PasswordLength is the length of generated console passwords.
	PasswordLength int `toml:"password_length"`

	// ConsoleDomain is the provider domain in console sign-in URLs.
	ConsoleDomain string `toml:"console_domain"`

	// Concurrency is how many users are reconciled at once.
	Concurrency int `toml:"concurrency"`

	// RequestsPerSecond caps identity service calls. Zero disables the cap.
	RequestsPerSecond int `toml:"requests_per_second"`

	// LogLevel is one of trace, debug, info, warn, error, off.
	LogLevel string `toml:"log_level"`
}

// Default returns settings with sensible defaults.
func Default() Settings {
	return Settings{
		Region:            "us-east-1",
		OutputDir:         ".",
		PasswordLength:    8,
		ConsoleDomain:     "aws.amazon.com",
		Concurrency:       1,
		RequestsPerSecond: 10,
		LogLevel:          "info",
	}
}

// Load reads settings from path on top of Default. A missing file is not an
// error when optional is true.
func Load(path string, optional bool) (Settings, error) {
	cfg := Default()

	if _, err := os.Stat(path); err != nil {
		if optional && os.IsNotExist(err) {
			return cfg, nil
		}
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	var raw Settings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Settings{}, fmt.Errorf("%w: %s: unknown keys %s", ErrInvalid, path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("region") {
		cfg.Region = strings.TrimSpace(raw.Region)
	}
	if meta.IsDefined("profile") {
		cfg.Profile = strings.TrimSpace(raw.Profile)
	}
	if meta.IsDefined("output_dir") {
		cfg.OutputDir = strings.TrimSpace(raw.OutputDir)
	}
	if meta.IsDefined("password_length") {
		cfg.PasswordLength = raw.PasswordLength
	}
	if meta.IsDefined("console_domain") {
		cfg.ConsoleDomain = strings.TrimSpace(raw.ConsoleDomain)
	}
	if meta.IsDefined("concurrency") {
		cfg.Concurrency = raw.Concurrency
	}
	if meta.IsDefined("requests_per_second") {
		cfg.RequestsPerSecond = raw.RequestsPerSecond
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}

// ApplyEnv overrides settings from IAMSYNC_* environment variables.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvRegion)); v != "" {
		s.Region = v
	}
	if v := strings.TrimSpace(getenv(EnvProfile)); v != "" {
		s.Profile = v
	}
	if v := strings.TrimSpace(getenv(EnvOutputDir)); v != "" {
		s.OutputDir = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		s.LogLevel = v
	}
}

// Validate reports settings that cannot be used.
func (s Settings) Validate() error {
	var problems []string
	if s.PasswordLength < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password_length %d is below %d", s.PasswordLength, MinPasswordLength))
	}
	if s.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("concurrency %d is below 1", s.Concurrency))
	}
	if s.RequestsPerSecond < 0 {
		problems = append(problems, fmt.Sprintf("requests_per_second %d is negative", s.RequestsPerSecond))
	}
	if s.OutputDir == "" {
		problems = append(problems, "output_dir is empty")
	}
	if s.ConsoleDomain == "" {
		problems = append(problems, "console_domain is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
