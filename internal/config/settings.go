package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings holds the daemon-level options that govern a mooproxy
// process before any per-world file is touched: where its home
// directory lives, which world to run absent an explicit -w, and how
// verbosely it logs. This is a separate, smaller surface from the
// per-world key=value file §6.2 describes; that file is parsed by
// LoadFile, not by viper.
type Settings struct {
	// Home overrides the directory mooproxy treats as its home
	// (normally $HOME), under which .mooproxy/ lives.
	Home string `mapstructure:"home" validate:"omitempty,dirpath"`

	// World is the default world name used when -w/--world is not
	// given on the command line.
	World string `mapstructure:"world"`

	// LogLevel sets the minimum level the daemon logger emits at.
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// MetricsAddr, if non-empty, is the address the private
	// Prometheus registry is served on.
	MetricsAddr string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`

	// DevMode switches the OpenTelemetry trace pipeline from a no-op
	// to a writer-backed exporter and the logger from JSON to text.
	DevMode bool `mapstructure:"dev_mode"`
}

// InitViper configures the package-level viper instance: a config
// file named mooproxy.yaml/.yml searched for at configFile (if given)
// or in the standard locations, plus MOOPROXY_-prefixed environment
// variable overrides. Grounded on the teacher's InitViper, substituting
// the env prefix and search-path basename.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findSettingsFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("mooproxy")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MOOPROXY")
	viper.AutomaticEnv()

	_ = viper.BindEnv("home")
	_ = viper.BindEnv("world")
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("metrics_addr")
	_ = viper.BindEnv("dev_mode")
}

// findSettingsFile searches standard locations for mooproxy.yaml or
// mooproxy.yml, requiring the explicit extension so viper's own
// SetConfigName search never matches the "mooproxy" binary itself.
func findSettingsFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{".", filepath.Join(home, ".mooproxy"), "/etc/mooproxy"}
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "mooproxy"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadSettings reads the daemon config file (if any) and environment
// overrides into a Settings, applying defaults and a validator pass
// mirroring the teacher's config.Validate().
func LoadSettings() (*Settings, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading daemon settings: %w", err)
		}
	}

	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parsing daemon settings: %w", err)
	}

	if s.Home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.Home = home
		}
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid daemon settings: %w", err)
	}

	return &s, nil
}

// SettingsFileUsed returns the path of the daemon config file that was
// loaded, or "" if none was found (environment/defaults only).
func SettingsFileUsed() string {
	return viper.ConfigFileUsed()
}
