package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadSettingsAppliesDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", s.LogLevel, "info")
	}
	if s.Home == "" {
		t.Error("Home should default to the user's home directory")
	}
}

func TestLoadSettingsRejectsBadLogLevel(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("log_level", "verbose")

	if _, err := LoadSettings(); err == nil {
		t.Fatal("expected an error for an invalid log_level")
	}
}

func TestLoadSettingsHonorsExplicitValues(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("world", "myworld")
	viper.Set("log_level", "debug")
	viper.Set("metrics_addr", "127.0.0.1:9090")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.World != "myworld" {
		t.Errorf("World = %q, want %q", s.World, "myworld")
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", s.LogLevel, "debug")
	}
	if s.MetricsAddr != "127.0.0.1:9090" {
		t.Errorf("MetricsAddr = %q, want %q", s.MetricsAddr, "127.0.0.1:9090")
	}
}

func TestLoadSettingsRejectsBadMetricsAddr(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("metrics_addr", "not-a-host-port")

	if _, err := LoadSettings(); err == nil {
		t.Fatal("expected an error for an invalid metrics_addr")
	}
}
