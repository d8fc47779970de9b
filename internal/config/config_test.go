package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}

	if cfg.DBPath != "./fg.db" {
		t.Errorf("DBPath = %q, want ./fg.db", cfg.DBPath)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.Development() {
		t.Error("default environment should be production")
	}
	if cfg.DebugEnabled() {
		t.Error("debug should default to the development flag (false)")
	}
	if diff := cmp.Diff([]string{"*"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("AllowedOrigins mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnv_DebugDefaultsToDevelopment(t *testing.T) {
	t.Setenv("FG_ENV", "development")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if !cfg.DebugEnabled() {
		t.Error("expected debug on in development when FG_DEBUG is unset")
	}
	if cfg.EffectiveLogLevel() != "debug" {
		t.Errorf("EffectiveLogLevel = %q, want debug", cfg.EffectiveLogLevel())
	}
}

func TestFromEnv_ExplicitDebugWins(t *testing.T) {
	t.Setenv("FG_ENV", "development")
	t.Setenv("FG_DEBUG", "false")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.DebugEnabled() {
		t.Error("FG_DEBUG=false should override development default")
	}
}

func TestFromEnv_TelemetryConfig(t *testing.T) {
	t.Setenv("FG_ENV", "development")
	t.Setenv("FG_DISABLE_IN_DEV", "true")
	t.Setenv("FG_SINK_A_ID", "G-TEST")
	t.Setenv("FG_SINK_B_CONTAINER_ID", "GTM-TEST")
	t.Setenv("FG_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}

	tc := cfg.Telemetry()
	if tc.SinkAID != "G-TEST" || tc.SinkBContainerID != "GTM-TEST" {
		t.Errorf("unexpected sink ids: %+v", tc)
	}
	if !tc.DisableInDev || !tc.Development {
		t.Errorf("expected disable-in-dev and development flags: %+v", tc)
	}
	if tc.Debug == nil || !*tc.Debug {
		t.Error("expected debug resolved to true")
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad environment", "FG_ENV", "staging"},
		{"bad port", "FG_PORT", "70000"},
		{"bad endpoint", "FG_SINK_A_ENDPOINT", "not a url"},
		{"bad log format", "FG_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := FromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestPublicURL(t *testing.T) {
	cfg := &Config{Port: 9090}
	if got := cfg.PublicURL(); got != "http://localhost:9090" {
		t.Errorf("PublicURL() = %q, want local address", got)
	}

	cfg.ServerURL = "https://fg.example.com/"
	if got := cfg.PublicURL(); got != "https://fg.example.com" {
		t.Errorf("PublicURL() = %q, want trimmed server URL", got)
	}
}
