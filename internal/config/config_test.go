package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/placefinder/internal/faults"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "placefinder.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv neutralizes ambient configuration so tests see only what they set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PLACEFINDER_CONFIG", "PLACEFINDER_MODE", "PLACEFINDER_MODEL_ID",
		"PLACEFINDER_AGENT_ID", "PLACEFINDER_AGENT_ALIAS_ID", "PLACEFINDER_SESSION_ID",
		"PLACEFINDER_REGION", "PLACEFINDER_TIMEOUT", "PLACEFINDER_TRACING",
		"AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func TestResolveBuiltinDefaults(t *testing.T) {
	clearEnv(t)

	d, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Mode != ModeLocal {
		t.Errorf("default mode = %s, want local", d.Mode)
	}
	if d.Model.Direct == nil || d.Model.Direct.ModelID != DefaultModelID {
		t.Errorf("expected default direct model, got %+v", d.Model)
	}
	if d.Model.Agent != nil {
		t.Errorf("agent selector must be nil in local mode")
	}
	if d.Region != DefaultRegion {
		t.Errorf("region = %s, want %s", d.Region, DefaultRegion)
	}
	if d.Timeout != DefaultTimeout {
		t.Errorf("timeout = %s, want %s", d.Timeout, DefaultTimeout)
	}
	if !d.TracingEnabled {
		t.Errorf("tracing should default to enabled")
	}
	if d.Fallback.MaxAttempts != 3 || d.Fallback.BreakerThreshold != 5 {
		t.Errorf("unexpected fallback defaults: %+v", d.Fallback)
	}
}

func TestResolveFileOverridesBuiltins(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
deployment:
  mode: local
  model_id: anthropic.claude-3-haiku-20240307-v1:0
  region: eu-west-1
  timeout: 45s
weather:
  base_url: https://weather.example.test
`)

	d, err := Resolve(&Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Model.Direct.ModelID != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("model id not taken from file: %s", d.Model.Direct.ModelID)
	}
	if d.Region != "eu-west-1" {
		t.Errorf("region = %s, want eu-west-1", d.Region)
	}
	if d.Timeout != 45*time.Second {
		t.Errorf("timeout = %s, want 45s", d.Timeout)
	}
	if d.Weather.BaseURL != "https://weather.example.test" {
		t.Errorf("weather base url = %s", d.Weather.BaseURL)
	}
	// Untouched sections keep their built-ins.
	if d.Weather.Timeout != 10*time.Second {
		t.Errorf("weather timeout = %s, want 10s", d.Weather.Timeout)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
deployment:
  region: eu-west-1
  timeout: 45s
`)
	t.Setenv("PLACEFINDER_REGION", "ap-southeast-2")
	t.Setenv("PLACEFINDER_TIMEOUT", "90s")

	d, err := Resolve(&Overrides{ConfigFile: path})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Region != "ap-southeast-2" {
		t.Errorf("env should beat file: region = %s", d.Region)
	}
	if d.Timeout != 90*time.Second {
		t.Errorf("env should beat file: timeout = %s", d.Timeout)
	}
}

func TestResolveOverridesBeatEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLACEFINDER_REGION", "ap-southeast-2")

	d, err := Resolve(&Overrides{Region: "us-west-2", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Region != "us-west-2" {
		t.Errorf("explicit override should beat env: region = %s", d.Region)
	}
	if d.Timeout != 5*time.Second {
		t.Errorf("timeout = %s, want 5s", d.Timeout)
	}
}

func TestResolveAWSRegionFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_REGION", "ca-central-1")

	d, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Region != "ca-central-1" {
		t.Errorf("AWS_REGION fallback not honored: %s", d.Region)
	}

	t.Setenv("PLACEFINDER_REGION", "sa-east-1")
	d, err = Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Region != "sa-east-1" {
		t.Errorf("PLACEFINDER_REGION should beat AWS_REGION: %s", d.Region)
	}
}

func TestResolveUnknownModeFails(t *testing.T) {
	clearEnv(t)

	_, err := Resolve(&Overrides{Mode: "hybrid"})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
	var rec *faults.Record
	if !errors.As(err, &rec) || rec.Category != faults.CategoryConfiguration {
		t.Errorf("expected configuration fault, got %v", err)
	}
}

func TestResolveAgentModeRequiresAgentID(t *testing.T) {
	clearEnv(t)

	if _, err := Resolve(&Overrides{Mode: "agent"}); err == nil {
		t.Fatal("expected error for agent mode without agent id")
	}

	d, err := Resolve(&Overrides{Mode: "agent", AgentID: "AGENT123"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Model.Agent == nil || d.Model.Agent.AgentID != "AGENT123" {
		t.Errorf("expected agent selector, got %+v", d.Model)
	}
	if d.Model.Direct != nil {
		t.Errorf("direct selector must be nil in agent mode")
	}
	if d.Model.Agent.AliasID != DefaultAliasID {
		t.Errorf("alias id = %s, want default %s", d.Model.Agent.AliasID, DefaultAliasID)
	}
}

func TestResolveRejectsBadValues(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric timeout", map[string]string{"PLACEFINDER_TIMEOUT": "soon"}},
		{"zero timeout", map[string]string{"PLACEFINDER_TIMEOUT": "0"}},
		{"bad tracing flag", map[string]string{"PLACEFINDER_TRACING": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Resolve(nil); err == nil {
				t.Errorf("expected resolution failure")
			}
		})
	}
}

func TestResolveRejectsUnknownFileFields(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
deployment:
  mode: local
  extra_knob: true
`)

	if _, err := Resolve(&Overrides{ConfigFile: path}); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestResolveBareSecondsTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLACEFINDER_TIMEOUT", "120")

	d, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Timeout != 120*time.Second {
		t.Errorf("timeout = %s, want 120s", d.Timeout)
	}
}

func TestResolveStaleTTLValidation(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
fallback:
  max_attempts: 3
  base_delay: 1s
  multiplier: 2.0
  max_delay: 30s
  breaker_threshold: 5
  recovery_timeout: 60s
  cache_ttl: 10m
  stale_ttl: 5m
`)

	if _, err := Resolve(&Overrides{ConfigFile: path}); err == nil {
		t.Fatal("expected error when stale_ttl < cache_ttl")
	}
}
