package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/placefinder/internal/faults"
)

// Default file names probed in the working directory when no explicit path
// is given.
const (
	defaultsFileName = "placefinder.defaults.yaml"
	localFileName    = "placefinder.yaml"
)

// Overrides carries explicit, highest-precedence settings, typically from
// CLI flags or constructor arguments. Zero values mean "not set".
type Overrides struct {
	Mode         string
	ModelID      string
	AgentID      string
	AgentAliasID string
	SessionID    string
	Region       string
	Timeout      time.Duration
	ConfigFile   string
	DefaultsFile string
}

// Resolve builds the deployment descriptor from all configuration layers.
// Any coercion or validation failure is returned as a configuration fault;
// nothing is deferred to first use.
func Resolve(ov *Overrides) (*Descriptor, error) {
	if ov == nil {
		ov = &Overrides{}
	}
	cfg := builtinDefaults()

	defaultsPath := ov.DefaultsFile
	if defaultsPath == "" && fileExists(defaultsFileName) {
		defaultsPath = defaultsFileName
	}
	if defaultsPath != "" {
		if err := loadFile(defaultsPath, &cfg); err != nil {
			return nil, faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
				"defaults file: %v", err).WithCause(err)
		}
	}

	localPath := ov.ConfigFile
	if localPath == "" {
		localPath = os.Getenv("PLACEFINDER_CONFIG")
	}
	if localPath == "" && fileExists(localFileName) {
		localPath = localFileName
	}
	if localPath != "" {
		if err := loadFile(localPath, &cfg); err != nil {
			return nil, faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
				"config file: %v", err).WithCause(err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyOverrides(&cfg, ov)

	return buildDescriptor(&cfg)
}

// applyEnv overlays PLACEFINDER_* variables. Empty values count as unset.
// AWS_REGION is honored as a region fallback for compatibility with the
// standard SDK environment.
func applyEnv(cfg *fileConfig) error {
	setString(&cfg.Deployment.Mode, "PLACEFINDER_MODE")
	setString(&cfg.Deployment.ModelID, "PLACEFINDER_MODEL_ID")
	setString(&cfg.Deployment.AgentID, "PLACEFINDER_AGENT_ID")
	setString(&cfg.Deployment.AliasID, "PLACEFINDER_AGENT_ALIAS_ID")
	setString(&cfg.Deployment.SessionID, "PLACEFINDER_SESSION_ID")

	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Deployment.Region = v
	}
	setString(&cfg.Deployment.Region, "PLACEFINDER_REGION")
	setString(&cfg.Deployment.Timeout, "PLACEFINDER_TIMEOUT")

	if v := os.Getenv("PLACEFINDER_TRACING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
				"PLACEFINDER_TRACING: %q is not a boolean", v)
		}
		cfg.Deployment.Tracing = &b
	}

	setString(&cfg.Guardrail.GuardrailID, "PLACEFINDER_GUARDRAIL_ID")
	setString(&cfg.Guardrail.Version, "PLACEFINDER_GUARDRAIL_VERSION")

	setString(&cfg.Weather.BaseURL, "PLACEFINDER_WEATHER_BASE_URL")
	setString(&cfg.Weather.Timeout, "PLACEFINDER_WEATHER_TIMEOUT")

	setString(&cfg.Location.Command, "PLACEFINDER_LOCATION_COMMAND")
	if v := os.Getenv("PLACEFINDER_LOCATION_ARGS"); v != "" {
		cfg.Location.Args = strings.Fields(v)
	}

	setString(&cfg.Observability.OTLPEndpoint, "PLACEFINDER_OTLP_ENDPOINT")
	setString(&cfg.Observability.LogLevel, "PLACEFINDER_LOG_LEVEL")
	setString(&cfg.Observability.LogFormat, "PLACEFINDER_LOG_FORMAT")
	setString(&cfg.Observability.ServiceName, "PLACEFINDER_SERVICE_NAME")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyOverrides(cfg *fileConfig, ov *Overrides) {
	if ov.Mode != "" {
		cfg.Deployment.Mode = ov.Mode
	}
	if ov.ModelID != "" {
		cfg.Deployment.ModelID = ov.ModelID
	}
	if ov.AgentID != "" {
		cfg.Deployment.AgentID = ov.AgentID
	}
	if ov.AgentAliasID != "" {
		cfg.Deployment.AliasID = ov.AgentAliasID
	}
	if ov.SessionID != "" {
		cfg.Deployment.SessionID = ov.SessionID
	}
	if ov.Region != "" {
		cfg.Deployment.Region = ov.Region
	}
	if ov.Timeout != 0 {
		cfg.Deployment.Timeout = ov.Timeout.String()
	}
}

// buildDescriptor coerces and validates the merged layers. The mode decides
// which model selector shape gets populated; the other stays nil.
func buildDescriptor(cfg *fileConfig) (*Descriptor, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(cfg.Deployment.Mode)))
	if !mode.Valid() {
		return nil, faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
			"unknown deployment mode %q (expected local, mcp, or agent)", cfg.Deployment.Mode)
	}

	timeout, err := parseDuration("deployment.timeout", cfg.Deployment.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"deployment.timeout must be positive")
	}

	d := &Descriptor{
		Mode:          mode,
		Region:        cfg.Deployment.Region,
		Timeout:       timeout,
		Guardrail:     cfg.Guardrail,
		Location:      cfg.Location,
		Observability: cfg.Observability,
		UI:            cfg.UI,
	}
	if cfg.Deployment.Tracing != nil {
		d.TracingEnabled = *cfg.Deployment.Tracing
	}
	if d.Region == "" {
		return nil, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"region is required (set PLACEFINDER_REGION or AWS_REGION)")
	}

	switch mode {
	case ModeAgent:
		if cfg.Deployment.AgentID == "" {
			return nil, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
				"agent mode requires an agent id")
		}
		d.Model.Agent = &AgentModel{
			AgentID:   cfg.Deployment.AgentID,
			AliasID:   cfg.Deployment.AliasID,
			SessionID: cfg.Deployment.SessionID,
		}
	default:
		if cfg.Deployment.ModelID == "" {
			return nil, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
				"model id is required")
		}
		d.Model.Direct = &DirectModel{ModelID: cfg.Deployment.ModelID}
	}

	weatherTimeout, err := parseDuration("weather.timeout", cfg.Weather.Timeout)
	if err != nil {
		return nil, err
	}
	d.Weather = WeatherSettings{
		BaseURL:          cfg.Weather.BaseURL,
		UserAgentWeather: cfg.Weather.UserAgentWeather,
		UserAgentAlerts:  cfg.Weather.UserAgentAlerts,
		Timeout:          weatherTimeout,
	}

	fb, err := buildFallback(&cfg.Fallback)
	if err != nil {
		return nil, err
	}
	d.Fallback = fb

	return d, nil
}

func buildFallback(s *fallbackSection) (FallbackSettings, error) {
	var fb FallbackSettings
	var err error

	if s.MaxAttempts < 1 {
		return fb, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"fallback.max_attempts must be at least 1")
	}
	if s.BreakerThreshold < 1 {
		return fb, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"fallback.breaker_threshold must be at least 1")
	}
	fb.MaxAttempts = s.MaxAttempts
	fb.BreakerThreshold = s.BreakerThreshold
	fb.Multiplier = s.Multiplier
	if fb.Multiplier < 1 {
		fb.Multiplier = 1
	}

	if fb.BaseDelay, err = parseDuration("fallback.base_delay", s.BaseDelay); err != nil {
		return fb, err
	}
	if fb.MaxDelay, err = parseDuration("fallback.max_delay", s.MaxDelay); err != nil {
		return fb, err
	}
	if fb.RecoveryTimeout, err = parseDuration("fallback.recovery_timeout", s.RecoveryTimeout); err != nil {
		return fb, err
	}
	if fb.CacheTTL, err = parseDuration("fallback.cache_ttl", s.CacheTTL); err != nil {
		return fb, err
	}
	if fb.StaleTTL, err = parseDuration("fallback.stale_ttl", s.StaleTTL); err != nil {
		return fb, err
	}
	if fb.StaleTTL < fb.CacheTTL {
		return fb, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"fallback.stale_ttl must not be shorter than fallback.cache_ttl")
	}
	return fb, nil
}

// parseDuration accepts Go duration strings and, for compatibility with the
// original flat files, bare integers meaning seconds.
func parseDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
			"%s is required", field)
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
			"%s: %q is not a duration", field, value).WithCause(fmt.Errorf("parse %s: %w", field, err))
	}
	return dur, nil
}
