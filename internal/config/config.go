// Package config resolves the layered deployment configuration into an
// immutable Descriptor.
//
// Precedence, highest to lowest: explicit overrides, process environment,
// optional local file, optional defaults file, built-in constants. Type
// coercion and range validation happen at resolve time so a bad deployment
// fails before the first request, not during one.
package config

import (
	"time"
)

// Mode selects the deployment variant. It determines which model handle and
// which tool set a client instance is built with.
type Mode string

const (
	// ModeLocal runs direct Bedrock inference with in-process weather tools
	// plus location tools discovered from the MCP subprocess.
	ModeLocal Mode = "local"

	// ModeMCP is the same engine as ModeLocal exposed as an MCP stdio server.
	ModeMCP Mode = "mcp"

	// ModeAgent delegates conversation to a remote Bedrock agent runtime.
	// Location capability lives in the agent's action groups, so only
	// weather tools are registered locally.
	ModeAgent Mode = "agent"
)

// Valid reports whether m is a recognized deployment mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeLocal, ModeMCP, ModeAgent:
		return true
	}
	return false
}

// DirectModel identifies a model for direct Bedrock inference.
type DirectModel struct {
	ModelID string
}

// AgentModel identifies a remote Bedrock agent. SessionID is optional; when
// empty a fresh session is implied per invocation.
type AgentModel struct {
	AgentID   string
	AliasID   string
	SessionID string
}

// ModelSelector holds exactly one of the two model shapes. Which one is
// populated is decided by the deployment mode during Resolve; no other code
// assigns these fields.
type ModelSelector struct {
	Direct *DirectModel
	Agent  *AgentModel
}

// GuardrailSettings is the optional content policy applied to direct
// inference calls. A zero GuardrailID disables the guardrail entirely.
type GuardrailSettings struct {
	GuardrailID       string `yaml:"guardrail_id"`
	Version           string `yaml:"version"`
	ContentFiltering  bool   `yaml:"content_filtering"`
	PIIDetection      bool   `yaml:"pii_detection"`
	ToxicityDetection bool   `yaml:"toxicity_detection"`
}

// Enabled reports whether a guardrail policy is configured.
func (g GuardrailSettings) Enabled() bool {
	return g.GuardrailID != ""
}

// WeatherSettings configures the National Weather Service API client.
type WeatherSettings struct {
	BaseURL          string
	UserAgentWeather string
	UserAgentAlerts  string
	Timeout          time.Duration
}

// LocationSettings describes how to launch the location tool provider
// subprocess.
type LocationSettings struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// FallbackSettings tunes the orchestration wrapped around tool execution.
type FallbackSettings struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	Multiplier       float64
	MaxDelay         time.Duration
	BreakerThreshold int
	RecoveryTimeout  time.Duration
	CacheTTL         time.Duration
	StaleTTL         time.Duration
}

// ObservabilitySettings configures logging, tracing, and metrics.
type ObservabilitySettings struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	Development  bool   `yaml:"development"`
}

// UISettings holds the interactive CLI strings.
type UISettings struct {
	AppTitle       string   `yaml:"app_title"`
	WelcomeMessage string   `yaml:"welcome_message"`
	PromptText     string   `yaml:"prompt_text"`
	ExitCommands   []string `yaml:"exit_commands"`
}

// Descriptor is the resolved deployment descriptor. It is built once per
// client instance and never mutated afterwards.
type Descriptor struct {
	Mode           Mode
	Model          ModelSelector
	Region         string
	Timeout        time.Duration
	TracingEnabled bool

	Guardrail     GuardrailSettings
	Weather       WeatherSettings
	Location      LocationSettings
	Fallback      FallbackSettings
	Observability ObservabilitySettings
	UI            UISettings
}

// Built-in constants, the lowest layer of the precedence chain.
const (
	DefaultMode    = ModeLocal
	DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultAliasID = "TSTALIASID"
	DefaultRegion  = "us-east-1"
	DefaultTimeout = 30 * time.Second
	DefaultNWSBase = "https://api.weather.gov"
)

// fileConfig mirrors the on-disk yaml layout. Durations are strings in the
// file and coerced during descriptor construction.
type fileConfig struct {
	Deployment    deploymentSection     `yaml:"deployment"`
	Guardrail     GuardrailSettings     `yaml:"guardrail"`
	Weather       weatherSection        `yaml:"weather"`
	Location      LocationSettings      `yaml:"location"`
	Fallback      fallbackSection       `yaml:"fallback"`
	Observability ObservabilitySettings `yaml:"observability"`
	UI            UISettings            `yaml:"ui"`
}

type deploymentSection struct {
	Mode      string `yaml:"mode"`
	ModelID   string `yaml:"model_id"`
	AgentID   string `yaml:"agent_id"`
	AliasID   string `yaml:"agent_alias_id"`
	SessionID string `yaml:"session_id"`
	Region    string `yaml:"region"`
	Timeout   string `yaml:"timeout"`
	Tracing   *bool  `yaml:"tracing"`
}

type weatherSection struct {
	BaseURL          string `yaml:"base_url"`
	UserAgentWeather string `yaml:"user_agent_weather"`
	UserAgentAlerts  string `yaml:"user_agent_alerts"`
	Timeout          string `yaml:"timeout"`
}

type fallbackSection struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelay        string  `yaml:"base_delay"`
	Multiplier       float64 `yaml:"multiplier"`
	MaxDelay         string  `yaml:"max_delay"`
	BreakerThreshold int     `yaml:"breaker_threshold"`
	RecoveryTimeout  string  `yaml:"recovery_timeout"`
	CacheTTL         string  `yaml:"cache_ttl"`
	StaleTTL         string  `yaml:"stale_ttl"`
}

func builtinDefaults() fileConfig {
	tracing := true
	return fileConfig{
		Deployment: deploymentSection{
			Mode:    string(DefaultMode),
			ModelID: DefaultModelID,
			AliasID: DefaultAliasID,
			Region:  DefaultRegion,
			Timeout: DefaultTimeout.String(),
			Tracing: &tracing,
		},
		Guardrail: GuardrailSettings{
			Version:           "DRAFT",
			ContentFiltering:  true,
			PIIDetection:      true,
			ToxicityDetection: true,
		},
		Weather: weatherSection{
			BaseURL:          DefaultNWSBase,
			UserAgentWeather: "PlaceFinderWeather/1.0",
			UserAgentAlerts:  "PlaceFinderAlerts/1.0",
			Timeout:          "10s",
		},
		Location: LocationSettings{
			Command: "uvx",
			Args:    []string{"awslabs.aws-location-mcp-server@latest"},
		},
		Fallback: fallbackSection{
			MaxAttempts:      3,
			BaseDelay:        "1s",
			Multiplier:       2.0,
			MaxDelay:         "30s",
			BreakerThreshold: 5,
			RecoveryTimeout:  "60s",
			CacheTTL:         "5m",
			StaleTTL:         "15m",
		},
		Observability: ObservabilitySettings{
			ServiceName: "placefinder",
			LogLevel:    "info",
			LogFormat:   "json",
		},
		UI: UISettings{
			AppTitle:       "PlaceFinder & Weather",
			WelcomeMessage: "Ask about locations, routes, nearby places, or weather conditions.",
			PromptText:     "How can I help you? ",
			ExitCommands:   []string{"exit", "quit"},
		},
	}
}
