// Package config loads service configuration from an optional YAML file
// layered under environment variables. Environment variables use the VOICE_
// prefix with "__" as the section separator, e.g. VOICE_SERVER__PORT=9000.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Twilio    TwilioConfig    `koanf:"twilio"`
	Tracker   TrackerConfig   `koanf:"tracker"`
	Call      CallConfig      `koanf:"call"`
	LiveTest  LiveTestConfig  `koanf:"livetest"`
	SelfTest  SelfTestConfig  `koanf:"selftest"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// BaseURL is the externally reachable URL webhook callbacks are built
	// from, e.g. an ngrok tunnel in development.
	BaseURL string `koanf:"base_url"`
	// RequestTimeout is the deadline applied to call-control and webhook
	// requests. The /testing routes are exempt; a full test run or live
	// call test outlasts any reasonable value here.
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type AnthropicConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

type TwilioConfig struct {
	AccountSID  string `koanf:"account_sid"`
	AuthToken   string `koanf:"auth_token"`
	PhoneNumber string `koanf:"phone_number"`
}

type TrackerConfig struct {
	// SessionTTL is how long a session may sit idle (no appended turn)
	// before the janitor expires it. Zero disables expiry.
	SessionTTL time.Duration `koanf:"session_ttl"`
}

type CallConfig struct {
	// ConfidenceThreshold is the minimum speech-recognition confidence for
	// an utterance to be forwarded to the responder.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	// ListenTimeout is how long the telephony provider waits for a
	// follow-up utterance, in seconds.
	ListenTimeout int `koanf:"listen_timeout"`
}

type LiveTestConfig struct {
	// MinExchanges is the number of agent/customer exchange pairs after
	// which the live-call test stops waiting and scores the transcript.
	MinExchanges int `koanf:"min_exchanges"`
	// MaxWait is the overall deadline for a live-call test.
	MaxWait time.Duration `koanf:"max_wait"`
	// PollInterval is how often the tracker is inspected while waiting.
	PollInterval time.Duration `koanf:"poll_interval"`
}

type SelfTestConfig struct {
	MaxIterations int     `koanf:"max_iterations"`
	TargetScore   float64 `koanf:"target_score"`
	PersonaCount  int     `koanf:"persona_count"`
	// SimulatedTurns is the round budget for each simulated conversation.
	SimulatedTurns int `koanf:"simulated_turns"`
}

// Load reads configuration from the optional file at path (may be empty) and
// overlays VOICE_-prefixed environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("VOICE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "VOICE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	k.Set("server.port", 8080)
	k.Set("server.base_url", "http://localhost:8080")
	k.Set("server.request_timeout", "60s")
	k.Set("anthropic.model", "claude-opus-4-1-20250805")
	k.Set("tracker.session_ttl", "30m")
	k.Set("call.confidence_threshold", 0.3)
	k.Set("call.listen_timeout", 8)
	k.Set("livetest.min_exchanges", 3)
	k.Set("livetest.max_wait", "5m")
	k.Set("livetest.poll_interval", "5s")
	k.Set("selftest.max_iterations", 5)
	k.Set("selftest.target_score", 85)
	k.Set("selftest.persona_count", 5)
	k.Set("selftest.simulated_turns", 8)
}
