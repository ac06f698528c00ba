package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	unset(t, "LLM_PROVIDER", "LLM_TIMEOUT", "STT_PROVIDER", "TTS_PROVIDER", "KAFKA_ENABLED", "KAFKA_BROKERS", "PORT", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_IP_REQUESTS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.STT.Provider != "mock" || cfg.STT.LanguageCode != "en-US" {
		t.Errorf("STT = %+v", cfg.STT)
	}
	if cfg.TTS.Provider != "" {
		t.Errorf("TTS provider = %q, want disabled", cfg.TTS.Provider)
	}
	if cfg.Kafka.Enabled || cfg.Kafka.Topic != "practice.events" {
		t.Errorf("Kafka = %+v", cfg.Kafka)
	}
	if cfg.OTP.TTL != 10*time.Minute || cfg.OTP.MaxAttempts != 5 {
		t.Errorf("OTP = %+v", cfg.OTP)
	}
	if cfg.RateLimit.Requests != 20 || cfg.RateLimit.IPRequests != 100 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")
	t.Setenv("TTS_PROVIDER", "gemini")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "gemini" || cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if strings.Join(cfg.Kafka.Brokers, ",") != "a:9092,b:9092" {
		t.Errorf("Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.RateLimit.Requests != 20 {
		t.Errorf("bad int should fall back, got %d", cfg.RateLimit.Requests)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:   "8080",
			DBPath: "x.db",
			LLM:    LLMConfig{Provider: "openai", OpenAIKey: "k", Timeout: time.Second},
			STT:    STTConfig{Provider: "mock", MaxAudioBytes: 1},
			OTP:    OTPConfig{TTL: time.Minute, MaxAttempts: 5},
			RateLimit: RateLimitConfig{
				Requests:   1,
				IPRequests: 1,
				Window:     time.Second,
			},
			ConversationLog: ConversationLogConfig{Dir: "d", GlobalPath: "g", QueueSize: 1},
		}
	}
	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing openai key", func(c *Config) { c.LLM.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "llama" }, "LLM_PROVIDER"},
		{"unknown stt", func(c *Config) { c.STT.Provider = "azure" }, "STT_PROVIDER"},
		{"tts without key", func(c *Config) { c.TTS.Provider = "gemini" }, "GEMINI_API_KEY"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true }, "KAFKA_BROKERS"},
		{"empty port", func(c *Config) { c.Port = "" }, "PORT"},
		{"zero ip budget", func(c *Config) { c.RateLimit.IPRequests = 0 }, "RATE_LIMIT_IP_REQUESTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	if !(&Config{}).IsDevelopment() {
		t.Error("empty FRONTEND_URL should be development")
	}
	if (&Config{FrontendURL: "https://parley.app"}).IsDevelopment() {
		t.Error("public URL should not be development")
	}
}

// unset removes keys for the duration of the test. t.Setenv records the
// original value so it is restored on cleanup.
func unset(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}
