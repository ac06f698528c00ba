// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	DBPath          string
	LogLevel        string
	LLM             LLMConfig
	STT             STTConfig
	TTS             TTSConfig
	Kafka           KafkaConfig
	OTP             OTPConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// LLMConfig selects and configures the chat completion provider.
type LLMConfig struct {
	Provider    string // "openai" or "gemini"
	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string
	Timeout     time.Duration
}

// STTConfig configures transcription.
type STTConfig struct {
	Provider      string // "google" or "mock"
	LanguageCode  string
	SampleRateHz  int
	AudioEncoding string
	MaxAudioBytes int64
}

// TTSConfig configures speech synthesis. An empty Provider disables it.
type TTSConfig struct {
	Provider string // "gemini" or ""
	Model    string
	Voice    string
}

// KafkaConfig configures practice event publishing.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// OTPConfig configures email passcodes.
type OTPConfig struct {
	TTL           time.Duration
	MaxAttempts   int
	SweepInterval time.Duration
}

// RateLimitConfig bounds requests to the model-backed endpoints. Requests is
// the per-learner budget; IPRequests caps everything from one client IP.
type RateLimitConfig struct {
	Requests   int
	IPRequests int
	Window     time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/parley.db"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LLM: LLMConfig{
			Provider:    strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 30*time.Second),
		},
		STT: STTConfig{
			Provider:      strings.ToLower(getEnv("STT_PROVIDER", "mock")),
			LanguageCode:  getEnv("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:  getEnvInt("STT_SAMPLE_RATE_HZ", 0),
			AudioEncoding: getEnv("STT_AUDIO_ENCODING", ""),
			MaxAudioBytes: int64(getEnvInt("STT_MAX_AUDIO_BYTES", 10<<20)),
		},
		TTS: TTSConfig{
			Provider: strings.ToLower(getEnv("TTS_PROVIDER", "")),
			Model:    getEnv("TTS_MODEL", ""),
			Voice:    getEnv("TTS_VOICE", ""),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "practice.events"),
		},
		OTP: OTPConfig{
			TTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
			SweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			Requests:   getEnvInt("RATE_LIMIT_REQUESTS", 20),
			IPRequests: getEnvInt("RATE_LIMIT_IP_REQUESTS", 100),
			Window:     getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if c.LLM.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be openai or gemini, got %q", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	switch c.STT.Provider {
	case "google", "mock":
	default:
		return fmt.Errorf("STT_PROVIDER must be google or mock, got %q", c.STT.Provider)
	}
	if c.STT.MaxAudioBytes <= 0 {
		return fmt.Errorf("STT_MAX_AUDIO_BYTES must be > 0")
	}
	switch c.TTS.Provider {
	case "", "gemini":
	default:
		return fmt.Errorf("TTS_PROVIDER must be gemini or empty, got %q", c.TTS.Provider)
	}
	if c.TTS.Provider == "gemini" && c.LLM.GeminiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when TTS_PROVIDER=gemini")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.OTP.TTL <= 0 || c.OTP.MaxAttempts <= 0 {
		return fmt.Errorf("OTP_TTL and OTP_MAX_ATTEMPTS must be > 0")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.IPRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS, RATE_LIMIT_IP_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
