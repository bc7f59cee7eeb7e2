// Package config provides configuration types and loading for loreclaw.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Channels, Providers, Gateway, Session,
// Knowledge, Announcer, Events, Alerts.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Model     ModelConfig     `json:"model"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Gateway   GatewayConfig   `json:"gateway"`
	Session   SessionConfig   `json:"session"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Announcer AnnouncerConfig `json:"announcer"`
	Events    EventsConfig    `json:"events"`
	Alerts    AlertsConfig    `json:"alerts"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// ---------------------------------------------------------------------------
// Model – LLM behaviour
// ---------------------------------------------------------------------------

// ModelConfig groups LLM model and agent-loop settings.
type ModelConfig struct {
	Name          string  `json:"name" envconfig:"MODEL"`
	MaxTokens     int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature   float64 `json:"temperature" envconfig:"TEMPERATURE"`
	MaxConcurrent int     `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
}

// ---------------------------------------------------------------------------
// Channels – messaging integrations
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Enabled     bool     `json:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token       string   `json:"token" envconfig:"TELEGRAM_TOKEN"`
	APIBase     string   `json:"apiBase,omitempty" envconfig:"TELEGRAM_API_BASE"`
	PollTimeout int      `json:"pollTimeout" envconfig:"TELEGRAM_POLL_TIMEOUT"`
	AllowFrom   []string `json:"allowFrom"`
}

// ---------------------------------------------------------------------------
// Providers – LLM API keys & endpoints
// ---------------------------------------------------------------------------

// ProvidersConfig contains LLM provider configurations.
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai"`
	OpenRouter ProviderConfig `json:"openrouter"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
	VLLM       ProviderConfig `json:"vllm"`
}

// ProviderConfig contains settings for a single LLM provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ---------------------------------------------------------------------------
// Gateway – local HTTP surface
// ---------------------------------------------------------------------------

// GatewayConfig contains health endpoint settings.
type GatewayConfig struct {
	Host string `json:"host" envconfig:"HOST"`
	Port int    `json:"port" envconfig:"PORT"`
}

// ---------------------------------------------------------------------------
// Session – long-poll slot acquisition
// ---------------------------------------------------------------------------

// SessionConfig tunes the backoff used while waiting for the polling slot.
type SessionConfig struct {
	BaseDelay   time.Duration `json:"baseDelay" envconfig:"BASE_DELAY"`
	MaxDelay    time.Duration `json:"maxDelay" envconfig:"MAX_DELAY"`
	MaxAttempts int           `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
}

// ---------------------------------------------------------------------------
// Knowledge – website snapshot
// ---------------------------------------------------------------------------

// KnowledgeConfig configures the knowledge base source and refresh cadence.
type KnowledgeConfig struct {
	SourceURL       string        `json:"sourceUrl" envconfig:"SOURCE_URL"`
	RefreshInterval time.Duration `json:"refreshInterval" envconfig:"REFRESH_INTERVAL"`
}

// ---------------------------------------------------------------------------
// Announcer – scheduled broadcast
// ---------------------------------------------------------------------------

// AnnouncerConfig configures the optional fixed-interval broadcast job.
type AnnouncerConfig struct {
	Enabled  bool          `json:"enabled" envconfig:"ENABLED"`
	Interval time.Duration `json:"interval" envconfig:"INTERVAL"`
	ChatID   string        `json:"chatId" envconfig:"CHAT_ID"`
	Message  string        `json:"message" envconfig:"MESSAGE"`
}

// ---------------------------------------------------------------------------
// Events – ops telemetry via Kafka
// ---------------------------------------------------------------------------

// EventsConfig configures the optional Kafka lifecycle-event exporter.
// Disabled unless Brokers is set.
type EventsConfig struct {
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"KAFKA_TOPIC"`
}

// ---------------------------------------------------------------------------
// Alerts – ops notifications via Slack
// ---------------------------------------------------------------------------

// AlertsConfig configures the optional Slack ops notifier.
// Disabled unless SlackToken is set.
type AlertsConfig struct {
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.loreclaw",
		},
		Model: ModelConfig{
			Name:          "gpt-3.5-turbo",
			MaxTokens:     512,
			Temperature:   0.2,
			MaxConcurrent: 4,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:     true,
				PollTimeout: 30,
			},
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1", // Secure default
			Port: 18890,
		},
		Session: SessionConfig{
			BaseDelay:   60 * time.Second,
			MaxDelay:    300 * time.Second,
			MaxAttempts: 10,
		},
		Knowledge: KnowledgeConfig{
			RefreshInterval: 6 * time.Hour,
		},
		Announcer: AnnouncerConfig{
			Enabled:  false,
			Interval: 24 * time.Hour,
		},
		Events: EventsConfig{
			Topic: "loreclaw.events",
		},
	}
}
