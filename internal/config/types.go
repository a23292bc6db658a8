package config

// Config is the root configuration for dialbridge.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Twilio  TwilioConfig  `yaml:"twilio,omitempty"`
	OpenAI  OpenAIConfig  `yaml:"openai,omitempty"`
	Agent   AgentConfig   `yaml:"agent,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP/WebSocket server.
type ServerConfig struct {
	Port           int    `yaml:"port,omitempty"`
	Bind           string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string `yaml:"customBindHost,omitempty"`

	// PublicHost is the externally reachable host[:port] Twilio uses to open
	// the media stream websocket (e.g. an ngrok or deployment hostname).
	PublicHost string `yaml:"publicHost,omitempty"`
}

// TwilioConfig holds telephony provider credentials and call defaults.
type TwilioConfig struct {
	AccountSID string `yaml:"accountSid,omitempty"`
	AuthToken  string `yaml:"authToken,omitempty"`
	FromNumber string `yaml:"fromNumber,omitempty"`
}

// OpenAIConfig holds speech-service credentials and session parameters.
type OpenAIConfig struct {
	APIKey string `yaml:"apiKey,omitempty"`
	Model  string `yaml:"model,omitempty"`
	Voice  string `yaml:"voice,omitempty"`

	// VADThreshold tunes server-side turn detection sensitivity (0..1).
	VADThreshold float64 `yaml:"vadThreshold,omitempty"`
	// SilenceMs is how long the caller must be quiet before a turn ends.
	SilenceMs int `yaml:"silenceMs,omitempty"`
	// PrefixPaddingMs is audio included before detected speech.
	PrefixPaddingMs int `yaml:"prefixPaddingMs,omitempty"`
}

// AgentConfig controls per-call conversation behavior.
type AgentConfig struct {
	// DefaultObjective is used when a media session starts before (or without)
	// a prompt being registered for its call.
	DefaultObjective string `yaml:"defaultObjective,omitempty"`
	// GraceSeconds is the delay between end-of-call detection and forced
	// closure, letting the final sentence finish playing.
	GraceSeconds int `yaml:"graceSeconds,omitempty"`
}

// StoreConfig controls the call-record database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file path, ":memory:" for ephemeral
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
