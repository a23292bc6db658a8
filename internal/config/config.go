package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 18790,
			Bind: "loopback",
		},
		OpenAI: OpenAIConfig{
			Model:           "gpt-4o-realtime-preview",
			Voice:           "alloy",
			VADThreshold:    0.5,
			SilenceMs:       500,
			PrefixPaddingMs: 300,
		},
		Agent: AgentConfig{
			GraceSeconds: 2,
		},
		Store: StoreConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
