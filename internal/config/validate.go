package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	if strings.Contains(cfg.Server.PublicHost, "://") {
		issues = append(issues, ValidationIssue{
			Path:    "server.publicHost",
			Message: "must be a bare host[:port], without a scheme",
		})
	}

	if cfg.OpenAI.VADThreshold < 0 || cfg.OpenAI.VADThreshold > 1 {
		issues = append(issues, ValidationIssue{
			Path:    "openai.vadThreshold",
			Message: fmt.Sprintf("must be in [0,1], got %v", cfg.OpenAI.VADThreshold),
		})
	}

	if cfg.Agent.GraceSeconds < 0 || cfg.Agent.GraceSeconds > 30 {
		issues = append(issues, ValidationIssue{
			Path:    "agent.graceSeconds",
			Message: fmt.Sprintf("must be 0-30, got %d", cfg.Agent.GraceSeconds),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	// Credentials are only required when the control surface will actually
	// originate calls; serve still validates them up front to fail fast.
	if cfg.Twilio.AccountSID != "" || cfg.Twilio.AuthToken != "" || cfg.Twilio.FromNumber != "" {
		if cfg.Twilio.AccountSID == "" {
			issues = append(issues, ValidationIssue{Path: "twilio.accountSid", Message: "required when twilio is configured"})
		}
		if cfg.Twilio.AuthToken == "" {
			issues = append(issues, ValidationIssue{Path: "twilio.authToken", Message: "required when twilio is configured"})
		}
		if cfg.Twilio.FromNumber == "" {
			issues = append(issues, ValidationIssue{Path: "twilio.fromNumber", Message: "required when twilio is configured"})
		}
	}

	return issues
}
