package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := Defaults()

	cfg.Server.Port = -1
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "server.port")

	cfg.Server.Port = 70000
	issues = Validate(&cfg)
	assert.NotEmpty(t, issues)
}

func TestValidate_ValidBinds(t *testing.T) {
	for _, bind := range []string{"loopback", "lan", "custom", ""} {
		cfg := Defaults()
		cfg.Server.Bind = bind
		assert.Empty(t, Validate(&cfg), "bind %q should be valid", bind)
	}
}

func TestValidate_InvalidBind(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Bind = "everywhere"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "server.bind")
}

func TestValidate_PublicHostRejectsScheme(t *testing.T) {
	cfg := Defaults()
	cfg.Server.PublicHost = "wss://bridge.example.com"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "server.publicHost")

	cfg.Server.PublicHost = "bridge.example.com:443"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_VADThresholdRange(t *testing.T) {
	cfg := Defaults()
	cfg.OpenAI.VADThreshold = 1.5
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "openai.vadThreshold")

	cfg.OpenAI.VADThreshold = 1.0
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_GraceSecondsRange(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.GraceSeconds = 31
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "agent.graceSeconds")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "logging.level")
}

func TestValidate_TwilioAllOrNothing(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))

	cfg.Twilio.AccountSID = "AC123"
	issues := Validate(&cfg)
	assert.Len(t, issues, 2)

	cfg.Twilio.AuthToken = "tok"
	cfg.Twilio.FromNumber = "+15550001111"
	assert.Empty(t, Validate(&cfg))
}
