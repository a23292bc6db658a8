package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTwiML(t *testing.T) {
	out, err := StreamTwiML("bridge.example.com")
	require.NoError(t, err)

	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, out, "<Response>")
	assert.Contains(t, out, "<Connect>")
	assert.Contains(t, out, `url="wss://bridge.example.com/media"`)
}
