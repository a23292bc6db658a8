package bridge

import (
	"encoding/json"
	"fmt"
)

// Telephony control-plane event kinds, both directions.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
	EventClear     = "clear"
)

// StreamMessage is the envelope for every frame on the media stream
// websocket. The Event field discriminates which payload is present.
type StreamMessage struct {
	Event          string        `json:"event"`
	SequenceNumber string        `json:"sequenceNumber,omitempty"`
	StreamSID      string        `json:"streamSid,omitempty"`
	Start          *StartPayload `json:"start,omitempty"`
	Media          *MediaPayload `json:"media,omitempty"`
	Mark           *MarkPayload  `json:"mark,omitempty"`
	Stop           *StopPayload  `json:"stop,omitempty"`
}

// StartPayload arrives once, when the telephony platform begins streaming.
type StartPayload struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid,omitempty"`
	AccountSID       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	MediaFormat      map[string]any    `json:"mediaFormat,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaPayload carries one base64 audio frame. Timestamp is milliseconds
// since stream start, as a decimal string.
type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkPayload acknowledges a previously sent mark.
type MarkPayload struct {
	Name string `json:"name"`
}

// StopPayload arrives when the telephony platform stops streaming.
type StopPayload struct {
	CallSID string `json:"callSid,omitempty"`
}

// ParseStreamMessage decodes one inbound frame.
func ParseStreamMessage(raw []byte) (StreamMessage, error) {
	var msg StreamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return StreamMessage{}, fmt.Errorf("parsing stream message: %w", err)
	}
	if msg.Event == "" {
		return StreamMessage{}, fmt.Errorf("stream message missing event kind")
	}
	return msg, nil
}

// NewMediaMessage builds an outbound audio frame for the given stream.
func NewMediaMessage(streamSID, payloadB64 string) StreamMessage {
	return StreamMessage{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaPayload{Payload: payloadB64},
	}
}

// NewClearMessage builds the signal that discards queued-but-unplayed audio
// on the telephony side. This, not response cancellation, is what actually
// stops stale speech after an interruption.
func NewClearMessage(streamSID string) StreamMessage {
	return StreamMessage{
		Event:     EventClear,
		StreamSID: streamSID,
	}
}

// CallSIDFrom resolves the externally meaningful call identity from a start
// payload: the platform-supplied call SID when present, else the custom
// parameter set at origination.
func CallSIDFrom(start *StartPayload) string {
	if start == nil {
		return ""
	}
	if start.CallSID != "" {
		return start.CallSID
	}
	return start.CustomParameters["callSid"]
}
