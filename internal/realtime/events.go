package realtime

import "encoding/json"

// Client event types sent to the speech service.
const (
	typeSessionUpdate    = "session.update"
	typeInputAudioAppend = "input_audio_buffer.append"
	typeResponseCancel   = "response.cancel"
	typeItemTruncate     = "conversation.item.truncate"
)

// Server event types consumed from the speech service.
const (
	typeSessionCreated         = "session.created"
	typeSessionUpdated         = "session.updated"
	typeResponseCreated        = "response.created"
	typeResponseOutputItem     = "response.output_item.added"
	typeResponseAudioDelta     = "response.audio.delta"
	typeResponseTextDelta      = "response.audio_transcript.delta"
	typeInputTranscriptionDone = "conversation.item.input_audio_transcription.completed"
	typeSpeechStarted          = "input_audio_buffer.speech_started"
	typeSpeechStopped          = "input_audio_buffer.speech_stopped"
	typeResponseDone           = "response.done"
	typeError                  = "error"
)

// sessionUpdateEvent configures the realtime session. Sent exactly once per
// websocket connection, immediately after the socket opens.
type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	TurnDetection      turnDetection       `json:"turn_detection"`
	InputAudioFormat   string              `json:"input_audio_format"`
	OutputAudioFormat  string              `json:"output_audio_format"`
	Voice              string              `json:"voice"`
	Instructions       string              `json:"instructions"`
	Modalities         []string            `json:"modalities"`
	Temperature        float64             `json:"temperature"`
	InputTranscription *inputTranscription `json:"input_audio_transcription,omitempty"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type inputTranscription struct {
	Model string `json:"model"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCancelEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id,omitempty"`
}

type itemTruncateEvent struct {
	Type         string `json:"type"`
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

// serverEvent is the inbound envelope. Only the fields the bridge consumes
// are decoded; unknown event types are ignored upstream.
type serverEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Response   *responseInfo   `json:"response,omitempty"`
	Item       *itemInfo       `json:"item,omitempty"`
	Error      *serverError    `json:"error,omitempty"`
	Session    json.RawMessage `json:"session,omitempty"`
}

type responseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

type itemInfo struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
	Role string `json:"role,omitempty"`
}

func unmarshalEvent(raw []byte, ev *serverEvent) error {
	return json.Unmarshal(raw, ev)
}

type serverError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *serverError) String() string {
	if e == nil {
		return "unknown error"
	}
	s := e.Message
	if e.Code != "" {
		s = e.Code + ": " + s
	}
	return s
}
