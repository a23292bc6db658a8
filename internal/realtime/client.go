// Package realtime is the session adapter for the hosted realtime speech
// service. It owns one websocket per media session, translates the service's
// event stream into Handler callbacks, and hides connection retry from the
// bridge.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dialbridge/dialbridge/internal/logging"
)

// DefaultURL is the speech service endpoint; the model is appended as a
// query parameter.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// telephonyAudioFormat is the narrowband codec used on both legs. Payloads
// pass through the bridge opaquely; no transcoding happens anywhere.
const telephonyAudioFormat = "g711_ulaw"

// inputTranscriptionModel transcribes caller audio so the bridge can log
// user turns.
const inputTranscriptionModel = "whisper-1"

// Config is the canonical session configuration the adapter translates into
// the service's session.update message.
type Config struct {
	URL          string // full websocket URL; DefaultURL + model when empty
	APIKey       string
	Model        string
	Voice        string
	Instructions string

	VADThreshold    float64
	SilenceMs       int
	PrefixPaddingMs int

	Retry RetryPolicy
}

// Handler receives translated session events. Callbacks are invoked from the
// adapter's read goroutine, one at a time, in arrival order.
type Handler interface {
	// OnReady fires after a successful handshake, once the configuration
	// message has been sent. It fires again after every successful reconnect.
	OnReady()
	// OnAudioDelta carries a base64 audio chunk of the assistant's speech.
	OnAudioDelta(audioB64 string)
	// OnTranscriptDelta carries a fragment of the assistant's transcript.
	OnTranscriptDelta(delta string)
	// OnUserTranscript carries one complete, finalized caller utterance.
	OnUserTranscript(text string)
	OnSpeechStarted()
	OnSpeechStopped()
	// OnResponseCreated reports a new assistant response beginning to render.
	OnResponseCreated(responseID string)
	// OnResponseItemAdded reports the message item id of the active response.
	OnResponseItemAdded(itemID string)
	OnResponseDone(responseID string)
	// OnSessionError reports a fatal, unrecoverable session failure. The
	// connection is gone; OnClosed follows.
	OnSessionError(err error)
	OnClosed(code int, reason string)
}

// Client is one adapter connection. The owning media session must Close it
// on teardown; Close is idempotent and sends after Close are no-ops.
type Client struct {
	cfg Config
	h   Handler
	log *logging.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Dial connects to the speech service, sends the session configuration, and
// starts dispatching events to h. The initial connection uses the same
// bounded retry policy as reconnects.
func Dial(ctx context.Context, cfg Config, h Handler, log *logging.Logger) (*Client, error) {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	c := &Client{cfg: cfg, h: h, log: log.Sub("realtime")}

	if err := cfg.Retry.Do(ctx, c.handshake); err != nil {
		return nil, fmt.Errorf("connecting to speech service: %w", err)
	}

	h.OnReady()
	go c.readLoop()
	return c, nil
}

func (c *Client) endpoint() string {
	if c.cfg.URL != "" {
		return c.cfg.URL
	}
	return DefaultURL + "?model=" + c.cfg.Model
}

// handshake performs one full fresh connection attempt: dial, then the single
// session.update for this connection. Used for the initial dial and for every
// reconnect, so a retry never skips configuration.
func (c *Client) handshake() error {
	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		header.Set("OpenAI-Beta", "realtime=v1")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.endpoint(), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	update := sessionUpdateEvent{
		Type: typeSessionUpdate,
		Session: sessionConfig{
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         c.cfg.VADThreshold,
				PrefixPaddingMs:   c.cfg.PrefixPaddingMs,
				SilenceDurationMs: c.cfg.SilenceMs,
			},
			InputAudioFormat:   telephonyAudioFormat,
			OutputAudioFormat:  telephonyAudioFormat,
			Voice:              c.cfg.Voice,
			Instructions:       c.cfg.Instructions,
			Modalities:         []string{"text", "audio"},
			Temperature:        0.8,
			InputTranscription: &inputTranscription{Model: inputTranscriptionModel},
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		conn.Close()
		return fmt.Errorf("sending session.update: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// readLoop reads server events until the connection ends. Abnormal closes
// trigger a bounded reconnect with a fresh handshake; in-flight conversation
// state is not resumed across reconnects.
func (c *Client) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err == nil {
			c.dispatch(raw)
			continue
		}

		if c.isClosed() {
			return
		}

		code, reason := closeDetails(err)
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Debug().Int("code", code).Str("reason", reason).Msg("speech service closed connection")
			c.h.OnClosed(code, reason)
			return
		}

		c.log.Warn().Err(err).Msg("speech service connection lost, reconnecting")
		if rerr := c.cfg.Retry.Do(context.Background(), c.handshake); rerr != nil {
			c.h.OnSessionError(fmt.Errorf("reconnect failed: %w", rerr))
			c.h.OnClosed(code, reason)
			return
		}
		c.h.OnReady()
	}
}

func (c *Client) dispatch(raw []byte) {
	var ev serverEvent
	if err := unmarshalEvent(raw, &ev); err != nil {
		c.log.Warn().Err(err).Msg("malformed server event dropped")
		return
	}

	switch ev.Type {
	case typeResponseAudioDelta:
		c.h.OnAudioDelta(ev.Delta)
	case typeResponseTextDelta:
		c.h.OnTranscriptDelta(ev.Delta)
	case typeInputTranscriptionDone:
		c.h.OnUserTranscript(ev.Transcript)
	case typeSpeechStarted:
		c.h.OnSpeechStarted()
	case typeSpeechStopped:
		c.h.OnSpeechStopped()
	case typeResponseCreated:
		if ev.Response != nil {
			c.h.OnResponseCreated(ev.Response.ID)
		}
	case typeResponseOutputItem:
		if ev.Item != nil {
			c.h.OnResponseItemAdded(ev.Item.ID)
		}
	case typeResponseDone:
		if ev.Response != nil {
			c.h.OnResponseDone(ev.Response.ID)
		}
	case typeError:
		c.log.Warn().Str("error", ev.Error.String()).Msg("speech service error event")
	case typeSessionCreated, typeSessionUpdated:
		c.log.Debug().Str("type", ev.Type).Msg("session event")
	default:
		c.log.Debug().Str("type", ev.Type).Msg("ignoring unknown server event")
	}
}

// AppendAudio forwards one base64 caller audio frame.
func (c *Client) AppendAudio(audioB64 string) error {
	return c.send(audioAppendEvent{Type: typeInputAudioAppend, Audio: audioB64})
}

// CancelResponse asks the service to stop generating the given response.
// Best effort: audio already in flight may still arrive.
func (c *Client) CancelResponse(responseID string) error {
	return c.send(responseCancelEvent{Type: typeResponseCancel, ResponseID: responseID})
}

// TruncateItem cuts the in-flight assistant message at the given playback
// offset so the service's view matches what the caller actually heard.
func (c *Client) TruncateItem(itemID string, audioEndMs int) error {
	return c.send(itemTruncateEvent{
		Type:       typeItemTruncate,
		ItemID:     itemID,
		AudioEndMs: audioEndMs,
	})
}

// send writes one client event. Sends after Close are silent no-ops.
func (c *Client) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return nil
	}
	return c.conn.WriteJSON(v)
}

// Close tears the connection down. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, strings.TrimSpace(err.Error())
}
