// Package bridge owns the per-call media session: the telephony stream leg,
// the speech-service adapter leg, and the conversation state machine between
// them.
package bridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialbridge/dialbridge/internal/logging"
	"github.com/dialbridge/dialbridge/internal/prompts"
	"github.com/dialbridge/dialbridge/internal/realtime"
)

// State is the media session lifecycle state.
type State int32

const (
	StateAwaitingStart State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting-start"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaConn is the telephony-side connection the session writes to. The
// session serializes all writes under its own lock, satisfying the
// underlying websocket's single-writer requirement.
type MediaConn interface {
	WriteJSON(v any) error
	Close() error
}

// Adapter is the speech-service connection the session drives. Exactly one
// per session; the session exclusively owns it and closes it on teardown.
type Adapter interface {
	AppendAudio(audioB64 string) error
	CancelResponse(responseID string) error
	TruncateItem(itemID string, audioEndMs int) error
	Close() error
}

// AdapterDialer opens a configured adapter for a session. h receives the
// adapter's event stream; the returned Adapter is ready once h.OnReady fires.
type AdapterDialer func(instructions string, h realtime.Handler) (Adapter, error)

// Recorder receives call lifecycle notifications for the call-record store.
type Recorder interface {
	CallStarted(callSID, streamSID string)
	CallEnded(callSID string, turns int)
}

// Config tunes per-session behavior.
type Config struct {
	// DefaultObjective is used when no prompt was registered for the call.
	DefaultObjective string
	// Grace is the delay between end-of-call detection and forced closure.
	Grace time.Duration
	// Marker overrides the end-of-call token; defaults to realtime.EndCallMarker.
	Marker string
}

// Session is one telephony stream paired with one speech-service connection.
//
// Events arrive from two goroutines (the telephony read loop and the adapter
// read loop) with no relative ordering guarantee between them; all mutable
// state is guarded by mu and each handler assumes arbitrary interleaving.
type Session struct {
	ID string

	cfg      Config
	log      *logging.Logger
	prompts  *prompts.Registry
	recorder Recorder
	dial     AdapterDialer

	mu           sync.Mutex
	conn         MediaConn
	adapter      Adapter
	adapterReady bool
	state        State
	streamSID    string
	callSID      string

	assistant *AssistantBuffer
	convo     ConversationLog

	activeResponseID string
	activeItemID     string
	userSpeaking     bool
	interrupted      bool

	// Playback offset tracking for truncation: media timestamps are
	// milliseconds since stream start.
	latestMediaMs   int
	responseStartMs int

	closeOnce  sync.Once
	graceTimer *time.Timer
	onClosed   func(*Session)
}

var _ realtime.Handler = (*Session)(nil)

// NewSession creates a session for a freshly accepted media stream
// connection. onClosed, if non-nil, runs once after final teardown.
func NewSession(conn MediaConn, cfg Config, reg *prompts.Registry, dial AdapterDialer, rec Recorder, log *logging.Logger, onClosed func(*Session)) *Session {
	if cfg.Marker == "" {
		cfg.Marker = realtime.EndCallMarker
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 2 * time.Second
	}
	return &Session{
		ID:        uuid.New().String(),
		cfg:       cfg,
		log:       log.Sub("session"),
		prompts:   reg,
		recorder:  rec,
		dial:      dial,
		conn:      conn,
		assistant: NewAssistantBuffer(cfg.Marker),
		onClosed:  onClosed,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StreamSID returns the telephony stream identifier, once known.
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// CallSID returns the call identifier, once known.
func (s *Session) CallSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callSID
}

// Log returns the committed conversation turns so far.
func (s *Session) Log() []Turn {
	return s.convo.Turns()
}

// HandleTelephonyMessage processes one raw frame from the telephony
// websocket. Malformed frames are logged and dropped; the session continues.
func (s *Session) HandleTelephonyMessage(raw []byte) {
	msg, err := ParseStreamMessage(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("malformed telephony message dropped")
		return
	}

	switch msg.Event {
	case EventConnected:
		s.log.Debug().Msg("telephony stream connected")
	case EventStart:
		s.handleStart(msg.Start)
	case EventMedia:
		s.handleMedia(msg.Media)
	case EventStop:
		s.handleStop()
	case EventMark:
		s.log.Debug().Str("mark", markName(msg.Mark)).Msg("mark acknowledged")
	default:
		s.log.Debug().Str("event", msg.Event).Msg("ignoring unknown telephony event")
	}
}

func markName(m *MarkPayload) string {
	if m == nil {
		return ""
	}
	return m.Name
}

// handleStart runs the ordered start sequence: bind identifiers, claim the
// prompt, compose instructions, open and configure the adapter. Caller audio
// arriving before the adapter is ready is dropped, never queued.
func (s *Session) handleStart(start *StartPayload) {
	if start == nil {
		s.log.Warn().Msg("start event without payload dropped")
		return
	}

	s.mu.Lock()
	if s.state != StateAwaitingStart {
		s.mu.Unlock()
		s.log.Warn().Str("state", s.state.String()).Msg("duplicate start event ignored")
		return
	}
	s.state = StateActive
	s.streamSID = start.StreamSID
	s.callSID = CallSIDFrom(start)
	callSID := s.callSID
	s.log = s.log.WithCall(callSID)
	s.mu.Unlock()

	objective, claimed := "", false
	if callSID != "" {
		objective, claimed = s.prompts.Claim(callSID)
	}
	if !claimed {
		objective = s.cfg.DefaultObjective
		s.log.Warn().Msg("no registered prompt for call, using default objective")
	}

	s.log.Info().
		Str("streamSid", start.StreamSID).
		Bool("promptClaimed", claimed).
		Msg("media stream started")

	adapter, err := s.dial(realtime.ComposeInstructions(objective), s)
	if err != nil {
		s.log.Error().Err(err).Msg("speech service connection failed")
		s.beginClosing(0, "adapter connect failed")
		return
	}

	s.mu.Lock()
	if s.state != StateActive {
		// Torn down while dialing; the adapter must not leak.
		s.mu.Unlock()
		adapter.Close()
		return
	}
	s.adapter = adapter
	s.mu.Unlock()

	if s.recorder != nil && callSID != "" {
		s.recorder.CallStarted(callSID, start.StreamSID)
	}
}

// handleMedia forwards one inbound caller audio frame to the adapter
// verbatim. Frames before the adapter is ready, or outside Active, are
// dropped.
func (s *Session) handleMedia(media *MediaPayload) {
	if media == nil {
		return
	}

	s.mu.Lock()
	if ms, err := strconv.Atoi(media.Timestamp); err == nil {
		s.latestMediaMs = ms
	}
	if s.state != StateActive || !s.adapterReady || s.adapter == nil {
		s.mu.Unlock()
		return
	}
	adapter := s.adapter
	s.mu.Unlock()

	adapter.AppendAudio(media.Payload)
}

// handleStop closes the adapter leg. The telephony socket is left to the
// peer: its close drives the symmetric teardown.
func (s *Session) handleStop() {
	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()

	s.log.Info().Msg("telephony stream stopped")
	if adapter != nil {
		adapter.Close()
	}
}

// OnReady implements realtime.Handler. Fires once per successful adapter
// handshake, after configuration is sent.
func (s *Session) OnReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapterReady = true
	// A reconnect loses any in-flight response; start clean.
	s.activeResponseID = ""
	s.activeItemID = ""
	s.interrupted = false
	s.responseStartMs = 0
	s.log.Debug().Msg("speech service session configured")
}

// OnAudioDelta implements realtime.Handler: assistant audio flows out to the
// telephony side unless the caller interrupted the active response. Forwarding
// continues through Closing so the final sentence can flush, and stops for
// good at Closed.
func (s *Session) OnAudioDelta(audioB64 string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.state == StateAwaitingStart {
		return
	}
	if s.interrupted {
		return
	}
	if s.responseStartMs == 0 {
		s.responseStartMs = s.latestMediaMs
	}
	if err := s.conn.WriteJSON(NewMediaMessage(s.streamSID, audioB64)); err != nil {
		s.log.Debug().Err(err).Msg("outbound media write failed")
	}
}

// OnTranscriptDelta implements realtime.Handler: accumulate assistant text,
// commit at sentence boundaries, and watch for the end-of-call marker.
func (s *Session) OnTranscriptDelta(delta string) {
	s.mu.Lock()
	sentences, endCall := s.assistant.Append(delta)
	s.mu.Unlock()

	for _, sentence := range sentences {
		s.convo.Commit("assistant", sentence)
	}
	if endCall {
		s.log.Info().Msg("end-of-call marker detected")
		s.beginClosing(s.cfg.Grace, "assistant ended call")
	}
}

// OnUserTranscript implements realtime.Handler: caller utterances arrive
// already finalized, so they commit immediately.
func (s *Session) OnUserTranscript(text string) {
	s.convo.Commit("user", text)
}

// OnSpeechStarted implements realtime.Handler: barge-in. Cancel the active
// response, truncate its message at the playback offset, and clear queued
// audio on the telephony side so the caller does not hear stale speech.
func (s *Session) OnSpeechStarted() {
	s.mu.Lock()
	s.userSpeaking = true

	if s.activeResponseID == "" {
		s.mu.Unlock()
		return
	}

	responseID := s.activeResponseID
	itemID := s.activeItemID
	elapsedMs := s.latestMediaMs - s.responseStartMs
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	s.activeResponseID = ""
	s.activeItemID = ""
	s.interrupted = true
	adapter := s.adapter

	// Clear before releasing the lock so no audio delta can slip out between
	// the interruption and the clear.
	if s.state == StateActive || s.state == StateClosing {
		if err := s.conn.WriteJSON(NewClearMessage(s.streamSID)); err != nil {
			s.log.Debug().Err(err).Msg("clear write failed")
		}
	}
	s.mu.Unlock()

	s.log.Info().
		Str("responseId", responseID).
		Int("playbackMs", elapsedMs).
		Msg("caller interrupted active response")

	if adapter != nil {
		adapter.CancelResponse(responseID)
		if itemID != "" {
			adapter.TruncateItem(itemID, elapsedMs)
		}
	}
}

// OnSpeechStopped implements realtime.Handler.
func (s *Session) OnSpeechStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userSpeaking = false
}

// OnResponseCreated implements realtime.Handler.
func (s *Session) OnResponseCreated(responseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeResponseID = responseID
	s.activeItemID = ""
	s.interrupted = false
	s.responseStartMs = 0
}

// OnResponseItemAdded implements realtime.Handler.
func (s *Session) OnResponseItemAdded(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeResponseID != "" {
		s.activeItemID = itemID
	}
}

// OnResponseDone implements realtime.Handler.
func (s *Session) OnResponseDone(responseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if responseID == s.activeResponseID {
		s.activeResponseID = ""
		s.activeItemID = ""
		s.responseStartMs = 0
	}
}

// OnSessionError implements realtime.Handler: the adapter already exhausted
// its retries, so this failure is fatal for the session.
func (s *Session) OnSessionError(err error) {
	s.log.Error().Err(err).Msg("speech service session failed")
}

// OnClosed implements realtime.Handler: the adapter leg is gone; close
// symmetrically.
func (s *Session) OnClosed(code int, reason string) {
	s.log.Info().Int("code", code).Str("reason", reason).Msg("speech service connection closed")
	s.beginClosing(0, "adapter closed")
}

// TelephonyClosed is called by the owning server when the telephony read
// loop ends. The peer is gone, so closure is immediate.
func (s *Session) TelephonyClosed() {
	s.forceClose()
}

// beginClosing transitions to Closing exactly once and schedules the forced
// closure. A positive delay lets final audio flush before teardown.
func (s *Session) beginClosing(delay time.Duration, reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			return
		}
		s.state = StateClosing
		s.mu.Unlock()

		s.log.Info().Dur("grace", delay).Str("reason", reason).Msg("session closing")
		if delay > 0 {
			s.mu.Lock()
			s.graceTimer = time.AfterFunc(delay, s.forceClose)
			s.mu.Unlock()
			return
		}
		s.forceClose()
	})
}

// forceClose releases everything: both connections, the registry entry, and
// the closed-callback. Idempotent; effect-side closes re-enter here and hit
// the closed-already check instead of recursing.
func (s *Session) forceClose() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	adapter := s.adapter
	conn := s.conn
	callSID := s.callSID
	remainder := s.assistant.Flush()
	s.mu.Unlock()

	s.convo.Commit("assistant", remainder)

	if adapter != nil {
		adapter.Close()
	}
	conn.Close()

	if callSID != "" {
		s.prompts.Discard(callSID)
	}
	if s.recorder != nil && callSID != "" {
		s.recorder.CallEnded(callSID, s.convo.Len())
	}
	if s.onClosed != nil {
		s.onClosed(s)
	}

	s.log.Info().Int("turns", s.convo.Len()).Msg("session closed")
}

// Close forces immediate teardown, bypassing any grace delay. Used by server
// shutdown and the emergency stop.
func (s *Session) Close() {
	s.beginClosing(0, "forced close")
	s.forceClose()
}
