package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dialbridge/dialbridge/internal/store"
	"github.com/dialbridge/dialbridge/internal/telephony"
)

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /media", s.handleMedia)
	mux.HandleFunc("POST /twiml", s.handleTwiML)
	mux.HandleFunc("POST /calls", s.handleOriginate)
	mux.HandleFunc("GET /calls", s.handleListCalls)
	mux.HandleFunc("GET /calls/{sid}", s.handleGetCall)
	mux.HandleFunc("DELETE /calls/{sid}", s.handleHangup)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
	UptimeS  int64  `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Sessions: s.sessions.Count(),
		UptimeS:  int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleTwiML serves the stream-connect document for inbound call webhooks.
// Calls originated through POST /calls carry the same document inline.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	doc, err := telephony.StreamTwiML(s.cfg.Server.PublicHost)
	if err != nil {
		s.log.Error().Err(err).Msg("twiml rendering failed")
		writeError(w, http.StatusInternalServerError, "twiml rendering failed")
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write([]byte(doc))
}

// OriginateRequest is the body of POST /calls.
type OriginateRequest struct {
	To     string `json:"to"`
	Prompt string `json:"prompt"`
}

// OriginateResponse is returned on successful call creation.
type OriginateResponse struct {
	CallSID string `json:"callSid"`
	To      string `json:"to"`
	Status  string `json:"status"`
}

// handleOriginate places an outbound call pointed at the media endpoint and
// registers the prompt under the new call SID so the media session can claim
// it when the stream starts.
func (s *Server) handleOriginate(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeError(w, http.StatusServiceUnavailable, "call origination is not configured")
		return
	}

	var req OriginateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	doc, err := telephony.StreamTwiML(s.cfg.Server.PublicHost)
	if err != nil {
		s.log.Error().Err(err).Msg("twiml rendering failed")
		writeError(w, http.StatusInternalServerError, "twiml rendering failed")
		return
	}

	sid, err := s.calls.CreateCall(req.To, doc)
	if err != nil {
		s.log.Error().Err(err).Str("to", req.To).Msg("call origination failed")
		writeError(w, http.StatusBadGateway, "call origination failed")
		return
	}

	// Register the prompt only after the provider accepted the call, so a
	// rejected call never leaves an orphan behind.
	if req.Prompt != "" {
		s.prompts.Store(sid, req.Prompt)
	}
	if s.records != nil {
		if err := s.records.Insert(sid, req.To, s.cfg.Twilio.FromNumber); err != nil {
			s.log.Warn().Err(err).Str("callSid", sid).Msg("call record insert failed")
		}
	}

	s.log.Info().Str("callSid", sid).Str("to", req.To).Msg("call originated")
	writeJSON(w, http.StatusCreated, OriginateResponse{
		CallSID: sid,
		To:      req.To,
		Status:  store.StatusPending,
	})
}

// handleHangup ends a call: provider-side termination plus immediate local
// session teardown if the media stream is live.
func (s *Server) handleHangup(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeError(w, http.StatusServiceUnavailable, "call control is not configured")
		return
	}

	sid := r.PathValue("sid")
	if err := s.calls.EndCall(sid); err != nil {
		s.log.Error().Err(err).Str("callSid", sid).Msg("hangup failed")
		writeError(w, http.StatusBadGateway, "hangup failed")
		return
	}

	if session, ok := s.sessions.FindByCall(sid); ok {
		session.Close()
	}
	// Drop any prompt the stream never claimed.
	s.prompts.Discard(sid)

	writeJSON(w, http.StatusOK, map[string]string{"callSid": sid, "status": "ended"})
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "call records are not configured")
		return
	}

	records, err := s.records.List()
	if err != nil {
		s.log.Error().Err(err).Msg("listing call records failed")
		writeError(w, http.StatusInternalServerError, "listing calls failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": records})
}

// CallDetail is a call record plus live session state when the call's media
// stream is currently connected.
type CallDetail struct {
	store.CallRecord
	Live         bool   `json:"live"`
	SessionState string `json:"sessionState,omitempty"`
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "call records are not configured")
		return
	}

	sid := r.PathValue("sid")
	record, err := s.records.Get(sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "call not found: "+sid)
			return
		}
		s.log.Error().Err(err).Str("callSid", sid).Msg("fetching call record failed")
		writeError(w, http.StatusInternalServerError, "fetching call failed")
		return
	}

	detail := CallDetail{CallRecord: record}
	if session, ok := s.sessions.FindByCall(sid); ok {
		detail.Live = true
		detail.SessionState = session.State().String()
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
