package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialbridge/dialbridge/internal/bridge"
	"github.com/dialbridge/dialbridge/internal/config"
	"github.com/dialbridge/dialbridge/internal/logging"
	"github.com/dialbridge/dialbridge/internal/realtime"
	"github.com/dialbridge/dialbridge/internal/store"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

// fakeCallAPI records originate/hangup requests.
type fakeCallAPI struct {
	nextSID   string
	createErr error
	endErr    error
	created   []string
	ended     []string
}

func (f *fakeCallAPI) CreateCall(to, twiml string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, to)
	if f.nextSID == "" {
		return "CA0000", nil
	}
	return f.nextSID, nil
}

func (f *fakeCallAPI) EndCall(sid string) error {
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, sid)
	return nil
}

// fakeAdapter satisfies bridge.Adapter and signals readiness synchronously.
type fakeAdapter struct {
	mu           sync.Mutex
	instructions string
	appended     []string
	closed       bool
}

func (f *fakeAdapter) AppendAudio(audioB64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, audioB64)
	return nil
}

func (f *fakeAdapter) CancelResponse(string) error    { return nil }
func (f *fakeAdapter) TruncateItem(string, int) error { return nil }

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAdapter) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

func (f *fakeAdapter) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeAdapter) gotInstructions() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instructions
}

func fakeDialer(adapter *fakeAdapter) bridge.AdapterDialer {
	return func(instructions string, h realtime.Handler) (bridge.Adapter, error) {
		adapter.mu.Lock()
		adapter.instructions = instructions
		adapter.mu.Unlock()
		h.OnReady()
		return adapter, nil
	}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Server.PublicHost = "bridge.test"
	cfg.Twilio.FromNumber = "+15550000000"
	return cfg
}

func testServer(t *testing.T, opts ...ServerOption) (*Server, *httptest.Server) {
	t.Helper()
	s := New(testConfig(), testLogger(), opts...)
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	ts := httptest.NewServer(withMiddleware(mux, s.log))
	t.Cleanup(ts.Close)
	return s, ts
}

func testStore(t *testing.T) *store.CallStore {
	t.Helper()
	db, err := store.Open(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewCallStore(db)
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Sessions)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTwiMLEndpoint(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Post(ts.URL+"/twiml", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/xml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "wss://bridge.test/media")
}

func TestOriginateRegistersPrompt(t *testing.T) {
	api := &fakeCallAPI{nextSID: "CA123"}
	s, ts := testServer(t, WithCallAPI(api), WithCallStore(testStore(t)))

	body, _ := json.Marshal(OriginateRequest{To: "+15551234567", Prompt: "Book a table for two."})
	resp, err := http.Post(ts.URL+"/calls", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out OriginateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "CA123", out.CallSID)
	assert.Equal(t, store.StatusPending, out.Status)

	prompt, ok := s.Prompts().Claim("CA123")
	require.True(t, ok)
	assert.Equal(t, "Book a table for two.", prompt)
}

func TestOriginateMissingTo(t *testing.T) {
	_, ts := testServer(t, WithCallAPI(&fakeCallAPI{}))

	resp, err := http.Post(ts.URL+"/calls", "application/json", strings.NewReader(`{"prompt":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOriginateProviderFailure(t *testing.T) {
	api := &fakeCallAPI{createErr: fmt.Errorf("provider rejected")}
	s, ts := testServer(t, WithCallAPI(api))

	body, _ := json.Marshal(OriginateRequest{To: "+15551234567", Prompt: "x"})
	resp, err := http.Post(ts.URL+"/calls", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 0, s.Prompts().Len())
}

func TestOriginateWithoutCallAPI(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Post(ts.URL+"/calls", "application/json", strings.NewReader(`{"to":"+1555"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHangup(t *testing.T) {
	api := &fakeCallAPI{}
	s, ts := testServer(t, WithCallAPI(api))
	s.Prompts().Store("CA42", "unclaimed")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/calls/CA42", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"CA42"}, api.ended)
	assert.Equal(t, 0, s.Prompts().Len())
}

func TestGetCallNotFound(t *testing.T) {
	_, ts := testServer(t, WithCallStore(testStore(t)))

	resp, err := http.Get(ts.URL + "/calls/CA404")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListCalls(t *testing.T) {
	cs := testStore(t)
	require.NoError(t, cs.Insert("CA1", "+15551", "+15550"))
	require.NoError(t, cs.Insert("CA2", "+15552", "+15550"))

	_, ts := testServer(t, WithCallStore(cs))

	resp, err := http.Get(ts.URL + "/calls")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Calls []store.CallRecord `json:"calls"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Calls, 2)
}

func dialMedia(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/media"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMediaStreamSessionLifecycle(t *testing.T) {
	adapter := &fakeAdapter{}
	s, ts := testServer(t, WithAdapterDialer(fakeDialer(adapter)))
	s.Prompts().Store("CA77", "Order a large pizza.")

	conn := dialMedia(t, ts)

	start := map[string]any{
		"event": "start",
		"start": map[string]any{
			"streamSid": "MZ77",
			"callSid":   "CA77",
		},
	}
	require.NoError(t, conn.WriteJSON(start))

	require.Eventually(t, func() bool {
		sess, ok := s.Sessions().FindByCall("CA77")
		return ok && sess.State() == bridge.StateActive && adapter.gotInstructions() != ""
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, adapter.gotInstructions(), "Order a large pizza.")

	media := map[string]any{
		"event": "media",
		"media": map[string]any{"timestamp": "120", "payload": "c29tZWF1ZGlv"},
	}
	require.NoError(t, conn.WriteJSON(media))

	require.Eventually(t, func() bool {
		return adapter.appendCount() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "c29tZWF1ZGlv", adapter.appended[0])

	// Peer closes the stream; the session tears down and leaves the registry.
	conn.Close()
	require.Eventually(t, func() bool {
		return s.Sessions().Count() == 0
	}, time.Second, 10*time.Millisecond)
	assert.True(t, adapter.isClosed())
}

func TestResolveBindAddr(t *testing.T) {
	cases := []struct {
		bind string
		host string
		want string
	}{
		{"loopback", "", "127.0.0.1:18790"},
		{"lan", "", "0.0.0.0:18790"},
		{"custom", "10.0.0.5", "10.0.0.5:18790"},
		{"custom", "", "0.0.0.0:18790"},
		{"", "", "127.0.0.1:18790"},
	}
	for _, tc := range cases {
		cfg := config.ServerConfig{Port: 18790, Bind: tc.bind, CustomBindHost: tc.host}
		assert.Equal(t, tc.want, resolveBindAddr(cfg), "bind=%s", tc.bind)
	}
}
