package server_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/michaelhelvey/crabbot/internal/interactions"
	"github.com/michaelhelvey/crabbot/internal/platform/server"
	"github.com/michaelhelvey/crabbot/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) (server.Dependencies, ed25519.PrivateKey) {
	t.Helper()
	priv := ed25519.NewKeyFromSeed([]byte("crabbot-server-test-seed-000032!"))
	pub, err := interactions.ParsePublicKey(hex.EncodeToString(priv.Public().(ed25519.PublicKey)))
	require.NoError(t, err)
	return server.Dependencies{
		Verifier: interactions.NewEd25519Verifier(pub),
	}, priv
}

func signedRequest(priv ed25519.PrivateKey, body string) *http.Request {
	const ts = "1730000000"
	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(body))
	req.Header.Set("X-Signature-Timestamp", ts)
	req.Header.Set("X-Signature-Ed25519", hex.EncodeToString(ed25519.Sign(priv, []byte(ts+body))))
	return req
}

func TestServer_HealthCheck(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_HealthText(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestServer_NotFound(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_InteractionsNotMountedWithoutVerifier(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`)))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_InteractionsMethodNotAllowed(t *testing.T) {
	deps, _ := newTestDeps(t)
	srv := server.New(":0", deps)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/interactions", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Interactions_Ping(t *testing.T) {
	deps, priv := newTestDeps(t)
	srv := server.New(":0", deps)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, signedRequest(priv, `{"type":1}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"type":1}`, w.Body.String())
}

func TestServer_Interactions_Command(t *testing.T) {
	var logs bytes.Buffer
	deps, priv := newTestDeps(t)
	deps.Logger = telemetry.NewLogger("info", "json", &logs)
	srv := server.New(":0", deps)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, signedRequest(priv, `{"type":2,"data":{"id":"5","name":"foo","type":1}}`))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Type int `json:"type"`
		Data struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Type)
	assert.Contains(t, resp.Data.Content, "foo")
	assert.Contains(t, logs.String(), `"msg":"http request"`)
}

func TestServer_Interactions_BadSignature(t *testing.T) {
	deps, priv := newTestDeps(t)
	srv := server.New(":0", deps)

	req := signedRequest(priv, `{"type":1}`)
	req.Header.Set("X-Signature-Timestamp", "1730000001")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Body failed signature verification"}`, w.Body.String())
}

func TestServer_Interactions_BodyLimit(t *testing.T) {
	deps, priv := newTestDeps(t)
	deps.MaxBodyBytes = 16
	srv := server.New(":0", deps)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, signedRequest(priv, `{"type":2,"data":{"id":"5","name":"foo","type":1}}`))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv := server.New("127.0.0.1:0", server.Dependencies{})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	cancel()

	err := <-errCh
	assert.NoError(t, err)
}

func TestServer_StartInvalidAddr(t *testing.T) {
	srv := server.New("256.0.0.1:-1", server.Dependencies{})

	err := srv.Start(context.Background())
	assert.Error(t, err)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes and reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServer_StartLogsThroughInjectedLogger(t *testing.T) {
	logs := &syncBuffer{}
	srv := server.New("127.0.0.1:0", server.Dependencies{
		Logger: telemetry.NewLogger("info", "json", logs),
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), `"msg":"server starting"`)
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	assert.Contains(t, logs.String(), `"msg":"server shutting down"`)
}
