package interactions_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/michaelhelvey/crabbot/internal/audit"
	"github.com/michaelhelvey/crabbot/internal/interactions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// spyVerifier records calls and returns a fixed result.
type spyVerifier struct {
	calls int
	err   error
}

func (s *spyVerifier) Verify(string, string, []byte) error {
	s.calls++
	return s.err
}

// recordingAudit captures audit events synchronously.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestGate_MissingTimestamp(t *testing.T) {
	spy := &spyVerifier{}
	events := &recordingAudit{}
	handler := interactions.Gate(spy, interactions.WithAuditLogger(events))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`))
	req.Header.Set("X-Signature-Ed25519", "00")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "X-Signature-Timestamp header is not present or is invalid", decodeError(t, rec))
	assert.Zero(t, spy.calls)
	assert.Equal(t, []string{audit.ActionInteractionRejectedHeader}, events.actions())
}

func TestGate_MissingSignature(t *testing.T) {
	spy := &spyVerifier{}
	handler := interactions.Gate(spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`))
	req.Header.Set("X-Signature-Timestamp", testTimestamp)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "X-Signature-Ed25519 header is not present or is invalid", decodeError(t, rec))
	assert.Zero(t, spy.calls)
}

func TestGate_InvalidUTF8Header(t *testing.T) {
	spy := &spyVerifier{}
	handler := interactions.Gate(spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`))
	req.Header.Set("X-Signature-Timestamp", "\xff\xfe")
	req.Header.Set("X-Signature-Ed25519", "00")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "X-Signature-Timestamp header is not present or is invalid", decodeError(t, rec))
	assert.Zero(t, spy.calls)
}

func TestGate_InvalidSignature(t *testing.T) {
	_, pub := testKeyPair(t)
	events := &recordingAudit{}
	handler := interactions.Gate(interactions.NewEd25519Verifier(pub), interactions.WithAuditLogger(events))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1}`))
	req.Header.Set("X-Signature-Timestamp", testTimestamp)
	req.Header.Set("X-Signature-Ed25519", strings.Repeat("ab", 64))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Body failed signature verification", decodeError(t, rec))
	assert.Equal(t, []string{audit.ActionInteractionRejectedSignature}, events.actions())
}

func TestGate_ForwardsVerifiedBody(t *testing.T) {
	priv, pub := testKeyPair(t)
	body := []byte("{\"type\":2,\"data\":{\"id\":\"1\",\"name\":\"caf\xc3\xa9\",\"type\":1}}\n")
	events := &recordingAudit{}

	var forwarded []byte
	var contentLength int64
	handler := interactions.Gate(interactions.NewEd25519Verifier(pub), interactions.WithAuditLogger(events))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var err error
			forwarded, err = io.ReadAll(r.Body)
			require.NoError(t, err)
			contentLength = r.ContentLength
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(string(body)))
	req.Header.Set("X-Signature-Timestamp", testTimestamp)
	req.Header.Set("X-Signature-Ed25519", sign(priv, testTimestamp, body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code, "downstream response is returned unchanged")
	assert.Equal(t, body, forwarded)
	assert.Equal(t, int64(len(body)), contentLength)
	assert.Equal(t, []string{audit.ActionInteractionVerified}, events.actions())
}

func TestGate_BodyTooLarge(t *testing.T) {
	spy := &spyVerifier{}
	handler := interactions.Gate(spy, interactions.WithMaxBodyBytes(8))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{"type":1,"padding":"xxxxxxxx"}`))
	req.Header.Set("X-Signature-Timestamp", testTimestamp)
	req.Header.Set("X-Signature-Ed25519", "00")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body too large", decodeError(t, rec))
	assert.Zero(t, spy.calls)
}

// failingReader errors on the first read.
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestGate_BodyReadFailure(t *testing.T) {
	spy := &spyVerifier{}
	handler := interactions.Gate(spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/interactions", failingReader{})
	req.Header.Set("X-Signature-Timestamp", testTimestamp)
	req.Header.Set("X-Signature-Ed25519", "00")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "reading request body failed", decodeError(t, rec))
	assert.Zero(t, spy.calls)
}

func TestGate_VerifySpan(t *testing.T) {
	priv, pub := testKeyPair(t)
	body := []byte(`{"type":1}`)

	tests := []struct {
		name      string
		signature string
		status    codes.Code
	}{
		{"valid signature", sign(priv, testTimestamp, body), codes.Unset},
		{"bad signature", strings.Repeat("ab", 64), codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			handler := interactions.Gate(interactions.NewEd25519Verifier(pub), interactions.WithTracerProvider(tp))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
			)

			req := httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(string(body)))
			req.Header.Set("X-Signature-Timestamp", testTimestamp)
			req.Header.Set("X-Signature-Ed25519", tt.signature)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "interactions.verify", spans[0].Name())
			assert.Contains(t, spans[0].Attributes(), attribute.Int("interaction.body_bytes", len(body)))
			assert.Equal(t, tt.status, spans[0].Status().Code)
		})
	}
}

func TestGate_NoSpanWhenHeaderMissing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	handler := interactions.Gate(&spyVerifier{}, interactions.WithTracerProvider(tp))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/interactions", strings.NewReader(`{}`)))

	assert.Empty(t, recorder.Ended())
}
