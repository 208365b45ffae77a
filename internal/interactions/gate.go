package interactions

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/michaelhelvey/crabbot/internal/audit"
	"github.com/michaelhelvey/crabbot/internal/platform/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxBodyBytes = 1 << 20
	tracerName          = "github.com/michaelhelvey/crabbot/internal/interactions"

	errSignatureVerification = "Body failed signature verification"
)

type gateConfig struct {
	maxBodyBytes int64
	audit        audit.Logger
	logger       *slog.Logger
	tracer       trace.TracerProvider
}

// GateOption configures Gate.
type GateOption func(*gateConfig)

// WithMaxBodyBytes caps the buffered request body.
func WithMaxBodyBytes(n int64) GateOption {
	return func(c *gateConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithAuditLogger records gate decisions.
func WithAuditLogger(l audit.Logger) GateOption {
	return func(c *gateConfig) {
		if l != nil {
			c.audit = l
		}
	}
}

// WithLogger sets the logger used for rejection detail.
func WithLogger(l *slog.Logger) GateOption {
	return func(c *gateConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the provider for the verification span. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) GateOption {
	return func(c *gateConfig) {
		if tp != nil {
			c.tracer = tp
		}
	}
}

// Gate returns middleware that admits only requests whose body and timestamp
// carry a valid signature. Accepted requests are forwarded with a fresh body
// holding exactly the bytes that were verified.
func Gate(verifier Verifier, opts ...GateOption) func(http.Handler) http.Handler {
	cfg := gateConfig{
		maxBodyBytes: defaultMaxBodyBytes,
		audit:        audit.NopLogger{},
		logger:       slog.Default(),
		tracer:       otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	tracer := cfg.tracer.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := middleware.GetRequestID(ctx)
			record := func(action string, metadata map[string]any) {
				cfg.audit.Log(ctx, audit.Event{
					Action:    action,
					Source:    audit.SourceDiscord,
					RequestID: requestID,
					Metadata:  metadata,
				})
			}

			timestamp, ok := headerValue(r.Header, TimestampHeader)
			if !ok {
				rejectHeader(w, r, cfg.logger, TimestampHeader)
				record(audit.ActionInteractionRejectedHeader, map[string]any{audit.MetadataHeader: TimestampHeader})
				return
			}
			signature, ok := headerValue(r.Header, SignatureHeader)
			if !ok {
				rejectHeader(w, r, cfg.logger, SignatureHeader)
				record(audit.ActionInteractionRejectedHeader, map[string]any{audit.MetadataHeader: SignatureHeader})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, cfg.maxBodyBytes)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					cfg.logger.Warn("interaction body exceeds limit", "limit", tooLarge.Limit, "request_id", requestID)
					writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
				} else {
					cfg.logger.Error("reading interaction body failed", "error", err, "request_id", requestID)
					writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reading request body failed"})
				}
				record(audit.ActionInteractionRejectedBody, map[string]any{audit.MetadataReason: err.Error()})
				return
			}

			_, span := tracer.Start(ctx, "interactions.verify")
			span.SetAttributes(attribute.Int("interaction.body_bytes", len(body)))
			verifyErr := verifier.Verify(signature, timestamp, body)
			if verifyErr != nil {
				span.SetStatus(codes.Error, "signature rejected")
			}
			span.End()

			if verifyErr != nil {
				cfg.logger.Warn("interaction failed signature verification",
					"error", verifyErr,
					"timestamp", timestamp,
					"body_bytes", len(body),
					"request_id", requestID,
				)
				middleware.AddLogField(ctx, "auth", "rejected")
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errSignatureVerification})
				record(audit.ActionInteractionRejectedSignature, map[string]any{audit.MetadataBodyBytes: len(body)})
				return
			}

			cfg.logger.Debug("interaction signature verified", "body_bytes", len(body), "request_id", requestID)
			middleware.AddLogField(ctx, "auth", "verified")
			record(audit.ActionInteractionVerified, map[string]any{audit.MetadataBodyBytes: len(body)})

			forward := r.Clone(ctx)
			forward.Body = io.NopCloser(bytes.NewReader(body))
			forward.ContentLength = int64(len(body))
			forward.Header.Set("Content-Length", strconv.Itoa(len(body)))
			forward.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
			next.ServeHTTP(w, forward)
		})
	}
}

// headerValue returns a present, valid UTF-8 header value.
func headerValue(h http.Header, name string) (string, bool) {
	values := h.Values(name)
	if len(values) == 0 {
		return "", false
	}
	v := values[0]
	if !utf8.ValidString(v) {
		return "", false
	}
	return v, true
}

func rejectHeader(w http.ResponseWriter, r *http.Request, logger *slog.Logger, header string) {
	logger.Warn("interaction rejected", "header", header, "request_id", middleware.GetRequestID(r.Context()))
	middleware.AddLogField(r.Context(), "auth", "missing_header")
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": header + " " + ErrMissingHeader.Error(),
	})
}
