package interactions

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/michaelhelvey/crabbot/internal/audit"
	"github.com/michaelhelvey/crabbot/internal/platform/middleware"
)

// Handler serves verified interaction requests.
type Handler struct {
	audit  audit.Logger
	logger *slog.Logger
}

// NewHandler creates an interaction handler. A nil audit logger disables
// auditing.
func NewHandler(auditLogger audit.Logger, logger *slog.Logger) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{audit: auditLogger, logger: logger}
}

// HandleInteraction decodes the request body and writes the dispatched
// response. It must sit behind Gate.
func (h *Handler) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("reading verified body failed", "error", err, "request_id", requestID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reading request body failed"})
		return
	}

	interaction, err := Decode(body)
	if err != nil {
		message := "invalid interaction payload"
		if errors.Is(err, ErrUnknownInteractionType) {
			message = ErrUnknownInteractionType.Error()
		}
		h.logger.Warn("decoding interaction failed", "error", err, "request_id", requestID)
		h.audit.Log(ctx, audit.Event{
			Action:    audit.ActionInteractionDecodeFailed,
			Source:    audit.SourceDiscord,
			RequestID: requestID,
			Metadata:  map[string]any{audit.MetadataReason: err.Error()},
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
		return
	}

	resp := Dispatch(interaction)

	metadata := map[string]any{
		audit.MetadataInteractionType: int(interaction.Type()),
		audit.MetadataResponseType:    int(resp.Type),
	}
	if cmd, ok := interaction.(ApplicationCommand); ok {
		metadata[audit.MetadataCommandName] = cmd.Name
		h.logger.Info("received application command", "name", cmd.Name, "id", cmd.ID, "request_id", requestID)
	}
	middleware.AddLogField(ctx, "interaction_type", strconv.Itoa(int(interaction.Type())))

	payload, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("encoding interaction response failed", "error", err, "request_id", requestID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "encoding response failed"})
		return
	}

	h.audit.Log(ctx, audit.Event{
		Action:    audit.ActionInteractionDispatched,
		Source:    audit.SourceDiscord,
		RequestID: requestID,
		Metadata:  metadata,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
