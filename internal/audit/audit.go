package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a single auditable interaction outcome.
type Event struct {
	ID         uuid.UUID
	Action     string // e.g. "interaction.rejected_signature"
	Source     string // "discord", "system"
	RequestID  string
	OccurredAt time.Time
	Metadata   map[string]any
}

const (
	ActionInteractionRejectedHeader    = "interaction.rejected_header"
	ActionInteractionRejectedSignature = "interaction.rejected_signature"
	ActionInteractionRejectedBody      = "interaction.rejected_body"
	ActionInteractionVerified          = "interaction.verified"
	ActionInteractionDecodeFailed      = "interaction.decode_failed"
	ActionInteractionDispatched        = "interaction.dispatched"
)

const (
	MetadataHeader          = "header"
	MetadataBodyBytes       = "body_bytes"
	MetadataInteractionType = "interaction_type"
	MetadataResponseType    = "response_type"
	MetadataCommandName     = "command_name"
	MetadataReason          = "reason"
)

const SourceDiscord = "discord"

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// Sink receives batches of events. The slice is reused after Write returns.
type Sink interface {
	Write(ctx context.Context, events []Event) error
}
