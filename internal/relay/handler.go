package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/graphql"
	"github.com/cchalm/guarded-chat/internal/history"
	"github.com/cchalm/guarded-chat/internal/publish"
	"github.com/cchalm/guarded-chat/internal/telemetry"
)

// Flusher exports buffered telemetry
type Flusher interface {
	ForceFlush(ctx context.Context) error
}

// Handler is the entry point for a conversation turn event
type Handler struct {
	relay   *Relay
	flusher Flusher
	base    http.RoundTripper
	logger  *slog.Logger
}

// NewHandler creates a handler. base is the transport used for store requests and may be nil.
func NewHandler(relay *Relay, flusher Flusher, base http.RoundTripper, logger *slog.Logger) *Handler {
	return &Handler{
		relay:   relay,
		flusher: flusher,
		base:    base,
		logger:  logger,
	}
}

// Handle relays one turn. An event that cannot be decoded is reported to the caller because there is no conversation
// to notify; every other failure is handled by the relay.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) error {
	ev, err := event.Decode(raw)
	if err != nil {
		h.logger.ErrorContext(ctx, "rejected turn event", "err", err)
		return err
	}

	turnID := telemetry.NewTurnID()
	attrs := []any{
		"turnId", turnID,
		"conversationId", ev.ConversationID,
		"messageId", ev.CurrentMessageID,
		"streamResponse", ev.StreamResponse,
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		attrs = append(attrs, "requestId", lc.AwsRequestID)
	}
	h.logger.InfoContext(ctx, "relaying turn", attrs...)

	client := graphql.NewClient(ev.GraphQLAPIEndpoint, ev.Authorization(), graphql.NewUserAgent(ev.UserAgentHeader()), h.base)
	h.relay.Run(ctx, Turn{
		ID:      turnID,
		Event:   ev,
		History: history.NewRetriever(client, ev),
		Sender:  publish.NewSender(client, ev),
	})

	if err := h.flusher.ForceFlush(ctx); err != nil {
		h.logger.WarnContext(ctx, "failed to flush telemetry", "err", err)
	}
	return nil
}
