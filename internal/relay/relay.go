// Package relay streams an assistant response for one conversation turn from the model to the conversation store.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/inference"
	"github.com/cchalm/guarded-chat/internal/publish"
	"github.com/cchalm/guarded-chat/internal/telemetry"
)

const (
	noResponseText    = "No response generated"
	errorResponseText = "Sorry, there was an error processing your request."
)

// HistoryRetriever returns the messages preceding the turn, ending with the message awaiting a response
type HistoryRetriever interface {
	Retrieve(ctx context.Context) ([]chat.Message, error)
}

// ResponseSender publishes the assistant response to the conversation store
type ResponseSender interface {
	SendChunk(ctx context.Context, chunk publish.Chunk) error
	SendResponse(ctx context.Context, content []chat.TextBlock) error
}

// Turn bundles a turn event with the collaborators that serve it
type Turn struct {
	ID      string
	Event   event.TurnEvent
	History HistoryRetriever
	Sender  ResponseSender
}

type Relay struct {
	model     inference.Provider
	guardrail *inference.Guardrail
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a relay. guardrail may be nil to disable safety filtering.
func New(model inference.Provider, guardrail *inference.Guardrail, tracer trace.Tracer, logger *slog.Logger) *Relay {
	return &Relay{
		model:     model,
		guardrail: guardrail,
		tracer:    tracer,
		logger:    logger,
		now:       time.Now,
	}
}

// Run relays one turn. Failures are logged and answered with an apology message; a failure to deliver the apology is
// ignored. Run never returns an error.
func (r *Relay) Run(ctx context.Context, turn Turn) {
	ctx, span := r.tracer.Start(ctx, "turn", trace.WithAttributes(
		telemetry.TurnAttributes(turn.ID, turn.Event.ConversationID, turn.Event.CurrentMessageID)...,
	))
	defer span.End()

	err := r.runTurn(ctx, turn)
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "turn failed")
	r.logger.ErrorContext(ctx, "handler error",
		"err", err,
		"turnId", turn.ID,
		"conversationId", turn.Event.ConversationID,
		"messageId", turn.Event.CurrentMessageID,
	)
	_ = turn.Sender.SendResponse(ctx, chat.TextContent(errorResponseText))
}

func (r *Relay) runTurn(ctx context.Context, turn Turn) error {
	messages, err := r.retrieveHistory(ctx, turn)
	if err != nil {
		return err
	}

	// TODO: single-shot delivery should call the model without streaming; it currently publishes a placeholder
	if !turn.Event.StreamResponse {
		return turn.Sender.SendResponse(ctx, chat.TextContent(noResponseText))
	}

	return r.streamResponse(ctx, turn, messages)
}

func (r *Relay) retrieveHistory(ctx context.Context, turn Turn) ([]chat.Message, error) {
	ctx, span := r.tracer.Start(ctx, "history.retrieve")
	defer span.End()

	messages, err := turn.History.Retrieve(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to retrieve message history: %w", err)
	}
	span.SetAttributes(attribute.Int("history.messages", len(messages)))
	return messages, nil
}

func (r *Relay) streamResponse(ctx context.Context, turn Turn, messages []chat.Message) error {
	ctx, span := r.tracer.Start(ctx, "model.converse_stream", trace.WithAttributes(
		attribute.String("model.provider", r.model.Name()),
		attribute.String("model.id", turn.Event.ModelConfiguration.ModelID),
	))
	defer span.End()

	stream, err := r.model.ConverseStream(ctx, r.buildRequest(turn.Event, messages))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to invoke model: %w", err)
	}
	defer stream.Close()

	ts := newTurnState(turn.Event.ConversationID, turn.Event.CurrentMessageID)
	for stream.Next() {
		chunk := ts.apply(stream.Current())
		if chunk == nil {
			continue
		}
		// Each chunk is acknowledged by the store before the next stream event is read
		if err := turn.Sender.SendChunk(ctx, *chunk); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to consume model stream: %w", err)
	}

	span.SetAttributes(
		attribute.String("model.stop_reason", ts.stopReason),
		attribute.Int("model.fragments", ts.deltaCount),
	)

	if ts.guardrailIntervened() {
		r.logger.InfoContext(ctx, "guardrail intervened",
			"conversationId", turn.Event.ConversationID,
			"messageId", turn.Event.CurrentMessageID,
			"stopReason", ts.stopReason,
			"timestamp", r.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			"guardrailTrace", ts.guardrailTrace,
		)
	}

	return turn.Sender.SendChunk(ctx, ts.complete())
}

func (r *Relay) buildRequest(ev event.TurnEvent, messages []chat.Message) *inference.Request {
	req := &inference.Request{
		ModelID:      ev.ModelConfiguration.ModelID,
		SystemPrompt: ev.ModelConfiguration.SystemPrompt,
		Messages:     messages,
		Guardrail:    r.guardrail,
	}
	if ic := ev.ModelConfiguration.InferenceConfiguration; ic != nil {
		req.Inference = &inference.InferenceConfig{
			MaxTokens:     ic.MaxTokens,
			Temperature:   ic.Temperature,
			TopP:          ic.TopP,
			StopSequences: ic.StopSequences,
		}
	}
	return req
}
