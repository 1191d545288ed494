// Package publish delivers assistant responses to the conversation store through the mutation named by the turn event.
package publish

import (
	"context"
	"fmt"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/graphql"
)

const turnResponseTypeKey = "turn-response-type"

// Executor executes GraphQL requests against the conversation store
type Executor interface {
	Execute(ctx context.Context, req graphql.Request, opts ...graphql.CallOption) (*graphql.Response, error)
}

// TextContent is a text content block in the store's shape
type TextContent struct {
	Text string `json:"text"`
}

// Chunk is one streaming notification. Exactly one of the optional groups is set: ContentBlockText and
// ContentBlockDeltaIndex for a fragment, ContentBlockDoneAtIndex for a completed block, StopReason for a completed turn.
type Chunk struct {
	ConversationID          string        `json:"conversationId"`
	AssociatedUserMessageID string        `json:"associatedUserMessageId"`
	ContentBlockIndex       int           `json:"contentBlockIndex"`
	ContentBlockText        *string       `json:"contentBlockText,omitempty"`
	ContentBlockDeltaIndex  *int          `json:"contentBlockDeltaIndex,omitempty"`
	ContentBlockDoneAtIndex *int          `json:"contentBlockDoneAtIndex,omitempty"`
	StopReason              *string       `json:"stopReason,omitempty"`
	AccumulatedTurnContent  []TextContent `json:"accumulatedTurnContent"`
}

type responseInput struct {
	ConversationID          string        `json:"conversationId"`
	Content                 []TextContent `json:"content"`
	AssociatedUserMessageID string        `json:"associatedUserMessageId"`
}

// Sender publishes chunks and complete responses for one turn
type Sender struct {
	executor         Executor
	mutation         graphql.Operation
	conversationID   string
	currentMessageID string
}

func NewSender(executor Executor, ev event.TurnEvent) *Sender {
	return &Sender{
		executor: executor,
		mutation: graphql.Operation{
			Name:          ev.ResponseMutation.Name,
			InputTypeName: ev.ResponseMutation.InputTypeName,
			SelectionSet:  ev.ResponseMutation.SelectionSet,
		},
		conversationID:   ev.ConversationID,
		currentMessageID: ev.CurrentMessageID,
	}
}

// SendChunk publishes one streaming notification and waits for the store to acknowledge it
func (s *Sender) SendChunk(ctx context.Context, chunk Chunk) error {
	req, err := graphql.NewMutation(s.mutation, chunk)
	if err != nil {
		return fmt.Errorf("failed to build chunk mutation: %w", err)
	}
	_, err = s.executor.Execute(ctx, req, graphql.WithUserAgentMetadata(turnResponseTypeKey, "streaming"))
	if err != nil {
		return fmt.Errorf("failed to publish response chunk: %w", err)
	}
	return nil
}

// SendResponse publishes a complete, non-streamed response
func (s *Sender) SendResponse(ctx context.Context, content []chat.TextBlock) error {
	input := responseInput{
		ConversationID:          s.conversationID,
		Content:                 toTextContent(content),
		AssociatedUserMessageID: s.currentMessageID,
	}
	req, err := graphql.NewMutation(s.mutation, input)
	if err != nil {
		return fmt.Errorf("failed to build response mutation: %w", err)
	}
	_, err = s.executor.Execute(ctx, req, graphql.WithUserAgentMetadata(turnResponseTypeKey, "single"))
	if err != nil {
		return fmt.Errorf("failed to publish response: %w", err)
	}
	return nil
}

// AccumulatedText returns text in the shape of a chunk's accumulated turn content
func AccumulatedText(text string) []TextContent {
	return toTextContent(chat.TextContent(text))
}

func toTextContent(blocks []chat.TextBlock) []TextContent {
	content := make([]TextContent, 0, len(blocks))
	for _, b := range blocks {
		content = append(content, TextContent{Text: b.Text})
	}
	return content
}
