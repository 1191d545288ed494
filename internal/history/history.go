// Package history reads the conversation history that precedes an assistant turn.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/graphql"
)

// ErrMessageNotFound is returned when the point lookup for the current message finds nothing
var ErrMessageNotFound = errors.New("history: current message not found")

const contentSelectionSet = `content {
            text
            image {
              format
              source {
                bytes
              }
            }
            document {
              format
              name
              source {
                bytes
              }
            }
            toolUse {
              toolUseId
              name
              input
            }
            toolResult {
              toolUseId
              status
              content {
                text
                json
              }
            }
          }`

const messageSelectionSet = `id
          role
          ` + contentSelectionSet + `
          conversationId
          associatedUserMessageId
          aiContext`

const listItemSelectionSet = messageSelectionSet + `
          createdAt`

// Executor executes GraphQL requests against the conversation store
type Executor interface {
	Execute(ctx context.Context, req graphql.Request, opts ...graphql.CallOption) (*graphql.Response, error)
}

// Retriever fetches the messages of one conversation, ending with the message awaiting a response
type Retriever struct {
	executor         Executor
	query            event.MessageHistoryQuery
	conversationID   string
	currentMessageID string
}

func NewRetriever(executor Executor, ev event.TurnEvent) *Retriever {
	return &Retriever{
		executor:         executor,
		query:            ev.MessageHistoryQuery,
		conversationID:   ev.ConversationID,
		currentMessageID: ev.CurrentMessageID,
	}
}

// Retrieve returns the conversation's messages in store order. The store's listing may lag a just-written message, so
// the current message is looked up individually and appended when the listing does not contain it.
func (r *Retriever) Retrieve(ctx context.Context) ([]chat.Message, error) {
	stored, err := r.listMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	found := false
	for _, sm := range stored {
		if sm.ID == r.currentMessageID {
			found = true
			break
		}
	}
	if !found {
		current, err := r.getCurrentMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get current message: %w", err)
		}
		stored = append(stored, current)
	}

	messages := make([]chat.Message, 0, len(stored))
	for _, sm := range stored {
		msg, err := sm.ToMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to convert stored message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *Retriever) listMessages(ctx context.Context) ([]chat.StoreMessage, error) {
	filter := map[string]any{
		"conversationId": map[string]any{"eq": r.conversationID},
	}
	req, err := graphql.NewListQuery(r.query.ListQueryName, r.query.ListQueryInputTypeName, filter, r.query.ListLimit(), listItemSelectionSet)
	if err != nil {
		return nil, err
	}
	resp, err := r.executor.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	items := resp.Items(r.query.ListQueryName)
	if !items.Exists() || items.Raw == "null" {
		return nil, nil
	}
	var stored []chat.StoreMessage
	if err := json.Unmarshal([]byte(items.Raw), &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message list: %w", err)
	}
	return stored, nil
}

func (r *Retriever) getCurrentMessage(ctx context.Context) (chat.StoreMessage, error) {
	req, err := graphql.NewGetQuery(r.query.GetQueryName, r.query.GetQueryInputTypeName, r.currentMessageID, messageSelectionSet)
	if err != nil {
		return chat.StoreMessage{}, err
	}
	resp, err := r.executor.Execute(ctx, req)
	if err != nil {
		return chat.StoreMessage{}, err
	}

	field := resp.Field(r.query.GetQueryName)
	if !field.Exists() || field.Raw == "null" {
		return chat.StoreMessage{}, fmt.Errorf("%w: '%s'", ErrMessageNotFound, r.currentMessageID)
	}
	var sm chat.StoreMessage
	if err := json.Unmarshal([]byte(field.Raw), &sm); err != nil {
		return chat.StoreMessage{}, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return sm, nil
}
