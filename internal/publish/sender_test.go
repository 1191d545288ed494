package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/graphql"
)

type recordedCall struct {
	req       graphql.Request
	userAgent string
}

type recordingExecutor struct {
	calls []recordedCall
	err   error
}

func (re *recordingExecutor) Execute(_ context.Context, req graphql.Request, opts ...graphql.CallOption) (*graphql.Response, error) {
	ua := graphql.NewUserAgent("").String(graphql.CallMetadata(opts...)...)
	re.calls = append(re.calls, recordedCall{req: req, userAgent: ua})
	if re.err != nil {
		return nil, re.err
	}
	return graphql.NewResponse([]byte(`{}`)), nil
}

func testEvent() event.TurnEvent {
	return event.TurnEvent{
		ConversationID:   "conv-1",
		CurrentMessageID: "msg-1",
		ResponseMutation: event.ResponseMutation{
			Name:          "createAssistantResponseStreamChat",
			InputTypeName: "CreateConversationMessageChatAssistantStreamingInput",
			SelectionSet:  "id conversationId",
		},
	}
}

func inputJSON(t *testing.T, req graphql.Request) string {
	t.Helper()
	b, err := json.Marshal(req.Variables["input"])
	require.NoError(t, err)
	return string(b)
}

func TestSendChunk_Fragment(t *testing.T) {
	executor := &recordingExecutor{}
	sender := NewSender(executor, testEvent())

	text := "Hello"
	index := 0
	err := sender.SendChunk(context.Background(), Chunk{
		ConversationID:          "conv-1",
		AssociatedUserMessageID: "msg-1",
		ContentBlockText:        &text,
		ContentBlockDeltaIndex:  &index,
		AccumulatedTurnContent:  AccumulatedText("Hello"),
	})
	require.NoError(t, err)

	require.Len(t, executor.calls, 1)
	call := executor.calls[0]
	assert.Contains(t, call.req.Query, "createAssistantResponseStreamChat(input: $input)")
	assert.JSONEq(t, `{
		"conversationId": "conv-1",
		"associatedUserMessageId": "msg-1",
		"contentBlockIndex": 0,
		"contentBlockText": "Hello",
		"contentBlockDeltaIndex": 0,
		"accumulatedTurnContent": [{"text": "Hello"}]
	}`, inputJSON(t, call.req))
	assert.Equal(t, "amplify-ai-constructs/1.5.3 turn-response-type/streaming", call.userAgent)
}

func TestSendResponse(t *testing.T) {
	executor := &recordingExecutor{}
	sender := NewSender(executor, testEvent())

	err := sender.SendResponse(context.Background(), chat.TextContent("No response generated"))
	require.NoError(t, err)

	require.Len(t, executor.calls, 1)
	assert.JSONEq(t, `{
		"conversationId": "conv-1",
		"content": [{"text": "No response generated"}],
		"associatedUserMessageId": "msg-1"
	}`, inputJSON(t, executor.calls[0].req))
	assert.Equal(t, "amplify-ai-constructs/1.5.3 turn-response-type/single", executor.calls[0].userAgent)
}

func TestSend_StoreFailure(t *testing.T) {
	executor := &recordingExecutor{err: errors.New("status 500")}
	sender := NewSender(executor, testEvent())

	require.Error(t, sender.SendResponse(context.Background(), chat.TextContent("x")))
	require.Error(t, sender.SendChunk(context.Background(), Chunk{}))
	// No retries
	assert.Len(t, executor.calls, 2)
}

func TestSend_InvalidMutationDescriptor(t *testing.T) {
	ev := testEvent()
	ev.ResponseMutation.Name = "bad name"
	executor := &recordingExecutor{}

	err := NewSender(executor, ev).SendResponse(context.Background(), chat.TextContent("x"))
	require.ErrorIs(t, err, graphql.ErrInvalidOperation)
	assert.Empty(t, executor.calls)
}
