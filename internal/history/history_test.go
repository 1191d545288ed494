package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/event"
	"github.com/cchalm/guarded-chat/internal/graphql"
)

// fakeExecutor answers list queries with listBody and get queries with getBody, recording every request
type fakeExecutor struct {
	listBody string
	getBody  string
	err      error

	requests []graphql.Request
}

func (fe *fakeExecutor) Execute(_ context.Context, req graphql.Request, _ ...graphql.CallOption) (*graphql.Response, error) {
	fe.requests = append(fe.requests, req)
	if fe.err != nil {
		return nil, fe.err
	}
	if strings.Contains(req.Query, "query ListMessages") {
		return graphql.NewResponse([]byte(fe.listBody)), nil
	}
	return graphql.NewResponse([]byte(fe.getBody)), nil
}

func (fe *fakeExecutor) getCalls() int {
	n := 0
	for _, req := range fe.requests {
		if strings.Contains(req.Query, "query GetMessage") {
			n++
		}
	}
	return n
}

func testEvent() event.TurnEvent {
	return event.TurnEvent{
		ConversationID:   "conv-1",
		CurrentMessageID: "msg-current",
		MessageHistoryQuery: event.MessageHistoryQuery{
			GetQueryName:           "getConversationMessageChat",
			GetQueryInputTypeName:  "ID",
			ListQueryName:          "listConversationMessageChats",
			ListQueryInputTypeName: "ModelConversationMessageChatFilterInput",
		},
	}
}

func listResponse(items ...string) string {
	return fmt.Sprintf(`{"listConversationMessageChats": {"items": [%s]}}`, strings.Join(items, ","))
}

func storedText(id string, role string, text string) string {
	return fmt.Sprintf(`{"id": %q, "role": %q, "content": [{"text": %q, "image": null}], "aiContext": null}`, id, role, text)
}

func TestRetrieve_CurrentMessageListed(t *testing.T) {
	executor := &fakeExecutor{
		listBody: listResponse(
			storedText("msg-1", "user", "hi"),
			storedText("msg-2", "assistant", "hello"),
			storedText("msg-current", "user", "price of AwesomePhone?"),
		),
	}

	messages, err := NewRetriever(executor, testEvent()).Retrieve(context.Background())
	require.NoError(t, err)

	require.Len(t, messages, 3)
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: []chat.Block{chat.TextBlock{Text: "price of AwesomePhone?"}}}, messages[2])
	assert.Equal(t, 0, executor.getCalls())

	require.Len(t, executor.requests, 1)
	assert.Equal(t, 1000, executor.requests[0].Variables["limit"])
	assert.Equal(t, map[string]any{"conversationId": map[string]any{"eq": "conv-1"}}, executor.requests[0].Variables["filter"])
}

func TestRetrieve_FallsBackToPointLookup(t *testing.T) {
	executor := &fakeExecutor{
		listBody: listResponse(
			storedText("msg-1", "user", "a"),
			storedText("msg-2", "assistant", "b"),
			storedText("msg-3", "user", "c"),
			storedText("msg-4", "assistant", "d"),
			storedText("msg-5", "user", "e"),
		),
		getBody: fmt.Sprintf(`{"getConversationMessageChat": %s}`, storedText("msg-current", "user", "latest")),
	}

	messages, err := NewRetriever(executor, testEvent()).Retrieve(context.Background())
	require.NoError(t, err)

	require.Len(t, messages, 6)
	assert.Equal(t, chat.TextBlock{Text: "latest"}, messages[5].Content[0])
	assert.Equal(t, 1, executor.getCalls())
	assert.Equal(t, "msg-current", executor.requests[1].Variables["id"])
}

func TestRetrieve_PointLookupFindsNothing(t *testing.T) {
	executor := &fakeExecutor{
		listBody: listResponse(),
		getBody:  `{"getConversationMessageChat": null}`,
	}

	_, err := NewRetriever(executor, testEvent()).Retrieve(context.Background())
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRetrieve_StoreFailureAborts(t *testing.T) {
	storeErr := errors.New("connection reset")
	executor := &fakeExecutor{err: storeErr}

	_, err := NewRetriever(executor, testEvent()).Retrieve(context.Background())
	require.ErrorIs(t, err, storeErr)
	assert.Len(t, executor.requests, 1)
}

func TestRetrieve_CustomListLimit(t *testing.T) {
	limit := 20
	ev := testEvent()
	ev.MessageHistoryQuery.ListQueryLimit = &limit
	executor := &fakeExecutor{listBody: listResponse(storedText("msg-current", "user", "x"))}

	_, err := NewRetriever(executor, ev).Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, executor.requests[0].Variables["limit"])
}

func TestRetrieve_DecodesImagesForTheModel(t *testing.T) {
	executor := &fakeExecutor{
		listBody: listResponse(`{"id": "msg-current", "role": "user", "content": [{"text": null, "image": {"format": "jpeg", "source": {"bytes": "/9j/"}}}]}`),
	}

	messages, err := NewRetriever(executor, testEvent()).Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chat.ImageBlock{Format: "jpeg", Bytes: []byte{0xff, 0xd8, 0xff}}, messages[0].Content[0])
}
