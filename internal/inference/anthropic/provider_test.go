package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/inference"
)

type fakeEventStream struct {
	events []anthropic.MessageStreamEventUnion
	pos    int
	err    error
	closed bool
}

func newFakeEventStream(t *testing.T, err error, rawEvents ...string) *fakeEventStream {
	t.Helper()
	fs := &fakeEventStream{pos: -1, err: err}
	for _, raw := range rawEvents {
		var ev anthropic.MessageStreamEventUnion
		require.NoError(t, json.Unmarshal([]byte(raw), &ev))
		fs.events = append(fs.events, ev)
	}
	return fs
}

func (fs *fakeEventStream) Next() bool {
	fs.pos++
	return fs.pos < len(fs.events)
}

func (fs *fakeEventStream) Current() anthropic.MessageStreamEventUnion {
	return fs.events[fs.pos]
}

func (fs *fakeEventStream) Err() error { return fs.err }

func (fs *fakeEventStream) Close() error {
	fs.closed = true
	return nil
}

func TestConverseStream(t *testing.T) {
	events := newFakeEventStream(t, nil,
		`{"type": "message_start", "message": {"id": "msg_1", "type": "message", "role": "assistant", "content": [], "model": "claude-3-5-haiku-latest", "usage": {"input_tokens": 10, "output_tokens": 1}}}`,
		`{"type": "content_block_start", "index": 0, "content_block": {"type": "text", "text": ""}}`,
		`{"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "Hello"}}`,
		`{"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": " there"}}`,
		`{"type": "content_block_stop", "index": 0}`,
		`{"type": "message_delta", "delta": {"stop_reason": "end_turn"}, "usage": {"output_tokens": 3}}`,
		`{"type": "message_stop"}`,
	)

	var gotParams anthropic.MessageNewParams
	p := &Provider{
		newStream: func(_ context.Context, params anthropic.MessageNewParams) eventStream {
			gotParams = params
			return events
		},
		maxTokens: 1024,
	}

	s, err := p.ConverseStream(context.Background(), &inference.Request{
		ModelID:      "claude-3-5-haiku-latest",
		SystemPrompt: "be brief",
		Messages:     []chat.Message{{Role: chat.RoleUser, Content: []chat.Block{chat.TextBlock{Text: "hi"}}}},
	})
	require.NoError(t, err)

	var got []inference.Event
	for s.Next() {
		got = append(got, s.Current())
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())

	assert.Equal(t, []inference.Event{
		{Kind: inference.EventTextDelta, Text: "Hello"},
		{Kind: inference.EventTextDelta, Text: " there"},
		{Kind: inference.EventBlockStop},
		{Kind: inference.EventMessageStop, StopReason: "end_turn"},
	}, got)
	assert.True(t, events.closed)

	assert.Equal(t, anthropic.Model("claude-3-5-haiku-latest"), gotParams.Model)
	assert.Equal(t, int64(1024), gotParams.MaxTokens)
	require.Len(t, gotParams.System, 1)
	assert.Equal(t, "be brief", gotParams.System[0].Text)
	require.Len(t, gotParams.Messages, 1)
}

func TestConverseStream_Error(t *testing.T) {
	streamErr := errors.New("overloaded_error")
	p := &Provider{
		newStream: func(context.Context, anthropic.MessageNewParams) eventStream {
			return newFakeEventStream(t, streamErr)
		},
		maxTokens: 1024,
	}

	s, err := p.ConverseStream(context.Background(), &inference.Request{ModelID: "m"})
	require.NoError(t, err)
	assert.False(t, s.Next())
	require.ErrorIs(t, s.Err(), streamErr)
}

func TestBuildParams_InferenceConfig(t *testing.T) {
	maxTokens := int32(200)
	temperature := float32(0.5)
	p := &Provider{maxTokens: 4096}

	params, err := p.buildParams(&inference.Request{
		ModelID:   "m",
		Inference: &inference.InferenceConfig{MaxTokens: &maxTokens, Temperature: &temperature, StopSequences: []string{"END"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200), params.MaxTokens)
	assert.Equal(t, []string{"END"}, params.StopSequences)
	assert.Empty(t, params.System)
}

func TestConvertMessages(t *testing.T) {
	messages, err := convertMessages([]chat.Message{
		{Role: chat.RoleUser, Content: []chat.Block{
			chat.TextBlock{Text: "what is this?"},
			chat.ImageBlock{Format: "png", Bytes: []byte{1, 2, 3}},
		}},
		{Role: chat.RoleAssistant, Content: []chat.Block{
			chat.ToolUseBlock{ID: "t1", Name: "lookup", Input: map[string]any{"sku": "X"}},
		}},
		{Role: chat.RoleUser, Content: []chat.Block{
			chat.ToolResultBlock{ID: "t1", Status: "error", Content: []chat.ToolResultContent{chat.ToolResultText{Text: "not found"}}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, messages, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, messages[0].Role)
	require.Len(t, messages[0].Content, 2)
	require.NotNil(t, messages[0].Content[1].OfImage)

	assert.Equal(t, anthropic.MessageParamRoleAssistant, messages[1].Role)
	require.NotNil(t, messages[1].Content[0].OfToolUse)
	assert.Equal(t, "lookup", messages[1].Content[0].OfToolUse.Name)

	require.NotNil(t, messages[2].Content[0].OfToolResult)
	assert.Equal(t, "t1", messages[2].Content[0].OfToolResult.ToolUseID)
}

func TestConvertMessages_UnsupportedDocument(t *testing.T) {
	_, err := convertMessages([]chat.Message{{Role: chat.RoleUser, Content: []chat.Block{chat.DocumentBlock{Format: "docx"}}}})
	require.Error(t, err)
}
