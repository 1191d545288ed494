package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchalm/guarded-chat/internal/config"
	anthropicprovider "github.com/cchalm/guarded-chat/internal/inference/anthropic"
	"github.com/cchalm/guarded-chat/internal/inference/lorem"
)

func TestCreateProvider(t *testing.T) {
	t.Cleanup(func() { cfg = config.Config{} })

	cfg = config.Config{Backend: config.BackendLorem}
	provider, err := createProvider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &lorem.Provider{}, provider)

	cfg = config.Config{Backend: config.BackendAnthropic, AnthropicAPIKey: "sk-test", AnthropicMaxTokens: 512}
	provider, err = createProvider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &anthropicprovider.Provider{}, provider)

	cfg = config.Config{Backend: "openai"}
	_, err = createProvider(context.Background())
	require.Error(t, err)
}

func TestCreateHandler_Offline(t *testing.T) {
	t.Cleanup(func() { cfg = config.Config{} })
	cfg = config.Config{Backend: config.BackendLorem}

	handler, telemetryProvider, err := createHandler(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, handler)
	assert.NoError(t, telemetryProvider.Shutdown(context.Background()))
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-10-18T00:00:00Z")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	assert.Equal(t, "1.2.3", versionInfo.version)
	assert.Equal(t, "abc123", versionInfo.gitCommit)
}

func TestCreateHandler_SlowStoreCompletesTurn(t *testing.T) {
	t.Cleanup(func() { cfg = config.Config{} })
	cfg = config.Config{Backend: config.BackendLorem}

	var (
		mu         sync.Mutex
		stopReason string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.Unmarshal(body, &req)
		if strings.Contains(req.Query, "ListMessages") {
			_, _ = w.Write([]byte(`{"data":{"listConversationMessageChats":{"items":[{"id":"msg-1","role":"user","content":[{"text":"hi"}]}]}}}`))
			return
		}
		if input, ok := req.Variables["input"].(map[string]any); ok {
			if sr, ok := input["stopReason"].(string); ok {
				mu.Lock()
				stopReason = sr
				mu.Unlock()
			}
		}
		_, _ = w.Write([]byte(`{"data":{"createAssistantResponseStreamChat":{"id":"r1"}}}`))
	}))
	defer server.Close()

	handler, telemetryProvider, err := createHandler(context.Background())
	require.NoError(t, err)
	defer func() { _ = telemetryProvider.Shutdown(context.Background()) }()

	raw := fmt.Sprintf(`{
		"conversationId": "conv-1",
		"currentMessageId": "msg-1",
		"streamResponse": true,
		"graphqlApiEndpoint": %q,
		"responseMutation": {"name": "createAssistantResponseStreamChat", "inputTypeName": "CreateConversationMessageChatAssistantStreamingInput", "selectionSet": "id"},
		"modelConfiguration": {"modelId": "lorem", "inferenceConfiguration": {"maxTokens": 3}},
		"messageHistoryQuery": {"getQueryName": "getConversationMessageChat", "getQueryInputTypeName": "ID", "listQueryName": "listConversationMessageChats", "listQueryInputTypeName": "ModelConversationMessageChatFilterInput"},
		"request": {"headers": {"authorization": "token"}}
	}`, server.URL)

	require.NoError(t, handler.Handle(context.Background(), json.RawMessage(raw)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "max_tokens", stopReason)
}
