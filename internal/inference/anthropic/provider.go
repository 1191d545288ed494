// Package anthropic streams model responses directly from the Anthropic Messages API. It is used for local development
// where Bedrock is unavailable. Guardrails are a Bedrock feature and are not applied by this backend.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/inference"
)

// eventStream is satisfied by *ssestream.Stream[anthropic.MessageStreamEventUnion]
type eventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

type streamFunc func(ctx context.Context, params anthropic.MessageNewParams) eventStream

type Provider struct {
	newStream streamFunc
	maxTokens int64
}

// NewProvider creates a provider backed by client. maxTokens applies when the request does not set its own limit.
func NewProvider(client anthropic.Client, maxTokens int64) *Provider {
	return &Provider{
		newStream: func(ctx context.Context, params anthropic.MessageNewParams) eventStream {
			return client.Messages.NewStreaming(ctx, params)
		},
		maxTokens: maxTokens,
	}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) ConverseStream(ctx context.Context, req *inference.Request) (inference.Stream, error) {
	if req.Guardrail != nil {
		slog.WarnContext(ctx, "guardrail ignored by anthropic backend", "guardrailId", req.Guardrail.ID)
	}
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	return &stream{events: p.newStream(ctx, params)}, nil
}

func (p *Provider) buildParams(req *inference.Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.ModelID),
		MaxTokens: p.maxTokens,
		Messages:  messages,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	if ic := req.Inference; ic != nil {
		if ic.MaxTokens != nil {
			params.MaxTokens = int64(*ic.MaxTokens)
		}
		if ic.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*ic.Temperature))
		}
		if ic.TopP != nil {
			params.TopP = anthropic.Float(float64(*ic.TopP))
		}
		params.StopSequences = ic.StopSequences
	}

	return params, nil
}

func convertMessages(messages []chat.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for i, msg := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for j, block := range msg.Content {
			b, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d, block %d: %w", i, j, err)
			}
			blocks = append(blocks, b)
		}

		switch msg.Role {
		case chat.RoleUser:
			result = append(result, anthropic.NewUserMessage(blocks...))
		case chat.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}
	}
	return result, nil
}

func convertBlock(block chat.Block) (anthropic.ContentBlockParamUnion, error) {
	switch b := block.(type) {
	case chat.TextBlock:
		return anthropic.NewTextBlock(b.Text), nil

	case chat.ImageBlock:
		// The Messages API only accepts base64 image payloads
		return anthropic.NewImageBlockBase64("image/"+b.Format, base64.StdEncoding.EncodeToString(b.Bytes)), nil

	case chat.DocumentBlock:
		if b.Format != "pdf" {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported document format '%s'", b.Format)
		}
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data: base64.StdEncoding.EncodeToString(b.Bytes),
		}), nil

	case chat.ToolUseBlock:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(b.ID, input, b.Name), nil

	case chat.ToolResultBlock:
		var parts []string
		for _, c := range b.Content {
			switch rc := c.(type) {
			case chat.ToolResultText:
				parts = append(parts, rc.Text)
			case chat.ToolResultJSON:
				j, err := json.Marshal(rc.Value)
				if err != nil {
					return anthropic.ContentBlockParamUnion{}, fmt.Errorf("failed to marshal tool result: %w", err)
				}
				parts = append(parts, string(j))
			}
		}
		return anthropic.NewToolResultBlock(b.ID, strings.Join(parts, "\n"), b.Status == "error"), nil

	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported content block %T", block)
	}
}
