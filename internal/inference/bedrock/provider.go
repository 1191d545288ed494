// Package bedrock streams model responses through the Amazon Bedrock Converse API, optionally applying a guardrail.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cchalm/guarded-chat/internal/chat"
	"github.com/cchalm/guarded-chat/internal/inference"
)

// ConverseStreamAPI is the subset of the Bedrock runtime client used by Provider
type ConverseStreamAPI interface {
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

type Provider struct {
	client ConverseStreamAPI
}

func NewProvider(client ConverseStreamAPI) *Provider {
	return &Provider{client: client}
}

func (p *Provider) Name() string {
	return "bedrock"
}

func (p *Provider) ConverseStream(ctx context.Context, req *inference.Request) (inference.Stream, error) {
	input, err := buildInput(req)
	if err != nil {
		return nil, err
	}
	out, err := p.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start converse stream: %w", err)
	}
	return newStream(out.GetStream()), nil
}

func buildInput(req *inference.Request) (*bedrockruntime.ConverseStreamInput, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(req.ModelID),
		Messages: messages,
		System: []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.SystemPrompt},
		},
	}

	if req.Guardrail != nil {
		input.GuardrailConfig = &types.GuardrailStreamConfiguration{
			GuardrailIdentifier:  aws.String(req.Guardrail.ID),
			GuardrailVersion:     aws.String(req.Guardrail.Version),
			StreamProcessingMode: types.GuardrailStreamProcessingModeAsync,
			Trace:                types.GuardrailTraceEnabled,
		}
	}

	if ic := req.Inference; ic != nil {
		input.InferenceConfig = &types.InferenceConfiguration{
			MaxTokens:     ic.MaxTokens,
			Temperature:   ic.Temperature,
			TopP:          ic.TopP,
			StopSequences: ic.StopSequences,
		}
	}

	return input, nil
}

func convertMessages(messages []chat.Message) ([]types.Message, error) {
	result := make([]types.Message, 0, len(messages))
	for i, msg := range messages {
		var role types.ConversationRole
		switch msg.Role {
		case chat.RoleUser:
			role = types.ConversationRoleUser
		case chat.RoleAssistant:
			role = types.ConversationRoleAssistant
		default:
			return nil, fmt.Errorf("message %d: unsupported role '%s'", i, msg.Role)
		}

		content := make([]types.ContentBlock, 0, len(msg.Content))
		for j, block := range msg.Content {
			cb, err := convertBlock(block)
			if err != nil {
				return nil, fmt.Errorf("message %d, block %d: %w", i, j, err)
			}
			content = append(content, cb)
		}

		result = append(result, types.Message{Role: role, Content: content})
	}
	return result, nil
}

func convertBlock(block chat.Block) (types.ContentBlock, error) {
	switch b := block.(type) {
	case chat.TextBlock:
		return &types.ContentBlockMemberText{Value: b.Text}, nil

	case chat.ImageBlock:
		return &types.ContentBlockMemberImage{Value: types.ImageBlock{
			Format: types.ImageFormat(b.Format),
			Source: &types.ImageSourceMemberBytes{Value: b.Bytes},
		}}, nil

	case chat.DocumentBlock:
		return &types.ContentBlockMemberDocument{Value: types.DocumentBlock{
			Format: types.DocumentFormat(b.Format),
			Name:   aws.String(b.Name),
			Source: &types.DocumentSourceMemberBytes{Value: b.Bytes},
		}}, nil

	case chat.ToolUseBlock:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
			ToolUseId: aws.String(b.ID),
			Name:      aws.String(b.Name),
			Input:     document.NewLazyDocument(input),
		}}, nil

	case chat.ToolResultBlock:
		content := make([]types.ToolResultContentBlock, 0, len(b.Content))
		for _, c := range b.Content {
			switch rc := c.(type) {
			case chat.ToolResultText:
				content = append(content, &types.ToolResultContentBlockMemberText{Value: rc.Text})
			case chat.ToolResultJSON:
				content = append(content, &types.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(rc.Value)})
			default:
				return nil, fmt.Errorf("unsupported tool result content %T", c)
			}
		}
		return &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: aws.String(b.ID),
			Status:    types.ToolResultStatus(b.Status),
			Content:   content,
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported content block %T", block)
	}
}

// translateEvent maps a Bedrock stream event to a relay event. Events the relay has no use for are dropped.
func translateEvent(ev types.ConverseStreamOutput) (inference.Event, bool) {
	switch e := ev.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		if delta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok && delta.Value != "" {
			return inference.Event{Kind: inference.EventTextDelta, Text: delta.Value}, true
		}

	case *types.ConverseStreamOutputMemberContentBlockStop:
		return inference.Event{Kind: inference.EventBlockStop}, true

	case *types.ConverseStreamOutputMemberMessageStop:
		return inference.Event{Kind: inference.EventMessageStop, StopReason: string(e.Value.StopReason)}, true

	case *types.ConverseStreamOutputMemberMetadata:
		out := inference.Event{Kind: inference.EventMetadata}
		if e.Value.Trace != nil {
			if b, err := json.Marshal(e.Value.Trace); err == nil {
				out.Trace = b
			}
		}
		return out, true
	}
	return inference.Event{}, false
}
