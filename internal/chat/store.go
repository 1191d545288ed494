package chat

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// StoreMessage is a message as returned by the conversation store's GraphQL API. JSON null fields decode to nil and are
// treated as absent.
type StoreMessage struct {
	ID                      string          `json:"id"`
	Role                    Role            `json:"role"`
	Content                 []StoreBlock    `json:"content"`
	ConversationID          string          `json:"conversationId,omitempty"`
	AssociatedUserMessageID *string         `json:"associatedUserMessageId,omitempty"`
	AIContext               json.RawMessage `json:"aiContext,omitempty"`
	CreatedAt               *string         `json:"createdAt,omitempty"`
}

// StoreBlock is a content block in the store's shape. Exactly one field is expected to be set.
type StoreBlock struct {
	Text       *string          `json:"text,omitempty"`
	Image      *StoreImage      `json:"image,omitempty"`
	Document   *StoreDocument   `json:"document,omitempty"`
	ToolUse    *StoreToolUse    `json:"toolUse,omitempty"`
	ToolResult *StoreToolResult `json:"toolResult,omitempty"`
}

type StoreSource struct {
	Bytes *string `json:"bytes,omitempty"` // base64
}

type StoreImage struct {
	Format string       `json:"format"`
	Source *StoreSource `json:"source,omitempty"`
}

type StoreDocument struct {
	Format string       `json:"format"`
	Name   string       `json:"name"`
	Source *StoreSource `json:"source,omitempty"`
}

type StoreToolUse struct {
	ToolUseID string `json:"toolUseId"`
	Name      string `json:"name"`
	// Input is either a JSON value or a string containing JSON
	Input json.RawMessage `json:"input,omitempty"`
}

type StoreToolResult struct {
	ToolUseID string                   `json:"toolUseId"`
	Status    *string                  `json:"status,omitempty"`
	Content   []StoreToolResultContent `json:"content"`
}

type StoreToolResultContent struct {
	Text *string         `json:"text,omitempty"`
	JSON json.RawMessage `json:"json,omitempty"`
}

// ToMessage converts a stored message into the relay's message model. Binary payloads are decoded from base64, JSON
// carried as strings is parsed, and any attached AI context is appended as a trailing text block.
func (sm StoreMessage) ToMessage() (Message, error) {
	msg := Message{Role: sm.Role}
	for i, sb := range sm.Content {
		block, err := sb.toBlock()
		if err != nil {
			return Message{}, fmt.Errorf("message '%s', block %d: %w", sm.ID, i, err)
		}
		msg.Content = append(msg.Content, block)
	}

	if aiContext, ok := compactContext(sm.AIContext); ok {
		msg.Content = append(msg.Content, TextBlock{Text: aiContext})
	}

	return msg, nil
}

func (sb StoreBlock) toBlock() (Block, error) {
	set := 0
	for _, present := range []bool{sb.Text != nil, sb.Image != nil, sb.Document != nil, sb.ToolUse != nil, sb.ToolResult != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant, found %d", ErrInvalidBlock, set)
	}

	switch {
	case sb.Text != nil:
		return TextBlock{Text: *sb.Text}, nil

	case sb.Image != nil:
		b, err := decodeSource(sb.Image.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image bytes: %w", err)
		}
		return ImageBlock{Format: sb.Image.Format, Bytes: b}, nil

	case sb.Document != nil:
		b, err := decodeSource(sb.Document.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to decode document bytes: %w", err)
		}
		return DocumentBlock{Format: sb.Document.Format, Name: sb.Document.Name, Bytes: b}, nil

	case sb.ToolUse != nil:
		input, err := parseJSONValue(sb.ToolUse.Input)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tool input: %w", err)
		}
		return ToolUseBlock{ID: sb.ToolUse.ToolUseID, Name: sb.ToolUse.Name, Input: input}, nil

	default:
		result := ToolResultBlock{ID: sb.ToolResult.ToolUseID}
		if sb.ToolResult.Status != nil {
			result.Status = *sb.ToolResult.Status
		}
		for j, c := range sb.ToolResult.Content {
			switch {
			case c.Text != nil:
				result.Content = append(result.Content, ToolResultText{Text: *c.Text})
			case !isNull(c.JSON):
				v, err := parseJSONValue(c.JSON)
				if err != nil {
					return nil, fmt.Errorf("failed to parse tool result content %d: %w", j, err)
				}
				result.Content = append(result.Content, ToolResultJSON{Value: v})
			default:
				return nil, fmt.Errorf("%w: tool result content %d is empty", ErrInvalidBlock, j)
			}
		}
		return result, nil
	}
}

func decodeSource(src *StoreSource) ([]byte, error) {
	if src == nil || src.Bytes == nil {
		return nil, nil
	}
	encoded := *src.Bytes
	// Padding is optional in stored payloads
	if strings.HasSuffix(encoded, "=") || len(encoded)%4 == 0 {
		return base64.StdEncoding.DecodeString(encoded)
	}
	return base64.RawStdEncoding.DecodeString(encoded)
}

// parseJSONValue decodes raw JSON. AWSJSON fields arrive as strings containing JSON, which are decoded a second time.
func parseJSONValue(raw json.RawMessage) (any, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return v, nil
}

func compactContext(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("0")) {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", false
	}
	return buf.String(), true
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
