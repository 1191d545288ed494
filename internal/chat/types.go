// Package chat defines the message and content-block model shared by the store and the inference backends.
package chat

import "errors"

// ErrInvalidBlock is returned when a stored content block does not carry exactly one variant
var ErrInvalidBlock = errors.New("chat: invalid content block")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation message with its content blocks in order
type Message struct {
	Role    Role
	Content []Block
}

// Block is one unit of message content. The concrete type is one of TextBlock, ImageBlock, DocumentBlock,
// ToolUseBlock or ToolResultBlock
type Block interface {
	isBlock()
}

type TextBlock struct {
	Text string
}

// ImageBlock carries raw image bytes, already decoded from the store's base64 representation
type ImageBlock struct {
	Format string
	Bytes  []byte
}

// DocumentBlock carries a raw document payload, already decoded from the store's base64 representation
type DocumentBlock struct {
	Format string
	Name   string
	Bytes  []byte
}

// ToolUseBlock is a tool invocation requested by the assistant. Input is a decoded JSON value.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input any
}

type ToolResultBlock struct {
	ID      string
	Status  string
	Content []ToolResultContent
}

func (TextBlock) isBlock()       {}
func (ImageBlock) isBlock()      {}
func (DocumentBlock) isBlock()   {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}

// ToolResultContent is one entry of a tool result: ToolResultText or ToolResultJSON
type ToolResultContent interface {
	isToolResultContent()
}

type ToolResultText struct {
	Text string
}

type ToolResultJSON struct {
	Value any
}

func (ToolResultText) isToolResultContent() {}
func (ToolResultJSON) isToolResultContent() {}

// TextContent returns the single-text-block content used for assistant responses
func TextContent(text string) []TextBlock {
	return []TextBlock{{Text: text}}
}
