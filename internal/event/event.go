// Package event defines the inbound conversation turn event delivered by the conversation API.
package event

import (
	"errors"
	"strings"
)

// ErrInvalidEvent is returned when an inbound event fails decoding or schema validation
var ErrInvalidEvent = errors.New("event: invalid turn event")

const defaultListQueryLimit = 1000

// TurnEvent describes one conversation turn awaiting an assistant response. It is not modified while a turn is relayed.
type TurnEvent struct {
	ConversationID      string              `json:"conversationId" yaml:"conversationId"`
	CurrentMessageID    string              `json:"currentMessageId" yaml:"currentMessageId"`
	StreamResponse      bool                `json:"streamResponse" yaml:"streamResponse"`
	GraphQLAPIEndpoint  string              `json:"graphqlApiEndpoint" yaml:"graphqlApiEndpoint"`
	ResponseMutation    ResponseMutation    `json:"responseMutation" yaml:"responseMutation"`
	ModelConfiguration  ModelConfiguration  `json:"modelConfiguration" yaml:"modelConfiguration"`
	MessageHistoryQuery MessageHistoryQuery `json:"messageHistoryQuery" yaml:"messageHistoryQuery"`
	Request             Request             `json:"request" yaml:"request"`
}

// ResponseMutation names the mutation used to publish response chunks back to the store
type ResponseMutation struct {
	Name          string `json:"name" yaml:"name"`
	InputTypeName string `json:"inputTypeName" yaml:"inputTypeName"`
	SelectionSet  string `json:"selectionSet" yaml:"selectionSet"`
}

type ModelConfiguration struct {
	ModelID                string                  `json:"modelId" yaml:"modelId"`
	SystemPrompt           string                  `json:"systemPrompt" yaml:"systemPrompt"`
	InferenceConfiguration *InferenceConfiguration `json:"inferenceConfiguration,omitempty" yaml:"inferenceConfiguration,omitempty"`
}

type InferenceConfiguration struct {
	MaxTokens     *int32   `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP          *float32 `json:"topP,omitempty" yaml:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty" yaml:"stopSequences,omitempty"`
}

// MessageHistoryQuery names the queries used to read conversation history from the store
type MessageHistoryQuery struct {
	GetQueryName           string `json:"getQueryName" yaml:"getQueryName"`
	GetQueryInputTypeName  string `json:"getQueryInputTypeName" yaml:"getQueryInputTypeName"`
	ListQueryName          string `json:"listQueryName" yaml:"listQueryName"`
	ListQueryInputTypeName string `json:"listQueryInputTypeName" yaml:"listQueryInputTypeName"`
	ListQueryLimit         *int   `json:"listQueryLimit,omitempty" yaml:"listQueryLimit,omitempty"`
}

// ListLimit returns the page size for the history listing
func (q MessageHistoryQuery) ListLimit() int {
	if q.ListQueryLimit == nil {
		return defaultListQueryLimit
	}
	return *q.ListQueryLimit
}

type Request struct {
	Headers map[string]string `json:"headers" yaml:"headers"`
}

// Header returns the value of a request header, matching the name case-insensitively
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Authorization returns the caller's credential, forwarded unchanged to the store
func (e TurnEvent) Authorization() string {
	return e.Request.Header("authorization")
}

// UserAgentHeader returns the caller's client tag, if any
func (e TurnEvent) UserAgentHeader() string {
	return e.Request.Header("x-amz-user-agent")
}
