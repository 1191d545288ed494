// Package inference defines the streamed model-inference interface used by the relay. Backends live in subpackages.
package inference

import (
	"context"
	"encoding/json"

	"github.com/cchalm/guarded-chat/internal/chat"
)

const DefaultGuardrailVersion = "DRAFT"

// Provider submits a conversation to a model and returns its streamed response
type Provider interface {
	ConverseStream(ctx context.Context, req *Request) (Stream, error)
	Name() string
}

type Request struct {
	ModelID      string
	SystemPrompt string
	Messages     []chat.Message

	// Guardrail is nil when safety filtering is disabled
	Guardrail *Guardrail
	Inference *InferenceConfig
}

// Guardrail identifies a content-safety policy applied to both model input and model output
type Guardrail struct {
	ID      string
	Version string
}

// NewGuardrail returns nil when id is empty. An empty version selects the working draft.
func NewGuardrail(id string, version string) *Guardrail {
	if id == "" {
		return nil
	}
	if version == "" {
		version = DefaultGuardrailVersion
	}
	return &Guardrail{ID: id, Version: version}
}

type InferenceConfig struct {
	MaxTokens     *int32
	Temperature   *float32
	TopP          *float32
	StopSequences []string
}

type EventKind int

const (
	// EventTextDelta carries a text fragment in Text
	EventTextDelta EventKind = iota + 1
	// EventBlockStop marks the end of a content block
	EventBlockStop
	// EventMessageStop carries the stop reason in StopReason
	EventMessageStop
	// EventMetadata carries a guardrail trace in Trace, if one was reported
	EventMetadata
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text_delta"
	case EventBlockStop:
		return "block_stop"
	case EventMessageStop:
		return "message_stop"
	case EventMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind       EventKind
	Text       string
	StopReason string
	Trace      json.RawMessage
}

// Stream is an in-order sequence of response events. Callers must Close it once done.
//
//	for stream.Next() {
//		event := stream.Current()
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream interface {
	Next() bool
	Current() Event
	Err() error
	Close() error
}

// SliceStream replays a fixed sequence of events
type SliceStream struct {
	events []Event
	pos    int
	err    error
}

// NewSliceStream returns a stream that yields events and then reports err, which may be nil
func NewSliceStream(events []Event, err error) *SliceStream {
	return &SliceStream{events: events, pos: -1, err: err}
}

func (s *SliceStream) Next() bool {
	if s.pos+1 >= len(s.events) {
		s.pos = len(s.events)
		return false
	}
	s.pos++
	return true
}

func (s *SliceStream) Current() Event {
	if s.pos < 0 || s.pos >= len(s.events) {
		return Event{}
	}
	return s.events[s.pos]
}

func (s *SliceStream) Err() error {
	if s.pos >= len(s.events) {
		return s.err
	}
	return nil
}

func (s *SliceStream) Close() error {
	return nil
}
