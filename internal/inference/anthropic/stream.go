package anthropic

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cchalm/guarded-chat/internal/inference"
)

// stream adapts the Messages API event stream. The stop reason arrives on message_delta and is reported when
// message_stop follows.
type stream struct {
	events     eventStream
	current    inference.Event
	stopReason string
}

func (s *stream) Next() bool {
	for s.events.Next() {
		if ev, ok := s.translate(s.events.Current()); ok {
			s.current = ev
			return true
		}
	}
	return false
}

func (s *stream) translate(event anthropic.MessageStreamEventUnion) (inference.Event, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
			return inference.Event{Kind: inference.EventTextDelta, Text: e.Delta.Text}, true
		}
	case anthropic.ContentBlockStopEvent:
		return inference.Event{Kind: inference.EventBlockStop}, true
	case anthropic.MessageDeltaEvent:
		s.stopReason = string(e.Delta.StopReason)
	case anthropic.MessageStopEvent:
		return inference.Event{Kind: inference.EventMessageStop, StopReason: s.stopReason}, true
	}
	return inference.Event{}, false
}

func (s *stream) Current() inference.Event {
	return s.current
}

func (s *stream) Err() error {
	if err := s.events.Err(); err != nil {
		return fmt.Errorf("failed to stream response: %w", err)
	}
	return nil
}

func (s *stream) Close() error {
	return s.events.Close()
}
