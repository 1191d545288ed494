package bedrock

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cchalm/guarded-chat/internal/inference"
)

// eventReader is satisfied by *bedrockruntime.ConverseStreamEventStream
type eventReader interface {
	Events() <-chan types.ConverseStreamOutput
	Close() error
	Err() error
}

type stream struct {
	reader  eventReader
	current inference.Event
	done    bool
}

func newStream(reader eventReader) *stream {
	return &stream{reader: reader}
}

func (s *stream) Next() bool {
	if s.done {
		return false
	}
	for ev := range s.reader.Events() {
		if translated, ok := translateEvent(ev); ok {
			s.current = translated
			return true
		}
	}
	s.done = true
	return false
}

func (s *stream) Current() inference.Event {
	return s.current
}

func (s *stream) Err() error {
	if err := s.reader.Err(); err != nil {
		return fmt.Errorf("bedrock stream error: %w", err)
	}
	return nil
}

func (s *stream) Close() error {
	return s.reader.Close()
}
