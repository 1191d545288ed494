package relay

import (
	"encoding/json"
	"strings"

	"github.com/cchalm/guarded-chat/internal/inference"
	"github.com/cchalm/guarded-chat/internal/publish"
)

const (
	// guardrailBlockedPhrase appears in the guardrail's substitute message. The guardrail publishes that message itself,
	// so a block completion for it would duplicate the message.
	guardrailBlockedPhrase = "blocked by our content policy"

	defaultStopReason            = "end_turn"
	stopReasonGuardrailIntervene = "guardrail_intervened"
)

type streamState int

const (
	stateStreaming streamState = iota
	stateBlockClosing
	stateDone
)

func (s streamState) String() string {
	switch s {
	case stateStreaming:
		return "streaming"
	case stateBlockClosing:
		return "block_closing"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// turnState accumulates one streamed turn. Every response is treated as a single content block at index 0.
type turnState struct {
	conversationID string
	messageID      string

	state          streamState
	text           strings.Builder
	deltaCount     int
	stopReason     string
	guardrailTrace json.RawMessage
}

func newTurnState(conversationID string, messageID string) *turnState {
	return &turnState{
		conversationID: conversationID,
		messageID:      messageID,
		state:          stateStreaming,
	}
}

// apply advances the state with ev and returns the chunk to publish for it, or nil if nothing should be published.
// Content arriving after the message stop is dropped.
func (ts *turnState) apply(ev inference.Event) *publish.Chunk {
	if ts.state == stateDone && (ev.Kind == inference.EventTextDelta || ev.Kind == inference.EventBlockStop) {
		return nil
	}

	switch ev.Kind {
	case inference.EventTextDelta:
		ts.state = stateStreaming
		ts.text.WriteString(ev.Text)
		text := ev.Text
		index := ts.deltaCount
		ts.deltaCount++

		chunk := ts.newChunk()
		chunk.ContentBlockText = &text
		chunk.ContentBlockDeltaIndex = &index
		return &chunk

	case inference.EventBlockStop:
		ts.state = stateBlockClosing
		if strings.Contains(ts.text.String(), guardrailBlockedPhrase) {
			return nil
		}
		doneAt := max(0, ts.deltaCount-1)

		chunk := ts.newChunk()
		chunk.ContentBlockDoneAtIndex = &doneAt
		return &chunk

	case inference.EventMessageStop:
		ts.state = stateDone
		ts.stopReason = ev.StopReason
		if ts.stopReason == "" {
			ts.stopReason = defaultStopReason
		}
		return nil

	case inference.EventMetadata:
		if len(ev.Trace) > 0 {
			ts.guardrailTrace = ev.Trace
		}
		return nil
	}
	return nil
}

// complete returns the final turn-complete chunk. A stream that ended without a stop event reports an empty stop reason.
func (ts *turnState) complete() publish.Chunk {
	stopReason := ts.stopReason
	ts.state = stateDone

	chunk := ts.newChunk()
	chunk.StopReason = &stopReason
	return chunk
}

func (ts *turnState) guardrailIntervened() bool {
	return ts.stopReason == stopReasonGuardrailIntervene
}

func (ts *turnState) newChunk() publish.Chunk {
	return publish.Chunk{
		ConversationID:          ts.conversationID,
		AssociatedUserMessageID: ts.messageID,
		ContentBlockIndex:       0,
		AccumulatedTurnContent:  publish.AccumulatedText(ts.text.String()),
	}
}
