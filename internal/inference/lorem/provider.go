// Package lorem is an offline inference backend that streams lorem ipsum text. It lets a turn be replayed end to end
// without model credentials.
package lorem

import (
	"context"
	"strings"

	loremgen "github.com/bozaro/golorem"

	"github.com/cchalm/guarded-chat/internal/inference"
)

const defaultWords = 40

type Provider struct {
	generator *loremgen.Lorem
	words     int
}

// NewProvider returns a provider that answers every request with roughly words words. Zero selects a default.
func NewProvider(words int) *Provider {
	if words <= 0 {
		words = defaultWords
	}
	return &Provider{
		generator: loremgen.New(),
		words:     words,
	}
}

func (p *Provider) Name() string {
	return "lorem"
}

func (p *Provider) ConverseStream(ctx context.Context, req *inference.Request) (inference.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := p.words
	stopReason := "end_turn"
	if req.Inference != nil && req.Inference.MaxTokens != nil && int(*req.Inference.MaxTokens) < limit {
		limit = int(*req.Inference.MaxTokens)
		stopReason = "max_tokens"
	}

	var events []inference.Event
	for i, word := range p.generateWords(limit) {
		if i > 0 {
			word = " " + word
		}
		events = append(events, inference.Event{Kind: inference.EventTextDelta, Text: word})
	}
	events = append(events,
		inference.Event{Kind: inference.EventBlockStop},
		inference.Event{Kind: inference.EventMessageStop, StopReason: stopReason},
	)

	return inference.NewSliceStream(events, nil), nil
}

func (p *Provider) generateWords(n int) []string {
	var words []string
	for len(words) < n {
		words = append(words, strings.Fields(p.generator.Sentence(5, 15))...)
	}
	return words[:n]
}
