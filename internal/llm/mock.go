package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	words := len(strings.Fields(req.Prompt))
	content := fmt.Sprintf("[mock completion for %d words]", words)
	if req.Format == "json" {
		content = fmt.Sprintf(`{"bullets":["Mock summary of a %d word prompt."],"action_items":[],"decisions":[],"risks":[]}`, words)
	}
	return consumer(Chunk{
		Content: content,
		Partial: false,
		Latency: 20 * time.Millisecond,
	})
}
