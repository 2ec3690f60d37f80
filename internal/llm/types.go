package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-minutes/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	Prompt      string
	System      string
	Format      string // "json" asks the backend for a single JSON document
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// New builds the generator selected by cfg.Mode.
func New(cfg config.SummaryConfig) (Generator, error) {
	switch cfg.Mode {
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model, nil), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown summary mode %q", cfg.Mode)
	}
}

// Collect runs req and concatenates every chunk.
func Collect(ctx context.Context, g Generator, req Request) (string, error) {
	var b strings.Builder
	err := g.Generate(ctx, req, func(c Chunk) error {
		b.WriteString(c.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
