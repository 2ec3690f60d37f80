// Package summary turns transcript text into a structured meeting summary,
// either through a language model or with a deterministic offline fallback.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/llm"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

var (
	// ErrEmptyTranscript is returned when there is no text worth sending to the model.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrMalformedResponse is returned when the model reply is not a usable summary.
	ErrMalformedResponse = errors.New("malformed summary response")
)

const systemPrompt = `You summarize meeting transcripts. Reply with a single JSON object and nothing else:
{"bullets": [...], "action_items": [...], "decisions": [...], "risks": [...]}
Each value is a list of short plain-text strings. Use an empty list when nothing applies.
Write in the language of the transcript.`

// maxPromptRunes bounds the transcript excerpt sent to the model.
const maxPromptRunes = 24000

// Summarizer asks a generator for a JSON summary.
type Summarizer struct {
	gen         llm.Generator
	maxTokens   int
	temperature float64
}

func New(gen llm.Generator, cfg config.SummaryConfig) *Summarizer {
	return &Summarizer{gen: gen, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}
}

// Summarize returns the model's summary of text. Callers own the deadline.
func (s *Summarizer) Summarize(ctx context.Context, text string) (protocol.Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return protocol.Summary{}, ErrEmptyTranscript
	}
	raw, err := llm.Collect(ctx, s.gen, llm.Request{
		Prompt:      "Transcript:\n" + truncate(text, maxPromptRunes),
		System:      systemPrompt,
		Format:      "json",
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return protocol.Summary{}, fmt.Errorf("summary generation failed: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a model reply. Markdown code fences and text around the JSON
// object are tolerated; a reply without any bullet is rejected.
func Parse(raw string) (protocol.Summary, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return protocol.Summary{}, fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}
	var out protocol.Summary
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return protocol.Summary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	out.Bullets = clean(out.Bullets)
	out.ActionItems = clean(out.ActionItems)
	out.Decisions = clean(out.Decisions)
	out.Risks = clean(out.Risks)
	if len(out.Bullets) == 0 {
		return protocol.Summary{}, fmt.Errorf("%w: no bullets", ErrMalformedResponse)
	}
	return out, nil
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(item), "-*•"))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
