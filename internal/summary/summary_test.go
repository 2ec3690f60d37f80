package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/llm"
)

type stubGenerator struct {
	reply string
	err   error
	got   llm.Request
}

func (g *stubGenerator) Generate(ctx context.Context, req llm.Request, consumer func(llm.Chunk) error) error {
	g.got = req
	if g.err != nil {
		return g.err
	}
	return consumer(llm.Chunk{Content: g.reply})
}

func TestSummarizeParsesModelReply(t *testing.T) {
	gen := &stubGenerator{reply: "```json\n{\"bullets\":[\" - Budget approved \"],\"action_items\":[\"Send notes\"],\"decisions\":[],\"risks\":[\"\"]}\n```"}
	s := New(gen, config.SummaryConfig{MaxTokens: 256, Temperature: 0.2})

	out, err := s.Summarize(context.Background(), "  we approved the budget  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Budget approved"}, out.Bullets)
	assert.Equal(t, []string{"Send notes"}, out.ActionItems)
	assert.NotNil(t, out.Decisions)
	assert.Empty(t, out.Risks)

	assert.Equal(t, "json", gen.got.Format)
	assert.Equal(t, 256, gen.got.MaxTokens)
	assert.Contains(t, gen.got.Prompt, "we approved the budget")
}

func TestSummarizeErrors(t *testing.T) {
	s := New(&stubGenerator{err: errors.New("connection refused")}, config.SummaryConfig{})
	_, err := s.Summarize(context.Background(), "hello")
	assert.ErrorContains(t, err, "connection refused")

	_, err = s.Summarize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	s = New(&stubGenerator{reply: "I cannot help with that."}, config.SummaryConfig{})
	_, err = s.Summarize(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{
		``,
		`{"bullets": "not a list"}`,
		`{"bullets": []}`,
		`{"bullets": [" "]}`,
		`} backwards {`,
	} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformedResponse, raw)
	}
}

func TestSummarizeWithMockGenerator(t *testing.T) {
	s := New(llm.NewMockGenerator(), config.SummaryConfig{})
	out, err := s.Summarize(context.Background(), "short meeting")
	require.NoError(t, err)
	assert.Len(t, out.Bullets, 1)
}

func TestFallbackEmpty(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		out := Fallback(text)
		assert.Equal(t, []string{NoSpeech}, out.Bullets)
		assert.NotNil(t, out.ActionItems)
		assert.NotNil(t, out.Decisions)
		assert.NotNil(t, out.Risks)
	}
}

func TestFallbackClassifiesSentences(t *testing.T) {
	text := "Welcome everyone. We agreed to ship on Friday. Rahim will update the docs! " +
		"The vendor delay is a risk? Thanks all."
	out := Fallback(text)

	assert.Equal(t, []string{"Welcome everyone", "We agreed to ship on Friday", "Rahim will update the docs"}, out.Bullets)
	assert.Equal(t, []string{"We agreed to ship on Friday"}, out.Decisions)
	assert.Equal(t, []string{"Rahim will update the docs"}, out.ActionItems)
	assert.Equal(t, []string{"The vendor delay is a risk"}, out.Risks)

	assert.Equal(t, out, Fallback(text))
}

func TestFallbackSplitsBengaliDanda(t *testing.T) {
	out := Fallback("আজ মিটিং শুরু। বাজেট নিয়ে আলোচনা।")
	assert.Equal(t, []string{"আজ মিটিং শুরু", "বাজেট নিয়ে আলোচনা।"}, out.Bullets)
}
