package summary

import (
	"regexp"
	"strings"

	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

// NoSpeech is the only bullet of a fallback summary for empty input.
const NoSpeech = "No speech detected."

const (
	fallbackBullets  = 3
	fallbackPerList  = 5
	fallbackMaxRunes = 200
)

// sentence boundaries, including the Bengali danda
var sentenceEnd = regexp.MustCompile(`[.!?।]+\s+|\n+`)

var (
	actionWords   = []string{"action item", "todo", "to do", "follow up", "follow-up", "need to", "needs to", "will ", "should ", "assign", "deadline"}
	decisionWords = []string{"decided", "decision", "agreed", "approved", "we will go with", "final answer"}
	riskWords     = []string{"risk", "concern", "blocker", "blocked", "issue", "delay", "problem"}
)

// Fallback builds a summary without a model. The same text always yields the
// same summary and Bullets is never empty.
func Fallback(text string) protocol.Summary {
	out := protocol.Summary{}
	out.Normalize()

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		out.Bullets = []string{NoSpeech}
		return out
	}
	for i := 0; i < len(sentences) && i < fallbackBullets; i++ {
		out.Bullets = append(out.Bullets, sentences[i])
	}
	for _, s := range sentences {
		lower := strings.ToLower(s)
		switch {
		case containsAny(lower, decisionWords):
			out.Decisions = appendCapped(out.Decisions, s)
		case containsAny(lower, actionWords):
			out.ActionItems = appendCapped(out.ActionItems, s)
		}
		if containsAny(lower, riskWords) {
			out.Risks = appendCapped(out.Risks, s)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, part := range sentenceEnd.Split(strings.TrimSpace(text), -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		out = append(out, truncate(part, fallbackMaxRunes))
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func appendCapped(list []string, s string) []string {
	if len(list) >= fallbackPerList {
		return list
	}
	return append(list, s)
}
