package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

func sampleRecording() protocol.Recording {
	return protocol.Recording{
		ID:    "rec-1",
		Title: "Q3 planning: budget/hiring",
		Transcript: &protocol.Transcript{
			Language: "en",
			Text:     "hello there. next steps.",
			Segments: []protocol.Segment{
				{Start: 0, End: 2, Text: "hello there.", Speaker: "Speaker 1"},
				{Start: 3725, End: 3727, Text: "next steps.", Speaker: "SPEAKER_01"},
			},
		},
		Summary: &protocol.Summary{
			Bullets:     []string{"A"},
			ActionItems: []string{"B"},
			Decisions:   []string{},
			Risks:       []string{"C"},
		},
	}
}

func TestRenderText(t *testing.T) {
	doc, err := Render("txt", sampleRecording())
	require.NoError(t, err)
	body := string(doc.Body)

	assert.Equal(t, "text/plain; charset=utf-8", doc.ContentType)
	assert.Equal(t, "Q3 planning_ budget_hiring.txt", doc.Filename)
	assert.True(t, strings.HasPrefix(body, "Q3 planning: budget/hiring\n\n"))
	assert.Contains(t, body, "Summary:\n- A\n")
	assert.Contains(t, body, "Action items:\n- B\n")
	assert.Contains(t, body, "Risks:\n- C\n")
	assert.NotContains(t, body, "Decisions:")
	assert.Contains(t, body, "Transcript:\n[00:00] Speaker 1: hello there.\n[01:02:05] SPEAKER_01: next steps.\n")
}

func TestRenderMarkdown(t *testing.T) {
	doc, err := Render("MD", sampleRecording())
	require.NoError(t, err)
	body := string(doc.Body)

	assert.Equal(t, "Q3 planning_ budget_hiring.md", doc.Filename)
	assert.True(t, strings.HasPrefix(body, "# Q3 planning: budget/hiring\n"))
	assert.Contains(t, body, "## Summary\n- A\n")
	assert.Contains(t, body, "## Action items\n- B\n")
	assert.Contains(t, body, "## Transcript\n")
}

func TestRenderUnprocessed(t *testing.T) {
	doc, err := Render("txt", protocol.Recording{Title: "Empty"})
	require.NoError(t, err)
	assert.Equal(t, "Empty\n\nSummary:\n\nAction items:\n\nTranscript:\n", string(doc.Body))
}

func TestRenderTextWithoutSegments(t *testing.T) {
	rec := sampleRecording()
	rec.Transcript.Segments = nil
	doc, err := Render("txt", rec)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "Transcript:\nhello there. next steps.\n")
}

func TestRenderPDF(t *testing.T) {
	rec := sampleRecording()
	rec.Title = "আজকের মিটিং"
	doc, err := Render("pdf", rec)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "আজকের মিটিং.pdf", doc.Filename)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF-")))
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := Render("xyz", sampleRecording())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"Weekly sync":      "Weekly sync",
		"  a/b\\c  ":       "a_b_c",
		"":                 "meeting",
		"   ":              "meeting",
		"team-1_notes":     "team-1_notes",
		`"quoted"; rm -rf`: "_quoted__ rm -rf",
		"সভা":              "সভ_",
		"Q½ review":        "Q½ review",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeFilename(in), in)
	}
}
