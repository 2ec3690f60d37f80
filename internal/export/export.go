// Package export renders a processed recording as a downloadable document.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

// ErrUnknownFormat is returned for a format other than txt, md or pdf.
var ErrUnknownFormat = errors.New("unknown export format")

const (
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatPDF      = "pdf"
)

// Document is a rendered export ready to be served as an attachment.
type Document struct {
	Body        []byte
	ContentType string
	Filename    string
}

// Render formats rec. Missing transcript or summary renders as empty sections.
func Render(format string, rec protocol.Recording) (Document, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	v := newView(rec)
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatText:
		body, contentType = renderText(v), "text/plain; charset=utf-8"
	case FormatMarkdown:
		body, contentType = renderMarkdown(v), "text/markdown; charset=utf-8"
	case FormatPDF:
		body, err = renderPDF(v)
		contentType = "application/pdf"
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Document{}, err
	}
	return Document{
		Body:        body,
		ContentType: contentType,
		Filename:    SafeFilename(rec.Title) + "." + format,
	}, nil
}

// SafeFilename keeps letters, numbers, space, '-' and '_' and replaces every
// other rune, combining marks included, with '_'. A title that ends up empty
// becomes "meeting".
func SafeFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, title)
	name = strings.TrimSpace(name)
	if name == "" {
		return "meeting"
	}
	return name
}

type section struct {
	heading string
	items   []string
	always  bool
}

// view is the shared shape every renderer walks.
type view struct {
	title    string
	sections []section
	text     string
	segments []protocol.Segment
}

func newView(rec protocol.Recording) view {
	v := view{title: rec.Title}
	var sum protocol.Summary
	if rec.Summary != nil {
		sum = *rec.Summary
	}
	v.sections = []section{
		{heading: "Summary", items: sum.Bullets, always: true},
		{heading: "Action items", items: sum.ActionItems, always: true},
		{heading: "Decisions", items: sum.Decisions},
		{heading: "Risks", items: sum.Risks},
	}
	if rec.Transcript != nil {
		v.text = strings.TrimSpace(rec.Transcript.Text)
		v.segments = rec.Transcript.Segments
	}
	return v
}

func (v view) visibleSections() []section {
	out := make([]section, 0, len(v.sections))
	for _, s := range v.sections {
		if s.always || len(s.items) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// transcriptLines prefers speaker-labelled segments and falls back to the
// full text when the engine produced none.
func (v view) transcriptLines() []string {
	if len(v.segments) == 0 {
		if v.text == "" {
			return nil
		}
		return []string{v.text}
	}
	lines := make([]string, 0, len(v.segments))
	for _, s := range v.segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		line := "[" + timestamp(s.Start) + "] "
		if s.Speaker != "" {
			line += s.Speaker + ": "
		}
		lines = append(lines, line+text)
	}
	return lines
}

func renderText(v view) []byte {
	var b bytes.Buffer
	b.WriteString(v.title + "\n\n")
	for _, s := range v.visibleSections() {
		b.WriteString(s.heading + ":\n")
		for _, item := range s.items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("Transcript:\n")
	for _, line := range v.transcriptLines() {
		b.WriteString(line + "\n")
	}
	return b.Bytes()
}

func renderMarkdown(v view) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", v.title)
	for _, s := range v.visibleSections() {
		fmt.Fprintf(&b, "## %s\n", s.heading)
		for _, item := range s.items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Transcript\n")
	for _, line := range v.transcriptLines() {
		b.WriteString(line + "\n\n")
	}
	return b.Bytes()
}

func timestamp(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
