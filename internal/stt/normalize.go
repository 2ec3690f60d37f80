package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

// seconds accepts JSON numbers, numeric strings and null.
type seconds float64

func (s *seconds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = 0
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*s = 0
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("invalid seconds value %q", str)
		}
		*s = seconds(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = seconds(v)
	return nil
}

type rawSegment struct {
	Start seconds `json:"start"`
	End   seconds `json:"end"`
	Text  *string `json:"text"`
}

type rawTranscript struct {
	Language *string      `json:"language"`
	Text     *string      `json:"text"`
	Segments []rawSegment `json:"segments"`
}

// Decode parses engine output and normalizes it.
func Decode(data []byte, fallbackLanguage string) (protocol.Transcript, error) {
	var raw rawTranscript
	if err := json.Unmarshal(data, &raw); err != nil {
		return protocol.Transcript{}, fmt.Errorf("decode stt response: %w", err)
	}
	return normalize(raw, fallbackLanguage), nil
}

func normalize(raw rawTranscript, fallbackLanguage string) protocol.Transcript {
	tr := protocol.Transcript{Language: fallbackLanguage, Segments: []protocol.Segment{}}
	if raw.Language != nil && strings.TrimSpace(*raw.Language) != "" {
		tr.Language = strings.TrimSpace(*raw.Language)
	}
	for _, rs := range raw.Segments {
		seg := protocol.Segment{Start: float64(rs.Start), End: float64(rs.End)}
		if rs.Text != nil {
			seg.Text = strings.TrimSpace(*rs.Text)
		}
		if seg.Start < 0 {
			seg.Start = 0
		}
		if seg.End < seg.Start {
			seg.End = seg.Start
		}
		tr.Segments = append(tr.Segments, seg)
	}
	sort.SliceStable(tr.Segments, func(i, j int) bool {
		return tr.Segments[i].Start < tr.Segments[j].Start
	})

	if raw.Text != nil {
		tr.Text = strings.TrimSpace(*raw.Text)
	} else {
		parts := make([]string, 0, len(tr.Segments))
		for _, s := range tr.Segments {
			if s.Text != "" {
				parts = append(parts, s.Text)
			}
		}
		tr.Text = strings.Join(parts, " ")
	}
	return tr
}
