// Package reconcile attributes transcript segments to diarization speaker turns.
//
// Attribution is a greedy nearest-interval heuristic: each segment is judged
// on its midpoint alone and independently of its neighbours. It is not an
// optimal assignment and can mislabel segments that straddle a turn change.
package reconcile

import (
	"math"

	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

// DefaultSpeaker labels every segment when no turns are available.
const DefaultSpeaker = "Speaker 1"

// Attribute returns a copy of segments with Speaker set from turns.
// Neither input is modified.
func Attribute(segments []protocol.Segment, turns []protocol.DiarizationSegment) []protocol.Segment {
	out := make([]protocol.Segment, len(segments))
	copy(out, segments)
	if len(turns) == 0 {
		for i := range out {
			out[i].Speaker = DefaultSpeaker
		}
		return out
	}
	for i := range out {
		out[i].Speaker = speakerAt(midpoint(out[i].Start, out[i].End), turns)
	}
	return out
}

// SingleSpeaker labels every segment with DefaultSpeaker.
func SingleSpeaker(segments []protocol.Segment) []protocol.Segment {
	return Attribute(segments, nil)
}

func speakerAt(m float64, turns []protocol.DiarizationSegment) string {
	for _, t := range turns {
		if t.Start <= m && m <= t.End {
			return t.Speaker
		}
	}
	best := 0
	bestDist := math.Inf(1)
	for i, t := range turns {
		// strict less-than keeps the earlier turn on an exact tie
		if d := math.Abs(midpoint(t.Start, t.End) - m); d < bestDist {
			best, bestDist = i, d
		}
	}
	return turns[best].Speaker
}

func midpoint(start, end float64) float64 {
	return (start + end) / 2
}
