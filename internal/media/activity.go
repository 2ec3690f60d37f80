package media

import "github.com/go-audio/audio"

// Span is a time range in seconds.
type Span struct {
	Start float64
	End   float64
}

// VoicedSpans splits buf into frames of frameSeconds and returns runs of
// frames whose peak amplitude reaches floor.
func VoicedSpans(buf *audio.IntBuffer, frameSeconds float64, floor int) []Span {
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil
	}
	rate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	frame := max(int(float64(rate)*frameSeconds), 1) * channels
	total := float64(len(buf.Data)/channels) / float64(rate)

	var spans []Span
	open := -1
	frames := (len(buf.Data) + frame - 1) / frame
	for i := 0; i <= frames; i++ {
		voiced := i < frames && peak(buf.Data[i*frame:min((i+1)*frame, len(buf.Data))]) >= floor
		switch {
		case voiced && open < 0:
			open = i
		case !voiced && open >= 0:
			spans = append(spans, Span{
				Start: float64(open) * frameSeconds,
				End:   min(float64(i)*frameSeconds, total),
			})
			open = -1
		}
	}
	return spans
}

func peak(samples []int) int {
	top := 0
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > top {
			top = s
		}
	}
	return top
}
