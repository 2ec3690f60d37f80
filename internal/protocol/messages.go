package protocol

import "time"

// Segment is a timed span of recognized speech.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// Transcript is the normalized speech-to-text result for one recording.
type Transcript struct {
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// DiarizationSegment is one speaker turn reported by the diarization engine.
type DiarizationSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Summary is the structured meeting summary.
type Summary struct {
	Bullets     []string `json:"bullets"`
	ActionItems []string `json:"action_items"`
	Decisions   []string `json:"decisions"`
	Risks       []string `json:"risks"`
}

// Normalize replaces nil lists with empty ones so they encode as [].
func (s *Summary) Normalize() {
	if s.Bullets == nil {
		s.Bullets = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	if s.Decisions == nil {
		s.Decisions = []string{}
	}
	if s.Risks == nil {
		s.Risks = []string{}
	}
}

// Recording is one uploaded meeting and its processing results.
type Recording struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	CreatedAt  time.Time   `json:"created_at"`
	AudioPath  string      `json:"audio_path"`
	Transcript *Transcript `json:"transcript"`
	Summary    *Summary    `json:"summary"`
}

// RecordingEvent is published on the bus when a recording changes state.
type RecordingEvent struct {
	RecordingID string    `json:"recording_id"`
	Title       string    `json:"title,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	Fallback    bool      `json:"summary_fallback,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	SubjectRecordingPrefix    = "minutes.recording"
	SubjectRecordingUploaded  = "minutes.recording.uploaded"
	SubjectRecordingProcessed = "minutes.recording.processed"
	SubjectRecordingFailed    = "minutes.recording.failed"
)
