package diarize

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/media"
)

func TestDecodeSortsByStart(t *testing.T) {
	turns, err := Decode([]byte(`[{"start":5,"end":7,"speaker":"B"},{"start":0,"end":4,"speaker":" A "}]`))
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "A", turns[0].Speaker)
	assert.Equal(t, 5.0, turns[1].Start)
}

func TestDecodeWrappedAndEmpty(t *testing.T) {
	turns, err := Decode([]byte(`{"segments":[{"start":1,"end":2,"speaker":"A"}]}`))
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	turns, err = Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, turns)

	_, err = Decode([]byte(`pyannote not installed`))
	assert.Error(t, err)
}

func TestExecDiarizerPassesPipelineAndToken(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires sh")
	}
	script := filepath.Join(t.TempDir(), "diarize.sh")
	body := "#!/bin/sh\nprintf '[{\"start\":0,\"end\":1,\"speaker\":\"%s|%s\"}]' \"$*\" \"$PYANNOTE_AUTH_TOKEN\"\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	d, err := NewExecDiarizer(config.DiarizationConfig{
		Command:   "sh " + script,
		Pipeline:  "pyannote/speaker-diarization@2.1",
		AuthToken: "hf_x",
	})
	require.NoError(t, err)

	turns, err := d.Diarize(context.Background(), "/a.wav")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "--audio /a.wav --pipeline pyannote/speaker-diarization@2.1|hf_x", turns[0].Speaker)
}

func TestExecDiarizerFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires sh")
	}
	script := filepath.Join(t.TempDir(), "fail.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'token required' >&2\nexit 1\n"), 0o755))

	d, err := NewExecDiarizer(config.DiarizationConfig{Command: "sh " + script})
	require.NoError(t, err)
	_, err = d.Diarize(context.Background(), "/a.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token required")
}

func TestMockDiarizerAlternatesOnLongPause(t *testing.T) {
	rate := media.TargetSampleRate
	samples := make([]int, 8*rate)
	fill := func(from, to float64) {
		for i := int(from * float64(rate)); i < int(to*float64(rate)); i++ {
			samples[i] = 3000
		}
	}
	fill(0, 1)   // speaker 1
	fill(1.5, 2) // short pause, same speaker
	fill(5, 6)   // long pause, switch
	path := filepath.Join(t.TempDir(), "talk.wav")
	require.NoError(t, media.WriteWAV(path, samples, rate))

	turns, err := NewMockDiarizer().Diarize(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "SPEAKER_00", turns[0].Speaker)
	assert.Equal(t, "SPEAKER_00", turns[1].Speaker)
	assert.Equal(t, "SPEAKER_01", turns[2].Speaker)
}

func TestNewSelectsMode(t *testing.T) {
	_, err := New(config.DiarizationConfig{Mode: "mock"})
	require.NoError(t, err)
	_, err = New(config.DiarizationConfig{Mode: "nemo"})
	assert.Error(t, err)
}
