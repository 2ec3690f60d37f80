package stt

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/mattn/go-shellwords"
)

type execRecognizer struct {
	cmd []string
}

// NewExecRecognizer runs an external whisper helper that prints
// {"language","text","segments":[{"start","end","text"}]} on stdout.
func NewExecRecognizer(cfg config.STTConfig) (Recognizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &execRecognizer{cmd: args}, nil
}

func (r *execRecognizer) Transcribe(ctx context.Context, req Request) (protocol.Transcript, error) {
	base := r.cmd[0]
	cmdArgs := append([]string{}, r.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", req.AudioPath)
	if req.Model != "" {
		cmdArgs = append(cmdArgs, "--model", req.Model)
	}
	if req.Language != "" {
		cmdArgs = append(cmdArgs, "--language", req.Language)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return protocol.Transcript{}, fmt.Errorf("stt command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Decode(stdout.Bytes(), req.Language)
}
