package runtime

import (
	"fmt"
	"log/slog"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/diarize"
	"github.com/loqalabs/loqa-minutes/internal/llm"
	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/pipeline"
	"github.com/loqalabs/loqa-minutes/internal/stt"
	"github.com/loqalabs/loqa-minutes/internal/summary"
)

// BuildEngines constructs the external collaborators selected by cfg.
// Diarizer and Summarizer stay nil when their feature is disabled.
func BuildEngines(cfg *config.Config) (pipeline.Engines, error) {
	var engines pipeline.Engines
	var err error

	engines.Converter, err = media.NewFFmpegConverter(cfg.Converter.Command)
	if err != nil {
		return engines, fmt.Errorf("converter: %w", err)
	}
	engines.Recognizer, err = stt.New(cfg.STT)
	if err != nil {
		return engines, fmt.Errorf("stt: %w", err)
	}
	if cfg.Diarization.Enabled {
		engines.Diarizer, err = diarize.New(cfg.Diarization)
		if err != nil {
			return engines, fmt.Errorf("diarization: %w", err)
		}
	}
	if cfg.Summary.Enabled {
		gen, err := llm.New(cfg.Summary)
		if err != nil {
			return engines, fmt.Errorf("summary: %w", err)
		}
		engines.Summarizer = summary.New(gen, cfg.Summary)
	}
	return engines, nil
}

// BuildOrchestrator wires the pipeline against store. publisher may be nil.
func BuildOrchestrator(cfg *config.Config, store pipeline.Store, publisher pipeline.Publisher, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	engines, err := BuildEngines(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("engines configured",
		slog.String("stt_mode", cfg.STT.Mode),
		slog.Bool("diarization", engines.Diarizer != nil),
		slog.Bool("summary_model", engines.Summarizer != nil))
	return pipeline.New(cfg, store, engines, publisher, logger), nil
}
