// Package pipeline runs conversion, transcription, speaker attribution,
// summarization and persistence for one recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/diarize"
	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/loqalabs/loqa-minutes/internal/reconcile"
	"github.com/loqalabs/loqa-minutes/internal/recordstore"
	"github.com/loqalabs/loqa-minutes/internal/stt"
	"github.com/loqalabs/loqa-minutes/internal/summary"
)

const instrumentationName = "github.com/loqalabs/loqa-minutes/pipeline"

// Audit event types written to the recording history.
const (
	EventStarted     = "processing.started"
	EventConverted   = "audio.converted"
	EventTranscribed = "transcript.ready"
	EventDiarized    = "speakers.attributed"
	EventSummarized  = "summary.ready"
	EventFallback    = "summary.fallback"
	EventCompleted   = "processing.completed"
	EventFailed      = "processing.failed"
)

// Store is the subset of the recording store the pipeline needs.
type Store interface {
	Get(ctx context.Context, id string) (protocol.Recording, error)
	SaveResults(ctx context.Context, id string, transcript *protocol.Transcript, summary *protocol.Summary) error
	AppendEvent(ctx context.Context, evt recordstore.Event) error
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (protocol.Summary, error)
}

// Publisher announces lifecycle events. A nil Publisher disables them.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Engines bundles the external collaborators. A nil Diarizer means speaker
// attribution is disabled; a nil Summarizer always uses the offline fallback.
type Engines struct {
	Converter  media.Converter
	Recognizer stt.Recognizer
	Diarizer   diarize.Diarizer
	Summarizer Summarizer
}

// Result is what one pipeline run produced and persisted.
type Result struct {
	ID              string              `json:"id"`
	Transcript      protocol.Transcript `json:"transcript"`
	Summary         protocol.Summary    `json:"summary"`
	SummaryFallback bool                `json:"summary_fallback"`
}

type Orchestrator struct {
	cfg       *config.Config
	store     Store
	engines   Engines
	publisher Publisher
	log       *slog.Logger
	clock     func() time.Time

	tracer    trace.Tracer
	runs      metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

func New(cfg *config.Config, store Store, engines Engines, publisher Publisher, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		engines:   engines,
		publisher: publisher,
		log:       log.With(slog.String("component", "pipeline")),
		clock:     time.Now,
		tracer:    otel.Tracer(instrumentationName),
	}
	if err := o.initMetrics(otel.Meter(instrumentationName)); err != nil {
		o.log.Warn("failed to initialize metrics", slogError(err))
	}
	return o
}

func (o *Orchestrator) initMetrics(meter metric.Meter) error {
	var errs []error
	var err error
	o.runs, err = meter.Int64Counter("minutes.pipeline.runs",
		metric.WithDescription("Pipeline runs by outcome"))
	errs = append(errs, err)
	o.fallbacks, err = meter.Int64Counter("minutes.summary.fallbacks",
		metric.WithDescription("Summaries produced by the offline fallback"))
	errs = append(errs, err)
	o.duration, err = meter.Float64Histogram("minutes.pipeline.duration",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s"))
	errs = append(errs, err)
	return errors.Join(errs...)
}

// Process runs every step for recording id and persists the results,
// replacing any earlier ones. Nothing is written if a step before
// persistence fails.
func (o *Orchestrator) Process(ctx context.Context, id string) (res Result, err error) {
	start := o.clock()
	ctx, span := o.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(attribute.String("recording.id", id)))
	defer span.End()
	log := o.log.With(slog.String("recording_id", id))

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = outcomeOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.audit(ctx, id, EventFailed, err.Error())
			o.publish(ctx, protocol.SubjectRecordingFailed, protocol.RecordingEvent{
				RecordingID: id, Title: rec.Title, Stage: outcome, Error: err.Error(), Timestamp: o.clock().UTC(),
			})
			log.Warn("processing failed", slog.String("outcome", outcome), slogError(err))
		}
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		if o.runs != nil {
			o.runs.Add(ctx, 1, attrs)
		}
		if o.duration != nil {
			o.duration.Record(ctx, o.clock().Sub(start).Seconds(), attrs)
		}
	}()

	o.audit(ctx, id, EventStarted, "")
	log.Info("processing started")

	wavPath := media.NormalizedPath(rec.AudioPath)
	if err := o.step(ctx, "convert", func(ctx context.Context) error {
		return o.engines.Converter.Convert(ctx, rec.AudioPath, wavPath)
	}); err != nil {
		return Result{}, classify(ErrConversionFailed, err)
	}
	o.audit(ctx, id, EventConverted, wavPath)

	var transcript protocol.Transcript
	if err := o.step(ctx, "transcribe", func(ctx context.Context) error {
		var err error
		transcript, err = o.engines.Recognizer.Transcribe(ctx, stt.Request{
			AudioPath: wavPath,
			Model:     o.cfg.STT.Model,
			Language:  o.cfg.STT.Language,
		})
		return err
	}); err != nil {
		return Result{}, classify(ErrTranscriptionUnavailable, err)
	}
	o.audit(ctx, id, EventTranscribed, fmt.Sprintf("%d segments", len(transcript.Segments)))

	if o.engines.Diarizer == nil {
		transcript.Segments = reconcile.SingleSpeaker(transcript.Segments)
	} else {
		var turns []protocol.DiarizationSegment
		if err := o.step(ctx, "diarize", func(ctx context.Context) error {
			var err error
			turns, err = o.engines.Diarizer.Diarize(ctx, wavPath)
			return err
		}); err != nil {
			return Result{}, classify(ErrDiarizationUnavailable, err)
		}
		transcript.Segments = reconcile.Attribute(transcript.Segments, turns)
		o.audit(ctx, id, EventDiarized, fmt.Sprintf("%d turns", len(turns)))
	}
	if transcript.Segments == nil {
		transcript.Segments = []protocol.Segment{}
	}

	sum, fallback := o.summarize(ctx, log, transcript.Text)
	if fallback {
		o.audit(ctx, id, EventFallback, "")
	} else {
		o.audit(ctx, id, EventSummarized, "")
	}

	if err := o.step(ctx, "persist", func(ctx context.Context) error {
		return o.store.SaveResults(ctx, id, &transcript, &sum)
	}); err != nil {
		return Result{}, fmt.Errorf("save results: %w", err)
	}

	o.audit(ctx, id, EventCompleted, "")
	o.publish(ctx, protocol.SubjectRecordingProcessed, protocol.RecordingEvent{
		RecordingID: id, Title: rec.Title, Stage: "completed", Fallback: fallback, Timestamp: o.clock().UTC(),
	})
	log.Info("processing completed",
		slog.Int("segments", len(transcript.Segments)),
		slog.Bool("summary_fallback", fallback),
		slog.Duration("elapsed", o.clock().Sub(start)))

	return Result{ID: id, Transcript: transcript, Summary: sum, SummaryFallback: fallback}, nil
}

// summarize never fails: any model error yields the offline summary.
func (o *Orchestrator) summarize(ctx context.Context, log *slog.Logger, text string) (protocol.Summary, bool) {
	ctx, span := o.tracer.Start(ctx, "pipeline.summarize")
	defer span.End()

	if o.engines.Summarizer != nil && o.cfg.Summary.Enabled {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.Summary.Timeout)
		sum, err := o.engines.Summarizer.Summarize(sctx, text)
		cancel()
		if err == nil {
			sum.Normalize()
			return sum, false
		}
		if !errors.Is(err, summary.ErrEmptyTranscript) {
			log.Warn("summary model failed, using fallback", slogError(err))
		}
		span.RecordError(err)
	}

	span.SetAttributes(attribute.Bool("summary.fallback", true))
	if o.fallbacks != nil {
		o.fallbacks.Add(ctx, 1)
	}
	return summary.Fallback(text), true
}

func (o *Orchestrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+name)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		// an engine killed by cancellation reports its own error
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (o *Orchestrator) audit(ctx context.Context, id, eventType, detail string) {
	evt := recordstore.Event{RecordingID: id, Type: eventType, Detail: detail}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		evt.TraceID = sc.TraceID().String()
	}
	// a failed run still gets its history entry when the caller has gone away
	if err := o.store.AppendEvent(context.WithoutCancel(ctx), evt); err != nil {
		o.log.Warn("failed to record event", slog.String("recording_id", id), slog.String("event", eventType), slogError(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, subject string, evt protocol.RecordingEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, subject, evt); err != nil {
		o.log.Warn("failed to publish event", slog.String("subject", subject), slogError(err))
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrConversionFailed):
		return "conversion_failed"
	case errors.Is(err, ErrTranscriptionUnavailable):
		return "transcription_unavailable"
	case errors.Is(err, ErrDiarizationUnavailable):
		return "diarization_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
