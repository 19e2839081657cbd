package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"regdocs/internal/config"
	"regdocs/internal/observability"
	"regdocs/internal/pipeline"
)

// Worker pulls jobs one at a time from a Queue and dispatches them to a
// pipeline.Pipeline, enforcing the hard/soft wall-clock limits and the
// jobs-per-process bound from the concurrency model.
type Worker struct {
	Queue    Queue
	Pipeline *pipeline.Pipeline
	Config   config.JobConfig
}

// NewWorker builds a Worker.
func NewWorker(q Queue, p *pipeline.Pipeline, cfg config.JobConfig) *Worker {
	return &Worker{Queue: q, Pipeline: p, Config: cfg}
}

// Run consumes jobs until ctx is canceled or the worker has processed
// MaxJobsPerWorker jobs, at which point it returns so the caller can start
// a replacement — the self-restart backpressure mechanism bounding
// per-process memory growth.
func (w *Worker) Run(ctx context.Context) error {
	processed := 0
	maxJobs := w.Config.MaxJobsPerWorker
	if maxJobs <= 0 {
		maxJobs = 200
	}

	for processed < maxJobs {
		job, err := w.Queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return fmt.Errorf("jobqueue: consume: %w", err)
		}

		w.runOne(ctx, job)
		processed++
	}
	log.Info().Int("jobs_processed", processed).Msg("jobqueue: worker reached its job limit, restarting")
	return nil
}

// runOne dispatches a single job under the hard-timeout deadline. A job
// that exceeds the soft timeout is logged as a warning but allowed to keep
// running; only the hard timeout aborts it, leaving the document in
// whatever non-terminal status it had (the operator must intervene, per
// the cancellation policy — no automatic retry happens here).
func (w *Worker) runOne(ctx context.Context, job Job) {
	hard := w.Config.HardTimeout
	if hard <= 0 {
		hard = time.Hour
	}
	soft := w.Config.SoftTimeout
	if soft <= 0 {
		soft = hard
	}

	jobCtx, cancel := context.WithTimeout(ctx, hard)
	defer cancel()

	logger := observability.LoggerFromContext(jobCtx).With().Str("job_kind", string(job.Kind)).Logger()
	jobCtx = observability.WithJobLogger(jobCtx, logger)

	softTimer := time.AfterFunc(soft, func() {
		logger.Warn().Dur("soft_timeout", soft).Msg("jobqueue: job exceeded soft timeout, still running")
	})
	defer softTimer.Stop()

	if err := w.dispatch(jobCtx, job); err != nil {
		if jobCtx.Err() != nil {
			logger.Error().Err(err).Msg("jobqueue: job hit hard timeout")
			return
		}
		logger.Error().Err(err).Msg("jobqueue: job failed")
	}
}

func (w *Worker) dispatch(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindProcessDocument:
		var p ProcessDocumentPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("jobqueue: decode process_document payload: %w", err)
		}
		result, err := w.Pipeline.ProcessDocument(ctx, p.DocumentID)
		if err != nil {
			return err
		}
		if result.Status == "ready" {
			fanOut, fErr := w.Pipeline.ShouldFanOutRelationships(ctx, p.DocumentID)
			if fErr == nil && fanOut {
				job, jErr := NewExtractRelationshipsJob(ExtractRelationshipsPayload{DocumentID: p.DocumentID})
				if jErr == nil {
					_ = w.Queue.Enqueue(ctx, job)
				}
			}
		}
		return nil

	case KindExtractRelationships:
		var p ExtractRelationshipsPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("jobqueue: decode extract_relationships payload: %w", err)
		}
		_, err := w.Pipeline.ExtractRelationships(ctx, pipeline.RelationshipOptions{
			SourceDocID:   p.DocumentID,
			TargetDocIDs:  p.TargetDocIDs,
			Threshold:     p.Threshold,
			LimitPerChunk: p.LimitPerChunk,
		})
		return err

	case KindHealthCheck:
		return nil

	default:
		return fmt.Errorf("jobqueue: unknown job kind %q", job.Kind)
	}
}
