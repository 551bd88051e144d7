// Package worker runs background jobs from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/intervue/backend/internal/models"
	"github.com/intervue/backend/pkg/queue"
	"github.com/intervue/backend/pkg/storage"
)

// FeedbackStore loads feedback rows and records the archive key.
type FeedbackStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	SetTranscriptKey(ctx context.Context, id uuid.UUID, key string) error
}

// TranscriptStore uploads transcript objects.
type TranscriptStore interface {
	UploadTranscript(ctx context.Context, key string, body []byte) error
}

// JobQueue is the queue surface the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ErrFeedbackNotFound is returned when a job references a missing feedback row.
var ErrFeedbackNotFound = errors.New("feedback not found")

// TranscriptArchiver copies stored transcripts to object storage.
type TranscriptArchiver struct {
	feedback FeedbackStore
	store    TranscriptStore
	queue    JobQueue
	logger   *zap.Logger

	pollTimeout time.Duration
	backoff     time.Duration
}

// NewTranscriptArchiver creates a transcript archive processor.
func NewTranscriptArchiver(feedback FeedbackStore, store TranscriptStore, q JobQueue, logger *zap.Logger) *TranscriptArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptArchiver{
		feedback:    feedback,
		store:       store,
		queue:       q,
		logger:      logger,
		pollTimeout: 5 * time.Second,
		backoff:     queue.RetryBackoff,
	}
}

// Process executes one archive job.
func (p *TranscriptArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscriptArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptArchivePayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	f, err := p.feedback.GetByID(ctx, payload.FeedbackID)
	if err != nil {
		return fmt.Errorf("load feedback: %w", err)
	}
	if f == nil {
		return fmt.Errorf("%w: %s", ErrFeedbackNotFound, payload.FeedbackID)
	}
	key := storage.TranscriptKey(f.InterviewID.String(), f.ID.String())
	if f.TranscriptKey == key {
		p.logger.Info("transcript already archived", zap.String("feedback_id", f.ID.String()))
		return nil
	}

	body, err := json.Marshal(f.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := p.store.UploadTranscript(ctx, key, body); err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	if err := p.feedback.SetTranscriptKey(ctx, f.ID, key); err != nil {
		return fmt.Errorf("update db: %w", err)
	}
	p.logger.Info("transcript archived", zap.String("feedback_id", f.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *TranscriptArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcript worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, p.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *TranscriptArchiver) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
