package jobs

import (
	"context"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// Publisher delivers push messages; the local Hub and the Redis bus both satisfy it.
type Publisher interface {
	Publish(ctx context.Context, msg realtime.PushMessage) error
}

// Notifier turns job transitions into push messages on the job's channel. The payload is
// the job snapshot after the transition. A nil Notifier is a no-op.
type Notifier struct {
	pub Publisher
	log *logger.Logger
}

func NewNotifier(log *logger.Logger, pub Publisher) *Notifier {
	return &Notifier{pub: pub, log: log.With("component", "JobNotifier")}
}

func (n *Notifier) JobCreated(ctx context.Context, job domain.IngestionJob) {
	n.emit(ctx, realtime.PushJobCreated, job)
}

func (n *Notifier) JobProgress(ctx context.Context, job domain.IngestionJob) {
	n.emit(ctx, realtime.PushJobProgress, job)
}

func (n *Notifier) JobDone(ctx context.Context, job domain.IngestionJob) {
	n.emit(ctx, realtime.PushJobDone, job)
}

func (n *Notifier) JobFailed(ctx context.Context, job domain.IngestionJob) {
	n.emit(ctx, realtime.PushJobFailed, job)
}

func (n *Notifier) JobCancelled(ctx context.Context, job domain.IngestionJob) {
	n.emit(ctx, realtime.PushJobCancelled, job)
}

func (n *Notifier) emit(ctx context.Context, event realtime.PushEvent, job domain.IngestionJob) {
	if n == nil || n.pub == nil {
		return
	}
	msg := realtime.PushMessage{
		Channel: realtime.JobChannel(job.JobID),
		Event:   event,
		Data:    job,
	}
	if err := n.pub.Publish(context.WithoutCancel(ctx), msg); err != nil {
		n.log.Warn("push publish failed", "job_id", job.JobID, "event", event, "error", err)
	}
}

// EventFor maps a job snapshot to the push event that describes its current status.
func EventFor(job domain.IngestionJob) realtime.PushEvent {
	switch job.Status {
	case domain.JobCompleted:
		return realtime.PushJobDone
	case domain.JobFailed:
		return realtime.PushJobFailed
	case domain.JobPending:
		return realtime.PushJobCreated
	default:
		return realtime.PushJobProgress
	}
}
