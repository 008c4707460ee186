package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/authorization"
	"github.com/tdeslauriers/portability/pkg/provider"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// JobClient is the provider surface used to run archive jobs.
type JobClient interface {
	InitiateArchive(ctx context.Context, accessToken, resource string) (string, error)
	ArchiveState(ctx context.Context, accessToken, jobId string) (*provider.ArchiveState, error)
}

// StateWriter persists a single resource's state change.
type StateWriter interface {
	UpdateResourceState(ctx context.Context, recordUuid, resource string, from, to authorization.ResourceState) error
}

// Job is the set of resources to archive for one authorization.
type Job struct {
	UserId      string
	RecordUuid  string
	AccessToken string
	Resources   []string
}

// JobFor builds the job for every resource of record still in the granted state.
func JobFor(record *authorization.Record) Job {

	job := Job{
		UserId:     record.UserId,
		RecordUuid: record.Uuid,
		Resources:  record.ResourcesIn(authorization.Granted),
	}
	if record.AccessToken != nil {
		job.AccessToken = record.AccessToken.Value
	}
	return job
}

// Completion is the single result of one resource's archive task: a download url or an error.
type Completion struct {
	UserId     string
	RecordUuid string
	Resource   string
	Url        string
	Err        error
}

// PollConfig bounds archive job polling.  MaxAttempts <= 0 polls until the job
// finishes or the context is cancelled.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Runner fans a job out into one task per resource.
type Runner interface {
	// Start launches a task per resource and returns without waiting for them.
	// Resources already in flight for the same record are skipped with
	// ErrDuplicateTask; the remaining resources still start.  A resource in flight
	// for an earlier record of the user is cancelled and replaced, since only the
	// latest record can download it.
	Start(ctx context.Context, job Job) error

	// InFlight lists tasks still initiating or polling.
	InFlight() []TaskStatus

	// Wait blocks until every started task has finished.
	Wait()
}

// NewRunner returns a runner that sends each task's completion on out.
func NewRunner(client JobClient, states StateWriter, out chan<- Completion, poll PollConfig) Runner {
	return &runner{
		client: client,
		states: states,
		out:    out,
		poll:   poll,
		group:  newTaskGroup(),

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentJobRunner)).
			With(slog.String(util.PackageKey, util.PackageArchive)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Runner = (*runner)(nil)

type runner struct {
	client JobClient
	states StateWriter
	out    chan<- Completion
	poll   PollConfig

	group *taskGroup
	wg    sync.WaitGroup

	logger *slog.Logger
}

func (r *runner) Start(ctx context.Context, job Job) error {

	if job.UserId == "" || !validate.IsValidUuid(job.RecordUuid) {
		return fmt.Errorf("archive job requires a user id and a record uuid, got %q", job.RecordUuid)
	}

	if job.AccessToken == "" {
		return authorization.ErrNoAccessToken
	}

	var errs []error
	for _, resource := range job.Resources {

		status := TaskStatus{
			TaskKey:    TaskKey{UserId: job.UserId, Resource: resource},
			RecordUuid: job.RecordUuid,
			StartedAt:  time.Now().UTC(),
		}

		taskCtx, cancel := context.WithCancel(ctx)
		added, superseded := r.group.add(status, cancel)
		if !added {
			cancel()
			errs = append(errs, fmt.Errorf("%w: user %s resource %s", authorization.ErrDuplicateTask, job.UserId, resource))
			continue
		}

		if superseded {
			r.logger.Warn("archive task for an earlier authorization cancelled, replaced by the latest one",
				slog.String("user_id", job.UserId),
				slog.String("record_uuid", job.RecordUuid),
				slog.String("resource", resource))
		}

		tasksInFlight.Inc()
		r.wg.Add(1)
		go r.run(ctx, taskCtx, cancel, job, status.TaskKey)
	}

	return errors.Join(errs...)
}

func (r *runner) InFlight() []TaskStatus {
	return r.group.snapshot()
}

func (r *runner) Wait() {
	r.wg.Wait()
}

// run initiates, records, and polls one resource's archive job.  taskCtx is
// cancelled on shutdown or when a newer record replaces the task.
func (r *runner) run(ctx, taskCtx context.Context, cancel context.CancelFunc, job Job, key TaskKey) {
	defer r.wg.Done()
	defer cancel()

	log := r.logger.With(
		slog.String("user_id", key.UserId),
		slog.String("record_uuid", job.RecordUuid),
		slog.String("resource", key.Resource))

	url, err := r.archive(taskCtx, job, key, log)

	r.group.remove(key, job.RecordUuid)
	tasksInFlight.Dec()

	if taskCtx.Err() != nil && ctx.Err() == nil {
		// replaced by a task for the user's latest record
		taskOutcomes.WithLabelValues("superseded").Inc()
		log.Warn("archive task superseded by a newer authorization")
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// shutdown: the resource keeps whatever state was last persisted
		taskOutcomes.WithLabelValues("cancelled").Inc()
		log.Warn("archive task cancelled", slog.String("err", err.Error()))
		return
	}

	if err != nil {
		taskOutcomes.WithLabelValues("failed").Inc()
		log.Error("archive task failed", slog.String("err", err.Error()))
	} else {
		taskOutcomes.WithLabelValues("complete").Inc()
		log.Info("archive ready for download")
	}

	done := Completion{
		UserId:     key.UserId,
		RecordUuid: job.RecordUuid,
		Resource:   key.Resource,
		Url:        url,
		Err:        err,
	}

	select {
	case r.out <- done:
	case <-ctx.Done():
		log.Warn("pipeline stopped before archive completion was delivered")
	}
}

func (r *runner) archive(ctx context.Context, job Job, key TaskKey, log *slog.Logger) (string, error) {

	jobId, err := r.client.InitiateArchive(ctx, job.AccessToken, key.Resource)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %s: %v", authorization.ErrArchiveInitiateFailed, key.Resource, err)
	}

	r.group.update(key, job.RecordUuid, func(s *TaskStatus) { s.JobId = jobId })
	log.Info(fmt.Sprintf("archive job %s initiated", jobId))

	if err := r.states.UpdateResourceState(ctx, job.RecordUuid, key.Resource, authorization.Granted, authorization.Initiated); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to persist %s as initiated: %w", key.Resource, err)
	}

	return r.pollUntilDone(ctx, job, jobId, key)
}

// pollUntilDone polls immediately, then every interval, until the job finishes.
func (r *runner) pollUntilDone(ctx context.Context, job Job, jobId string, key TaskKey) (string, error) {

	ticker := time.NewTicker(r.poll.Interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {

		if r.poll.MaxAttempts > 0 && attempt > r.poll.MaxAttempts {
			return "", fmt.Errorf("%w: job %s still running after %d polls", authorization.ErrArchivePollTimeout, jobId, r.poll.MaxAttempts)
		}

		pollsTotal.Inc()
		r.group.update(key, job.RecordUuid, func(s *TaskStatus) { s.Polls = attempt })

		state, err := r.client.ArchiveState(ctx, job.AccessToken, jobId)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: job %s: %v", authorization.ErrArchivePollFailed, jobId, err)
		}

		switch {
		case state.State == provider.JobComplete:
			if len(state.Urls) == 0 || state.Urls[0] == "" {
				return "", fmt.Errorf("%w: job %s complete without a download url", authorization.ErrArchivePollFailed, jobId)
			}
			return state.Urls[0], nil
		case state.State.Terminal():
			return "", fmt.Errorf("%w: job %s ended %s", authorization.ErrArchivePollFailed, jobId, state.State)
		case state.State == provider.JobInProgress, state.State == provider.JobStateUnspecified:
			// keep polling
		default:
			return "", fmt.Errorf("%w: job %s reported unknown state %q", authorization.ErrArchivePollFailed, jobId, state.State)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
