package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/archive"
	"github.com/tdeslauriers/portability/pkg/authorization"
)

// ErrStopped is returned to callers handing work to a pipeline that is no longer running.
var ErrStopped = errors.New("pipeline stopped")

const (
	DefaultBuffer       = 64
	DefaultStoreTimeout = 10 * time.Second
)

// Retriever downloads and stores a finished archive.
type Retriever interface {
	FetchAndStore(ctx context.Context, userId, resource, url string) error
}

// Revoker resets the provider grant behind an access token.
type Revoker interface {
	ResetAuthorization(ctx context.Context, accessToken string) error
}

// ReadyToReset is emitted once per record, when its last resource is downloaded.
type ReadyToReset struct {
	UserId     string
	RecordUuid string

	accessToken string
}

type Config struct {
	Poll   archive.PollConfig
	Buffer int // channel capacity, DefaultBuffer if <= 0

	// StoreTimeout bounds each repository call made on the loop, DefaultStoreTimeout if <= 0.
	StoreTimeout time.Duration
}

// Coordinator drives accepted authorizations through exchange, archiving, download and reset.
type Coordinator interface {
	authorization.Emitter

	// Run owns every resource state commit after initiation.  It returns nil
	// once ctx is cancelled and all spawned work has stopped.
	Run(ctx context.Context) error

	// InFlight lists archive tasks still initiating or polling.
	InFlight() []archive.TaskStatus
}

func NewCoordinator(
	exchanger authorization.Exchanger,
	repo authorization.Repository,
	jobs archive.JobClient,
	retriever Retriever,
	revoker Revoker,
	cfg Config,
) Coordinator {

	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}

	completions := make(chan archive.Completion, cfg.Buffer)

	return &coordinator{
		exchanger: exchanger,
		repo:      repo,
		runner:    archive.NewRunner(jobs, repo, completions, cfg.Poll),
		retriever: retriever,
		revoker:   revoker,
		now:       time.Now,

		storeTimeout: cfg.StoreTimeout,

		accepted:    make(chan authorization.AuthorizationAccepted, cfg.Buffer),
		completions: completions,
		fetched:     make(chan fetchResult, cfg.Buffer),
		resets:      make(chan resetResult, cfg.Buffer),
		stopped:     make(chan struct{}),

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentCoordinator)).
			With(slog.String(util.PackageKey, util.PackagePipeline)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Coordinator = (*coordinator)(nil)

type coordinator struct {
	exchanger authorization.Exchanger
	repo      authorization.Repository
	runner    archive.Runner
	retriever Retriever
	revoker   Revoker
	now       func() time.Time

	// bounds each repository call made on the loop
	storeTimeout time.Duration

	accepted    chan authorization.AuthorizationAccepted
	completions chan archive.Completion
	fetched     chan fetchResult
	resets      chan resetResult

	stopped  chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup // spawned exchange, fetch and reset work

	logger *slog.Logger
}

// fetchResult reports a finished FetchAndStore back to the loop.
type fetchResult struct {
	archive.Completion
	err error
}

// resetResult reports a finished provider reset back to the loop.
type resetResult struct {
	ReadyToReset
	at  time.Time
	err error
}

func (c *coordinator) EmitAccepted(ctx context.Context, msg authorization.AuthorizationAccepted) error {

	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	select {
	case c.accepted <- msg:
		acceptedTotal.Inc()
		return nil
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *coordinator) InFlight() []archive.TaskStatus {
	return c.runner.InFlight()
}

func (c *coordinator) Run(ctx context.Context) error {

	c.logger.Info("pipeline coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.stopOnce.Do(func() { close(c.stopped) })
			c.wg.Wait()
			c.runner.Wait()
			c.logger.Info("pipeline coordinator stopped")
			return nil

		case msg := <-c.accepted:
			c.spawn(func() { c.exchange(ctx, msg) })

		case done := <-c.completions:
			c.handleCompletion(ctx, done)

		case res := <-c.fetched:
			c.commitDownload(ctx, res)

		case res := <-c.resets:
			c.commitReset(ctx, res)
		}
	}
}

// spawn runs fn off the loop, tracked for shutdown.
func (c *coordinator) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// exchange trades the code for a token, persists the record and starts its archive jobs.
func (c *coordinator) exchange(ctx context.Context, msg authorization.AuthorizationAccepted) {

	log := c.logger.With(slog.String("user_id", msg.UserId))

	record, err := c.exchanger.Exchange(ctx, msg)
	if err != nil {
		exchangesTotal.WithLabelValues("failed").Inc()
		log.Error("token exchange failed, authorization abandoned", slog.String("err", err.Error()))
		return
	}
	exchangesTotal.WithLabelValues("ok").Inc()

	if err := c.repo.Create(ctx, record); err != nil {
		log.Error("failed to persist authorization record", slog.String("err", err.Error()))
		return
	}

	job := archive.JobFor(record)
	if len(job.Resources) == 0 {
		log.Warn("authorization granted no resources, nothing to archive", slog.String("record_uuid", record.Uuid))
		return
	}

	if err := c.runner.Start(ctx, job); err != nil {
		log.Error("failed to start some archive tasks",
			slog.String("record_uuid", record.Uuid),
			slog.String("err", err.Error()))
	}
}

// bounded returns ctx limited to the store timeout.
func (c *coordinator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.storeTimeout)
}

// current reads the user's latest record and checks it is the one the work was started for.
func (c *coordinator) current(ctx context.Context, userId, recordUuid string) (*authorization.Record, error) {

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	record, err := c.repo.ReadLatest(ctx, userId)
	if err != nil {
		return nil, err
	}

	if record.Uuid != recordUuid {
		return nil, fmt.Errorf("%w: %s replaced by %s", authorization.ErrSupersededRecord, recordUuid, record.Uuid)
	}

	return record, nil
}
