package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/archive"
	"github.com/tdeslauriers/portability/pkg/authorization"
)

// handleCompletion validates a finished archive task and, if the record still
// wants it, fetches the archive off the loop.
func (c *coordinator) handleCompletion(ctx context.Context, done archive.Completion) {

	log := c.logger.With(
		slog.String(util.ComponentKey, util.ComponentDownload),
		slog.String("user_id", done.UserId),
		slog.String("record_uuid", done.RecordUuid),
		slog.String("resource", done.Resource))

	if done.Err != nil {
		downloadsTotal.WithLabelValues("archive_failed").Inc()
		log.Error("archive not retrieved", slog.String("err", done.Err.Error()))
		return
	}

	if err := c.downloadable(ctx, done); err != nil {
		downloadsTotal.WithLabelValues("rejected").Inc()
		log.Warn("archive completion rejected", slog.String("err", err.Error()))
		return
	}

	c.spawn(func() {
		err := c.retriever.FetchAndStore(ctx, done.UserId, done.Resource, done.Url)
		if err != nil {
			err = fmt.Errorf("%w: %v", authorization.ErrStorageFailed, err)
		}

		select {
		case c.fetched <- fetchResult{Completion: done, err: err}:
		case <-ctx.Done():
		}
	})
}

// downloadable checks the completion belongs to the user's current record, the
// token is still usable and the resource is waiting on its archive.
func (c *coordinator) downloadable(ctx context.Context, done archive.Completion) error {

	record, err := c.current(ctx, done.UserId, done.RecordUuid)
	if err != nil {
		return err
	}

	if err := record.Usable(c.now()); err != nil {
		return err
	}

	state, err := record.ResourceState(done.Resource)
	if err != nil {
		return err
	}

	if state != authorization.Initiated {
		return fmt.Errorf("%w: %s is %s", authorization.ErrResourceNotInitiated, done.Resource, state)
	}

	return nil
}

// commitDownload persists initiated -> downloaded for a stored archive and
// retires the record once every resource is downloaded.
func (c *coordinator) commitDownload(ctx context.Context, res fetchResult) {

	log := c.logger.With(
		slog.String(util.ComponentKey, util.ComponentDownload),
		slog.String("user_id", res.UserId),
		slog.String("record_uuid", res.RecordUuid),
		slog.String("resource", res.Resource))

	if res.err != nil {
		downloadsTotal.WithLabelValues("storage_failed").Inc()
		log.Error("archive retrieval failed, resource left initiated", slog.String("err", res.err.Error()))
		return
	}

	// the record may have changed while the archive was fetched
	record, err := c.current(ctx, res.UserId, res.RecordUuid)
	if err != nil {
		downloadsTotal.WithLabelValues("rejected").Inc()
		log.Warn("stored archive not recorded", slog.String("err", err.Error()))
		return
	}

	if err := record.Transition(res.Resource, authorization.Downloaded); err != nil {
		downloadsTotal.WithLabelValues("rejected").Inc()
		log.Warn("stored archive not recorded", slog.String("err", err.Error()))
		return
	}

	commitCtx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.repo.UpdateResourceState(commitCtx, record.Uuid, res.Resource, authorization.Initiated, authorization.Downloaded); err != nil {
		downloadsTotal.WithLabelValues("rejected").Inc()
		log.Error("failed to persist resource as downloaded", slog.String("err", err.Error()))
		return
	}

	downloadsTotal.WithLabelValues("stored").Inc()
	log.Info("resource downloaded")

	if !record.AllDownloaded() {
		return
	}

	// only the commit of the last resource gets here, and that commit succeeds once
	record.Retired = true
	retireCtx, cancelRetire := c.bounded(ctx)
	defer cancelRetire()

	if err := c.repo.Update(retireCtx, record.UserId, record); err != nil {
		log.Error("failed to retire authorization record", slog.String("err", err.Error()))
	} else {
		retiredTotal.Inc()
		log.Info("authorization retired, every resource downloaded")
	}

	c.resetWhenReady(ctx, ReadyToReset{
		UserId:      record.UserId,
		RecordUuid:  record.Uuid,
		accessToken: record.AccessToken.Value,
	})
}
