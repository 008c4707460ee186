package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/authorization"
)

// resetWhenReady resets the provider grant off the loop.
func (c *coordinator) resetWhenReady(ctx context.Context, ready ReadyToReset) {

	c.spawn(func() {
		err := c.revoker.ResetAuthorization(ctx, ready.accessToken)
		if err != nil {
			err = fmt.Errorf("%w: %v", authorization.ErrResetFailed, err)
		}

		select {
		case c.resets <- resetResult{ReadyToReset: ready, at: c.now(), err: err}:
		case <-ctx.Done():
		}
	})
}

// commitReset stamps the record once the provider has reset the grant.  A failed
// reset is logged only; the downloads stand.
func (c *coordinator) commitReset(ctx context.Context, res resetResult) {

	log := c.logger.With(
		slog.String(util.ComponentKey, util.ComponentResetter),
		slog.String("user_id", res.UserId),
		slog.String("record_uuid", res.RecordUuid))

	if res.err != nil {
		resetsTotal.WithLabelValues("failed").Inc()
		log.Error("provider authorization not reset", slog.String("err", res.err.Error()))
		return
	}

	markCtx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.repo.MarkReset(markCtx, res.RecordUuid, res.at); err != nil {
		resetsTotal.WithLabelValues("unrecorded").Inc()
		log.Error("provider authorization reset but not recorded", slog.String("err", err.Error()))
		return
	}

	resetsTotal.WithLabelValues("ok").Inc()
	log.Info("provider authorization reset")
}
