package authorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tdeslauriers/portability/internal/util"
)

// AuthorizationAccepted is emitted once a returned code has passed the anti-forgery check.
type AuthorizationAccepted struct {
	UserId string
	State  string
	Code   string
}

// Emitter hands accepted authorizations to the pipeline.
type Emitter interface {
	EmitAccepted(ctx context.Context, msg AuthorizationAccepted) error
}

// Acceptor validates the code the provider redirected back with.
type Acceptor interface {
	// Accept checks state against the pending token for userId.  On a match the
	// pending entry is consumed and the code is handed to the pipeline without
	// waiting for it to be processed.
	Accept(ctx context.Context, userId, state, code string) error
}

func NewAcceptor(pending PendingStore, emitter Emitter) Acceptor {
	return &acceptor{
		pending: pending,
		emitter: emitter,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentAcceptor)).
			With(slog.String(util.PackageKey, util.PackageAuthorization)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Acceptor = (*acceptor)(nil)

type acceptor struct {
	pending PendingStore
	emitter Emitter

	logger *slog.Logger
}

func (a *acceptor) Accept(ctx context.Context, userId, state, code string) error {

	if err := a.pending.Take(userId, state); err != nil {
		if errors.Is(err, ErrStateMismatch) {
			// possible forgery: the code is dropped
			a.logger.Warn("anti-forgery state mismatch, discarding authorization code", slog.String("user_id", userId))
		}
		return err
	}

	msg := AuthorizationAccepted{
		UserId: userId,
		State:  state,
		Code:   code,
	}

	if err := a.emitter.EmitAccepted(ctx, msg); err != nil {
		a.logger.Error("failed to hand accepted authorization to pipeline",
			slog.String("user_id", userId),
			slog.String("err", err.Error()))
		return fmt.Errorf("failed to emit accepted authorization: %w", err)
	}

	a.logger.Info("authorization code accepted", slog.String("user_id", userId))

	return nil
}
