package authorization

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// ConsentBuilder renders the provider consent url for an anti-forgery token.
type ConsentBuilder interface {
	ConsentUrl(state string) (string, error)
}

// Initiator starts an authorization for a user.
type Initiator interface {
	// Begin issues a fresh anti-forgery token for userId and returns the consent url
	// to redirect the user to.  Any earlier pending authorization is replaced.
	Begin(userId string) (string, error)
}

func NewInitiator(consent ConsentBuilder, pending PendingStore) Initiator {
	return &initiator{
		consent: consent,
		pending: pending,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentInitiator)).
			With(slog.String(util.PackageKey, util.PackageAuthorization)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Initiator = (*initiator)(nil)

type initiator struct {
	consent ConsentBuilder
	pending PendingStore

	logger *slog.Logger
}

func (i *initiator) Begin(userId string) (string, error) {

	if err := validate.IsValidUserId(userId); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownUser, err)
	}

	token, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate anti-forgery token: %w", err)
	}

	consentUrl, err := i.consent.ConsentUrl(token.String())
	if err != nil {
		i.logger.Error("failed to build consent url", slog.String("err", err.Error()))
		return "", err
	}

	// only record the token once there is a url to hand out
	i.pending.Put(userId, token.String())

	i.logger.Info("authorization initiated", slog.String("user_id", userId))

	return consentUrl, nil
}
