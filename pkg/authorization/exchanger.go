package authorization

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/provider"
)

// CodeExchanger trades an authorization code for an access token at the provider.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, state string) (*provider.TokenResponse, error)
}

// Exchanger turns an accepted authorization into a record holding an access token.
type Exchanger interface {
	// Exchange calls the provider token endpoint and returns an unsaved record whose
	// granted resources are all in the granted state.  Nothing is persisted here.
	Exchange(ctx context.Context, msg AuthorizationAccepted) (*Record, error)
}

func NewExchanger(client CodeExchanger) Exchanger {
	return &exchanger{
		client: client,
		now:    time.Now,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentExchanger)).
			With(slog.String(util.PackageKey, util.PackageAuthorization)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Exchanger = (*exchanger)(nil)

type exchanger struct {
	client CodeExchanger
	now    func() time.Time

	logger *slog.Logger
}

func (e *exchanger) Exchange(ctx context.Context, msg AuthorizationAccepted) (*Record, error) {

	record := NewRecord(msg.UserId, msg.State, msg.Code, e.now())

	token, err := e.client.ExchangeCode(ctx, msg.Code, msg.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	if token.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: token response has no usable expires_in (%d)", ErrTokenExchangeFailed, token.ExpiresIn)
	}

	resources := ExtractResources(token.Scope)
	if len(resources) == 0 {
		e.logger.Warn("token granted no data portability resources",
			slog.String("user_id", msg.UserId),
			slog.String("scope", token.Scope))
	}

	record.SetAccessToken(token.AccessToken, e.now().Add(time.Duration(token.ExpiresIn)*time.Second), resources)

	e.logger.Info(fmt.Sprintf("access token obtained for %d resource(s)", len(resources)),
		slog.String("user_id", msg.UserId),
		slog.String("record_uuid", record.Uuid))

	return record, nil
}
