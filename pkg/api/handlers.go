package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/authorization"
	"github.com/tdeslauriers/portability/pkg/connect"
	"github.com/tdeslauriers/portability/pkg/pipeline"
	"github.com/tdeslauriers/portability/pkg/validate"
)

// ClientIdHeader carries the id of the user the request acts for.
const ClientIdHeader = "X-Client-Id"

// ConsentResponse is the body of GET /auth.
type ConsentResponse struct {
	Url string `json:"url"`
}

// CallbackCmd is the body of POST /auth, the provider redirect relayed by the client.
type CallbackCmd struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

// ValidateCmd checks the callback fields before they reach the pending store.
func (cmd CallbackCmd) ValidateCmd() error {

	if err := validate.IsValidState(cmd.State); err != nil {
		return err
	}

	if err := validate.IsValidCode(cmd.Code); err != nil {
		return err
	}

	return nil
}

// AuthHandler is the front door of the authorization flow.
type AuthHandler interface {
	// HandleConsent begins an authorization and returns the consent url.
	HandleConsent(w http.ResponseWriter, r *http.Request)

	// HandleCallback accepts the authorization code for a pending authorization.
	HandleCallback(w http.ResponseWriter, r *http.Request)
}

func NewAuthHandler(initiator authorization.Initiator, acceptor authorization.Acceptor) AuthHandler {
	return &authHandler{
		initiator: initiator,
		acceptor:  acceptor,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentFrontDoor)).
			With(slog.String(util.PackageKey, util.PackageApi)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ AuthHandler = (*authHandler)(nil)

type authHandler struct {
	initiator authorization.Initiator
	acceptor  authorization.Acceptor

	logger *slog.Logger
}

func (h *authHandler) HandleConsent(w http.ResponseWriter, r *http.Request) {

	userId, err := clientId(r)
	if err != nil {
		h.logger.Error("invalid consent request", slog.String("err", err.Error()))
		e := connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: err.Error()}
		e.SendJsonErr(w)
		return
	}

	url, err := h.initiator.Begin(userId)
	if err != nil {
		h.logger.Error("failed to begin authorization",
			slog.String("user_id", userId),
			slog.String("err", err.Error()))
		h.handleErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ConsentResponse{Url: url}); err != nil {
		h.logger.Error("failed to encode consent response", slog.String("err", err.Error()))
		e := connect.ErrorHttp{StatusCode: http.StatusInternalServerError, Message: "failed to encode consent response"}
		e.SendJsonErr(w)
		return
	}
}

func (h *authHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {

	userId, err := clientId(r)
	if err != nil {
		h.logger.Error("invalid callback request", slog.String("err", err.Error()))
		e := connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: err.Error()}
		e.SendJsonErr(w)
		return
	}

	var cmd CallbackCmd
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&cmd); err != nil {
		h.logger.Error("failed to decode callback request body", slog.String("err", err.Error()))
		e := connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: "improperly formatted json"}
		e.SendJsonErr(w)
		return
	}

	if err := cmd.ValidateCmd(); err != nil {
		h.logger.Error("invalid callback request", slog.String("user_id", userId), slog.String("err", err.Error()))
		e := connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: err.Error()}
		e.SendJsonErr(w)
		return
	}

	if err := h.acceptor.Accept(r.Context(), userId, cmd.State, cmd.Code); err != nil {
		h.handleErr(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleErr maps authorization errors to http errors.
func (h *authHandler) handleErr(w http.ResponseWriter, err error) {

	var e connect.ErrorHttp
	switch {
	case errors.Is(err, authorization.ErrUnknownUser):
		e = connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: authorization.ErrUnknownUser.Error()}
	case errors.Is(err, authorization.ErrStateMismatch):
		e = connect.ErrorHttp{StatusCode: http.StatusBadRequest, Message: authorization.ErrStateMismatch.Error()}
	case errors.Is(err, pipeline.ErrStopped):
		e = connect.ErrorHttp{StatusCode: http.StatusServiceUnavailable, Message: "service is shutting down"}
	case errors.Is(err, authorization.ErrConfiguration):
		e = connect.ErrorHttp{StatusCode: http.StatusInternalServerError, Message: "authorization is not configured"}
	default:
		e = connect.ErrorHttp{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
	}
	e.SendJsonErr(w)
}

// clientId reads and validates the user id header.
func clientId(r *http.Request) (string, error) {

	id := r.Header.Get(ClientIdHeader)
	if id == "" {
		return "", fmt.Errorf("%s header is required", ClientIdHeader)
	}

	if err := validate.IsValidUserId(id); err != nil {
		return "", fmt.Errorf("invalid %s header: %v", ClientIdHeader, err)
	}

	return id, nil
}
