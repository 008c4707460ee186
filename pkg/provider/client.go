package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/config"
	"github.com/tdeslauriers/portability/pkg/connect"
)

const maxBodyBytes = 1 << 20

// Client calls the data portability provider.
type Client interface {
	// ConsentUrl builds the url the user is redirected to for consent.  No network.
	ConsentUrl(state string) (string, error)

	// ExchangeCode trades an authorization code for an access token.
	ExchangeCode(ctx context.Context, code, state string) (*TokenResponse, error)

	// InitiateArchive starts an archive job for one resource, returning the job id.
	InitiateArchive(ctx context.Context, accessToken, resource string) (string, error)

	// ArchiveState polls an archive job.
	ArchiveState(ctx context.Context, accessToken, jobId string) (*ArchiveState, error)

	// ResetAuthorization revokes the user's grant so it can be re-authorized later.
	ResetAuthorization(ctx context.Context, accessToken string) error
}

// NewClient returns a provider client using the given http client.
func NewClient(cfg config.Provider, http connect.TlsClient) Client {
	return &client{
		cfg:  cfg,
		http: http,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentProvider)).
			With(slog.String(util.PackageKey, util.PackageProvider)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Client = (*client)(nil)

type client struct {
	cfg  config.Provider
	http connect.TlsClient

	logger *slog.Logger
}

// Scopes renders the space separated scope for resources.
func Scopes(resources []string) string {
	scopes := make([]string, 0, len(resources))
	for _, r := range resources {
		scopes = append(scopes, ScopePrefix+r)
	}
	return strings.Join(scopes, " ")
}

func (c *client) ConsentUrl(state string) (string, error) {

	switch {
	case c.cfg.ClientId == "":
		return "", fmt.Errorf("%w: oauth client id not set", config.ErrConfiguration)
	case c.cfg.RedirectUrl == "":
		return "", fmt.Errorf("%w: oauth redirect url not set", config.ErrConfiguration)
	case c.cfg.AuthUrl == "":
		return "", fmt.Errorf("%w: provider auth url not set", config.ErrConfiguration)
	case len(c.cfg.Resources) == 0:
		return "", fmt.Errorf("%w: no resources requested", config.ErrConfiguration)
	}

	consent, err := NewRequest(http.MethodGet, c.cfg.AuthUrl, consentSchema).
		With("client_id", c.cfg.ClientId).
		With("redirect_uri", c.cfg.RedirectUrl).
		With("scope", Scopes(c.cfg.Resources)).
		With("state", state).
		Url()
	if err != nil {
		return "", fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	return consent, nil
}

func (c *client) ExchangeCode(ctx context.Context, code, state string) (*TokenResponse, error) {

	req := NewRequest(http.MethodPost, c.cfg.TokenUrl, tokenSchema).
		With("code", code).
		With("state", state).
		With("redirect_uri", c.cfg.RedirectUrl).
		With("client_id", c.cfg.ClientId).
		With("client_secret", c.cfg.ClientSecret)

	var token TokenResponse
	if err := c.sendForm(ctx, req, &token); err != nil {
		return nil, err
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", ErrMalformedResponse)
	}

	return &token, nil
}

func (c *client) InitiateArchive(ctx context.Context, accessToken, resource string) (string, error) {

	req := NewRequest(http.MethodPost, c.cfg.ArchiveUrl+"portabilityArchive:initiate", initiateSchema).
		With("resources", resource).
		WithBearer(accessToken)

	var resp initiateResponse
	if err := c.sendQuery(ctx, req, &resp); err != nil {
		return "", err
	}

	if resp.ArchiveJobId == "" {
		return "", fmt.Errorf("%w: initiate response has no archiveJobId", ErrMalformedResponse)
	}

	c.logger.Info(fmt.Sprintf("archive job %s initiated for resource %s", resp.ArchiveJobId, resource))

	return resp.ArchiveJobId, nil
}

func (c *client) ArchiveState(ctx context.Context, accessToken, jobId string) (*ArchiveState, error) {

	if jobId == "" {
		return nil, fmt.Errorf("%w: archive job id is empty", ErrInvalidRequest)
	}

	endpoint := c.cfg.ArchiveUrl + "archiveJobs/" + url.PathEscape(jobId) + "/portabilityArchiveState"
	req := NewRequest(http.MethodGet, endpoint, archiveStateSchema).WithBearer(accessToken)

	var state ArchiveState
	if err := c.sendQuery(ctx, req, &state); err != nil {
		return nil, err
	}

	if state.State == "" {
		return nil, fmt.Errorf("%w: archive state response has no state", ErrMalformedResponse)
	}

	if state.State == JobComplete && len(state.Urls) == 0 {
		return nil, fmt.Errorf("%w: archive job %s complete without urls", ErrMalformedResponse, jobId)
	}

	return &state, nil
}

func (c *client) ResetAuthorization(ctx context.Context, accessToken string) error {

	req := NewRequest(http.MethodPost, c.cfg.ArchiveUrl+"authorization:reset", resetSchema).
		WithBearer(accessToken)

	return c.sendQuery(ctx, req, nil)
}

// sendForm posts the request parameters as an url encoded form body.
func (c *client) sendForm(ctx context.Context, r *Request, out interface{}) error {

	values, err := r.Values()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.Endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", r.schema.Name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, r, out)
}

// sendQuery sends the request parameters in the query string with an empty body.
func (c *client) sendQuery(ctx context.Context, r *Request, out interface{}) error {

	endpoint, err := r.Url()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", r.schema.Name, err)
	}
	if r.Method == http.MethodPost {
		req.ContentLength = 0
	}

	return c.do(req, r, out)
}

func (c *client) do(req *http.Request, r *Request, out interface{}) error {

	req.Header.Set("Accept", "application/json")
	if r.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.Bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call provider %s endpoint: %w", r.schema.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read provider %s response: %w", r.schema.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &connect.ErrorHttp{
			StatusCode: resp.StatusCode,
			Message:    errorDetail(body),
		}
		c.logger.Error(fmt.Sprintf("provider %s call failed", r.schema.Name),
			slog.Int("status", resp.StatusCode),
			slog.String("err", e.Message))
		return e
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s response: %v", ErrMalformedResponse, r.schema.Name, err)
	}

	return nil
}

// errorDetail extracts a readable message from either provider error shape.
func errorDetail(body []byte) string {

	var oe oauthError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Error != "" {
		if oe.ErrorDescription != "" {
			return oe.Error + ": " + oe.ErrorDescription
		}
		return oe.Error
	}

	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
		if ae.Error.Status != "" {
			return ae.Error.Status + ": " + ae.Error.Message
		}
		return ae.Error.Message
	}

	detail := strings.TrimSpace(string(body))
	if len(detail) > 200 {
		detail = detail[:200] + "..."
	}
	if detail == "" {
		detail = "empty response body"
	}
	return detail
}
