package provider

import "errors"

// ScopePrefix prefixes every data portability resource to form its oauth scope.
const ScopePrefix string = "https://www.googleapis.com/auth/dataportability."

// ErrMalformedResponse is returned when a 2xx provider body is missing required content.
var ErrMalformedResponse = errors.New("malformed provider response")

// TokenResponse is the provider's answer to an authorization code exchange.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	Scope        string `json:"scope"`      // space separated granted scopes
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type initiateResponse struct {
	ArchiveJobId string `json:"archiveJobId"`
}

// JobState is the provider's lifecycle state of an archive job.
type JobState string

const (
	JobStateUnspecified JobState = "STATE_UNSPECIFIED"
	JobInProgress       JobState = "IN_PROGRESS"
	JobComplete         JobState = "COMPLETE"
	JobFailed           JobState = "FAILED"
	JobCancelled        JobState = "CANCELLED"
)

// ArchiveState is one poll of an archive job.
type ArchiveState struct {
	Name  string   `json:"name,omitempty"`
	State JobState `json:"state"`
	Urls  []string `json:"urls,omitempty"` // signed download urls once complete
}

// Terminal reports whether the job will not change state again.
func (s JobState) Terminal() bool {
	return s == JobComplete || s == JobFailed || s == JobCancelled
}

// oauthError is the token endpoint error body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// apiError is the data portability api error body.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
