package authorization

import (
	"errors"

	"github.com/tdeslauriers/portability/pkg/config"
)

// ErrConfiguration is shared with pkg/config so startup and Begin failures match the same sentinel.
var ErrConfiguration = config.ErrConfiguration

var (
	ErrUnknownUser           = errors.New("no pending authorization for user")
	ErrStateMismatch         = errors.New("anti-forgery state does not match pending authorization")
	ErrTokenExchangeFailed   = errors.New("token exchange failed")
	ErrArchiveInitiateFailed = errors.New("archive job initiation failed")
	ErrArchivePollFailed     = errors.New("archive job polling failed")
	ErrArchivePollTimeout    = errors.New("archive job polling exhausted")
	ErrStorageFailed         = errors.New("archive retrieval or storage failed")
	ErrResetFailed           = errors.New("authorization reset failed")

	ErrUnknownResource      = errors.New("resource not granted on authorization")
	ErrInvalidTransition    = errors.New("invalid resource state transition")
	ErrTokenExpired         = errors.New("access token expired")
	ErrNoAccessToken        = errors.New("authorization has no access token")
	ErrResourceNotInitiated = errors.New("resource archive not initiated")
	ErrSupersededRecord     = errors.New("authorization record superseded")
	ErrDuplicateTask        = errors.New("archive task already in flight")
	ErrRecordNotFound       = errors.New("authorization record not found")
)
