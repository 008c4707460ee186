package validate

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/tdeslauriers/portability/internal/util"
)

const (
	UserIdMin   int    = 1
	UserIdMax   int    = 128
	UserIdRegex string = `^[A-Za-z0-9._@:+\-]+$`

	// anti-forgery tokens are issued as uuids, but accept any opaque token the provider echoes back
	StateMin   int    = 16
	StateMax   int    = 128
	StateRegex string = `^[A-Za-z0-9._~\-]+$`

	CodeMin   int    = 1
	CodeMax   int    = 2048
	CodeRegex string = `^[\x21-\x7e]+$` // printable ascii, no whitespace

	// ResourcePattern is the one resource family the pipeline can archive, eg, myactivity.search.
	// Granted scopes are matched with the same pattern.
	ResourceMax     int    = 64
	ResourcePattern string = `myactivity\.\w+`
	ResourceRegex   string = `^` + ResourcePattern + `$`

	UuidPattern string = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`
)

var (
	userIdRgx   = regexp.MustCompile(UserIdRegex)
	stateRgx    = regexp.MustCompile(StateRegex)
	codeRgx     = regexp.MustCompile(CodeRegex)
	resourceRgx = regexp.MustCompile(ResourceRegex)
	uuidRgx     = regexp.MustCompile(UuidPattern)
)

// logger is built per call so it picks up the handler installed by main.
func logger() *slog.Logger {
	return slog.Default().
		With(slog.String(util.ComponentKey, util.ComponentValidate)).
		With(slog.String(util.PackageKey, util.PackageValidate)).
		With(slog.String(util.ServiceKey, util.ServicePortability))
}

// IsValidUserId checks the opaque external user id passed by the upstream gateway.
func IsValidUserId(id string) error {

	if TooShort(id, UserIdMin) || TooLong(id, UserIdMax) {
		return fmt.Errorf("user id must be between %d and %d characters in length", UserIdMin, UserIdMax)
	}

	if !userIdRgx.MatchString(id) {
		return fmt.Errorf("user id includes illegal characters")
	}

	return nil
}

// IsValidState checks the anti-forgery token echoed back by the consent redirect.
func IsValidState(state string) error {

	if TooShort(state, StateMin) || TooLong(state, StateMax) {
		return fmt.Errorf("state must be between %d and %d characters in length", StateMin, StateMax)
	}

	if !stateRgx.MatchString(state) {
		return fmt.Errorf("state includes illegal characters")
	}

	return nil
}

func IsValidCode(code string) error {

	if TooShort(code, CodeMin) || TooLong(code, CodeMax) {
		return fmt.Errorf("authorization code must be between %d and %d characters in length", CodeMin, CodeMax)
	}

	if !codeRgx.MatchString(code) {
		return fmt.Errorf("authorization code includes illegal characters")
	}

	return nil
}

func IsValidResource(resource string) error {

	if TooLong(resource, ResourceMax) || !resourceRgx.MatchString(resource) {
		return fmt.Errorf("invalid resource name %q", resource)
	}

	return nil
}

func IsValidUuid(uuid string) bool {
	return len(uuid) == 36 && uuidRgx.MatchString(uuid)
}

func TooShort(field interface{}, min int) bool {

	switch f := field.(type) {
	case string:
		return len(strings.TrimSpace(f)) < min
	case []byte:
		return len(f) < min
	default:
		logger().Error(fmt.Sprintf("min length check only takes string or byte slice: %v", reflect.TypeOf(field)))
		return false
	}
}

func TooLong(field interface{}, max int) bool {

	switch f := field.(type) {
	case string:
		return len(strings.TrimSpace(f)) > max
	case []byte:
		return len(f) > max
	default:
		logger().Error(fmt.Sprintf("max length check only takes string or byte slice: %v", reflect.TypeOf(field)))
		return false
	}
}
