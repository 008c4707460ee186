package authorization

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ResourceState tracks one resource through retrieval.  It only moves forward:
// granted -> initiated -> downloaded.
type ResourceState string

const (
	Granted    ResourceState = "granted"
	Initiated  ResourceState = "initiated"
	Downloaded ResourceState = "downloaded"
)

func (s ResourceState) rank() int {
	switch s {
	case Granted:
		return 1
	case Initiated:
		return 2
	case Downloaded:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is a known state.
func (s ResourceState) Valid() bool {
	return s.rank() > 0
}

// CanTransitionTo reports whether next is the single legal successor of s.
func (s ResourceState) CanTransitionTo(next ResourceState) bool {
	return s.Valid() && next.rank() == s.rank()+1
}

// AccessToken is replaced wholesale on exchange; only resource states change afterwards.
type AccessToken struct {
	Value            string
	ExpiresAt        time.Time
	GrantedResources map[string]ResourceState
}

// Record is one authorization of one user.  A new authorization creates a new record.
// A Record is not safe for concurrent use.
type Record struct {
	Uuid        string
	UserId      string
	State       string // anti-forgery token
	Code        string
	AccessToken *AccessToken
	CreatedAt   time.Time
	Retired     bool
	ResetAt     *time.Time
}

// NewRecord starts a record for an accepted authorization code.
func NewRecord(userId, state, code string, createdAt time.Time) *Record {
	return &Record{
		Uuid:      uuid.NewString(),
		UserId:    userId,
		State:     state,
		Code:      code,
		CreatedAt: createdAt.UTC(),
	}
}

// SetAccessToken replaces the access token wholesale.
func (r *Record) SetAccessToken(value string, expiresAt time.Time, resources []string) {
	granted := make(map[string]ResourceState, len(resources))
	for _, res := range resources {
		granted[res] = Granted
	}
	r.AccessToken = &AccessToken{
		Value:            value,
		ExpiresAt:        expiresAt.UTC(),
		GrantedResources: granted,
	}
}

// ResourceState returns the current state of resource.
func (r *Record) ResourceState(resource string) (ResourceState, error) {

	if r.AccessToken == nil {
		return "", ErrNoAccessToken
	}

	state, ok := r.AccessToken.GrantedResources[resource]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	return state, nil
}

// Transition moves resource to the next state, enforcing monotonic order.
func (r *Record) Transition(resource string, to ResourceState) error {

	from, err := r.ResourceState(resource)
	if err != nil {
		return err
	}

	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, resource, from, to)
	}

	r.AccessToken.GrantedResources[resource] = to
	return nil
}

// Resources returns every granted resource, sorted.
func (r *Record) Resources() []string {

	if r.AccessToken == nil {
		return nil
	}

	out := make([]string, 0, len(r.AccessToken.GrantedResources))
	for res := range r.AccessToken.GrantedResources {
		out = append(out, res)
	}
	sort.Strings(out)
	return out
}

// ResourcesIn returns the sorted resources currently in state.
func (r *Record) ResourcesIn(state ResourceState) []string {

	var out []string
	for _, res := range r.Resources() {
		if r.AccessToken.GrantedResources[res] == state {
			out = append(out, res)
		}
	}
	return out
}

// AllDownloaded is true only when there is at least one resource and every one is downloaded.
func (r *Record) AllDownloaded() bool {

	if r.AccessToken == nil || len(r.AccessToken.GrantedResources) == 0 {
		return false
	}

	for _, state := range r.AccessToken.GrantedResources {
		if state != Downloaded {
			return false
		}
	}
	return true
}

// Usable returns an error if the access token is missing or expired at now.
// A token is unusable at or after its expiry.
func (r *Record) Usable(now time.Time) error {

	if r.AccessToken == nil {
		return ErrNoAccessToken
	}

	if !now.Before(r.AccessToken.ExpiresAt) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, r.AccessToken.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {

	c := *r
	if r.AccessToken != nil {
		token := *r.AccessToken
		token.GrantedResources = maps.Clone(r.AccessToken.GrantedResources)
		c.AccessToken = &token
	}
	if r.ResetAt != nil {
		at := *r.ResetAt
		c.ResetAt = &at
	}
	return &c
}
