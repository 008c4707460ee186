package authorization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(resources ...string) *Record {
	r := NewRecord("u1", "t1", "c1", time.Now())
	r.SetAccessToken("a1", time.Now().Add(time.Hour), resources)
	return r
}

func TestResourceStateTransitions(t *testing.T) {

	tests := []struct {
		from, to ResourceState
		legal    bool
	}{
		{Granted, Initiated, true},
		{Initiated, Downloaded, true},
		{Granted, Downloaded, false},
		{Initiated, Granted, false},
		{Downloaded, Initiated, false},
		{Downloaded, Downloaded, false},
		{Granted, Granted, false},
		{ResourceState("bogus"), Initiated, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.legal, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestRecordTransition(t *testing.T) {

	r := newTestRecord("myactivity.search", "myactivity.maps")

	require.NoError(t, r.Transition("myactivity.search", Initiated))
	assert.ErrorIs(t, r.Transition("myactivity.search", Initiated), ErrInvalidTransition)
	assert.ErrorIs(t, r.Transition("myactivity.maps", Downloaded), ErrInvalidTransition, "granted cannot skip initiated")
	require.NoError(t, r.Transition("myactivity.search", Downloaded))

	state, err := r.ResourceState("myactivity.search")
	require.NoError(t, err)
	assert.Equal(t, Downloaded, state)

	state, err = r.ResourceState("myactivity.maps")
	require.NoError(t, err)
	assert.Equal(t, Granted, state, "other resources untouched")

	_, err = r.ResourceState("myactivity.youtube")
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.ErrorIs(t, r.Transition("myactivity.youtube", Initiated), ErrUnknownResource)

	empty := NewRecord("u1", "t1", "c1", time.Now())
	_, err = empty.ResourceState("myactivity.search")
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestRecordAllDownloaded(t *testing.T) {

	assert.False(t, NewRecord("u1", "t1", "c1", time.Now()).AllDownloaded(), "no token")
	assert.False(t, newTestRecord().AllDownloaded(), "no resources")

	r := newTestRecord("myactivity.search", "myactivity.maps")
	for _, res := range r.Resources() {
		assert.False(t, r.AllDownloaded())
		require.NoError(t, r.Transition(res, Initiated))
		require.NoError(t, r.Transition(res, Downloaded))
	}
	assert.True(t, r.AllDownloaded())
	assert.Equal(t, []string{"myactivity.maps", "myactivity.search"}, r.ResourcesIn(Downloaded))
	assert.Empty(t, r.ResourcesIn(Granted))
}

func TestRecordUsable(t *testing.T) {

	now := time.Now()
	r := NewRecord("u1", "t1", "c1", now)
	assert.ErrorIs(t, r.Usable(now), ErrNoAccessToken)

	r.SetAccessToken("a1", now.Add(time.Minute), []string{"myactivity.search"})
	assert.NoError(t, r.Usable(now))
	assert.ErrorIs(t, r.Usable(now.Add(time.Minute)), ErrTokenExpired, "unusable at expiry")
	assert.ErrorIs(t, r.Usable(now.Add(time.Hour)), ErrTokenExpired)
}

func TestRecordClone(t *testing.T) {

	r := newTestRecord("myactivity.search")
	at := time.Now()
	r.ResetAt = &at

	c := r.Clone()
	require.NoError(t, c.Transition("myactivity.search", Initiated))
	*c.ResetAt = at.Add(time.Hour)

	state, err := r.ResourceState("myactivity.search")
	require.NoError(t, err)
	assert.Equal(t, Granted, state)
	assert.Equal(t, at, *r.ResetAt)
}
