package authorization

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdeslauriers/portability/pkg/data"
	"github.com/tdeslauriers/portability/pkg/provider"
)

type mockConsent struct {
	consentFunc func(state string) (string, error)
}

func (m *mockConsent) ConsentUrl(state string) (string, error) {
	if m.consentFunc != nil {
		return m.consentFunc(state)
	}
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state), nil
}

type mockEmitter struct {
	emitted []AuthorizationAccepted
	err     error
}

func (m *mockEmitter) EmitAccepted(ctx context.Context, msg AuthorizationAccepted) error {
	if m.err != nil {
		return m.err
	}
	m.emitted = append(m.emitted, msg)
	return nil
}

type mockCodeExchanger struct {
	exchangeFunc func(code, state string) (*provider.TokenResponse, error)
}

func (m *mockCodeExchanger) ExchangeCode(ctx context.Context, code, state string) (*provider.TokenResponse, error) {
	return m.exchangeFunc(code, state)
}

func stateFrom(t *testing.T, consentUrl string) string {
	t.Helper()
	u, err := url.Parse(consentUrl)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestInitiatorBegin(t *testing.T) {

	pending := NewPendingStore(time.Hour)
	init := NewInitiator(&mockConsent{}, pending)

	first, err := init.Begin("u1")
	require.NoError(t, err)
	second, err := init.Begin("u1")
	require.NoError(t, err)

	t1, t2 := stateFrom(t, first), stateFrom(t, second)
	assert.NotEmpty(t, t1)
	assert.NotEqual(t, t1, t2, "tokens are fresh per attempt")
	assert.Equal(t, 1, pending.Len(), "a second begin replaces the first")

	assert.ErrorIs(t, pending.Take("u1", t1), ErrStateMismatch)
	assert.NoError(t, pending.Take("u1", t2))
}

func TestInitiatorConfigurationError(t *testing.T) {

	pending := NewPendingStore(time.Hour)
	init := NewInitiator(&mockConsent{consentFunc: func(string) (string, error) {
		return "", fmt.Errorf("%w: oauth client id not set", ErrConfiguration)
	}}, pending)

	_, err := init.Begin("u1")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 0, pending.Len(), "nothing pending without a consent url")

	_, err = NewInitiator(&mockConsent{}, pending).Begin("")
	assert.Error(t, err)
}

func TestAcceptor(t *testing.T) {

	ctx := context.Background()

	t.Run("mismatch emits nothing and keeps pending", func(t *testing.T) {
		pending := NewPendingStore(time.Hour)
		pending.Put("u1", "t1")
		emitter := &mockEmitter{}

		err := NewAcceptor(pending, emitter).Accept(ctx, "u1", "forged", "c1")
		assert.ErrorIs(t, err, ErrStateMismatch)
		assert.Empty(t, emitter.emitted)
		assert.NoError(t, pending.Take("u1", "t1"), "original entry still takeable")
	})

	t.Run("unknown user", func(t *testing.T) {
		emitter := &mockEmitter{}
		err := NewAcceptor(NewPendingStore(time.Hour), emitter).Accept(ctx, "u9", "t1", "c1")
		assert.ErrorIs(t, err, ErrUnknownUser)
		assert.Empty(t, emitter.emitted)
	})

	t.Run("match emits once", func(t *testing.T) {
		pending := NewPendingStore(time.Hour)
		pending.Put("u1", "t1")
		emitter := &mockEmitter{}
		acceptor := NewAcceptor(pending, emitter)

		require.NoError(t, acceptor.Accept(ctx, "u1", "t1", "c1"))
		assert.Equal(t, []AuthorizationAccepted{{UserId: "u1", State: "t1", Code: "c1"}}, emitter.emitted)

		assert.ErrorIs(t, acceptor.Accept(ctx, "u1", "t1", "c1"), ErrUnknownUser, "replay rejected")
		assert.Len(t, emitter.emitted, 1)
	})

	t.Run("pipeline unavailable", func(t *testing.T) {
		pending := NewPendingStore(time.Hour)
		pending.Put("u1", "t1")
		emitter := &mockEmitter{err: context.Canceled}

		err := NewAcceptor(pending, emitter).Accept(ctx, "u1", "t1", "c1")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExchanger(t *testing.T) {

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := AuthorizationAccepted{UserId: "u1", State: "t1", Code: "c1"}

	tests := []struct {
		name      string
		exchange  func(code, state string) (*provider.TokenResponse, error)
		wantErr   error
		resources []string
	}{
		{
			name: "granted resources in granted state",
			exchange: func(code, state string) (*provider.TokenResponse, error) {
				assert.Equal(t, "c1", code)
				assert.Equal(t, "t1", state)
				return &provider.TokenResponse{
					AccessToken: "a1",
					ExpiresIn:   3600,
					Scope:       provider.ScopePrefix + "myactivity.search " + provider.ScopePrefix + "myactivity.maps",
				}, nil
			},
			resources: []string{"myactivity.maps", "myactivity.search"},
		},
		{
			name: "nothing granted still yields a record",
			exchange: func(code, state string) (*provider.TokenResponse, error) {
				return &provider.TokenResponse{AccessToken: "a1", ExpiresIn: 3600, Scope: "openid"}, nil
			},
			resources: []string{},
		},
		{
			name: "provider rejection",
			exchange: func(code, state string) (*provider.TokenResponse, error) {
				return nil, errors.New("HTTP 400: invalid_grant")
			},
			wantErr: ErrTokenExchangeFailed,
		},
		{
			name: "no expiry",
			exchange: func(code, state string) (*provider.TokenResponse, error) {
				return &provider.TokenResponse{AccessToken: "a1"}, nil
			},
			wantErr: ErrTokenExchangeFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewExchanger(&mockCodeExchanger{exchangeFunc: tc.exchange}).(*exchanger)
			e.now = func() time.Time { return now }

			record, err := e.Exchange(context.Background(), msg)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, record)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, "u1", record.UserId)
			assert.Equal(t, "t1", record.State)
			assert.Equal(t, "c1", record.Code)
			require.NotNil(t, record.AccessToken)
			assert.Equal(t, "a1", record.AccessToken.Value)
			assert.Equal(t, now.Add(time.Hour), record.AccessToken.ExpiresAt)
			assert.ElementsMatch(t, tc.resources, record.Resources())
			assert.ElementsMatch(t, record.Resources(), record.ResourcesIn(Granted))
		})
	}
}

func TestRecordRowsEncryptSecrets(t *testing.T) {

	cryptor, err := data.NewServiceAesGcmKey(base64.StdEncoding.EncodeToString(data.GenerateAesGcmKey()))
	require.NoError(t, err)

	record := newTestRecord("myactivity.search", "myactivity.maps")
	require.NoError(t, record.Transition("myactivity.search", Initiated))
	record.CreatedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	record.AccessToken.ExpiresAt = record.CreatedAt.Add(time.Hour)

	row, err := toRecordRow(record, cryptor)
	require.NoError(t, err)
	assert.NotEqual(t, "c1", row.AuthorizationCode)
	assert.NotEqual(t, "a1", row.AccessToken.String)
	assert.Equal(t, "t1", row.AntiForgeryToken)
	assert.True(t, row.ResetAt.IsZero())

	now := data.CustomTime{Time: time.Now().UTC()}
	resources := toResourceRows(record, now)
	require.Len(t, resources, 2)

	back, err := fromRows(row, resources, cryptor)
	require.NoError(t, err)
	assert.Equal(t, record, back)

	resources[0].State = "exploded"
	_, err = fromRows(row, resources, cryptor)
	assert.Error(t, err)
}
