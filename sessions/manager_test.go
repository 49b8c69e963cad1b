package sessions_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/storefakes"
)

var nowFixed = time.Unix(1700000000, 0)

func newManager(t *testing.T, store sessions.Store) *sessions.Manager {
	t.Helper()
	m, err := sessions.NewManager(store, zerolog.Nop(),
		sessions.WithNowTime(func() time.Time { return nowFixed }))
	require.NoError(t, err)
	return m
}

func authenticate(t *testing.T, m *sessions.Manager, expiry time.Time) {
	t.Helper()
	err := m.SetAuthenticated(sessions.AuthTokens{
		OAuth1: `{"oauth_token":"abc","oauth_token_secret":"xyz"}`,
		Bearer: &oauth2.Token{AccessToken: "bearer-abc", RefreshToken: "refresh-xyz", TokenType: "Bearer", Expiry: expiry},
	}, &profile.Profile{DisplayName: "john-d-1234", FullName: "John Doe", Email: "john.doe@example.com"})
	require.NoError(t, err)
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(m *sessions.Manager)
		expect bool
	}{
		{
			"empty session",
			func(m *sessions.Manager) {},
			false,
		},
		{
			"both tokens, no expiry",
			func(m *sessions.Manager) { authenticate(t, m, time.Time{}) },
			true,
		},
		{
			"both tokens, future expiry",
			func(m *sessions.Manager) { authenticate(t, m, nowFixed.Add(time.Hour)) },
			true,
		},
		{
			"both tokens, past expiry",
			func(m *sessions.Manager) { authenticate(t, m, nowFixed.Add(-time.Hour)) },
			false,
		},
		{
			"expiry inside skew margin",
			func(m *sessions.Manager) { authenticate(t, m, nowFixed.Add(10*time.Second)) },
			false,
		},
		{
			"oauth1 only is refreshable but not valid",
			func(m *sessions.Manager) {
				require.NoError(t, m.SetAuthenticated(sessions.AuthTokens{OAuth1: `{"oauth_token":"abc"}`}, nil))
			},
			false,
		},
		{
			"empty bearer access token",
			func(m *sessions.Manager) {
				require.NoError(t, m.SetAuthenticated(sessions.AuthTokens{
					OAuth1: `{"oauth_token":"abc"}`,
					Bearer: &oauth2.Token{},
				}, nil))
			},
			false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newManager(t, storefakes.NewFakeStore())
			tc.setup(m)
			require.Equal(t, tc.expect, m.IsValid())
		})
	}
}

func TestPersistAndReloadRoundTrip(t *testing.T) {
	store := storefakes.NewFakeStore()
	first := newManager(t, store)
	authenticate(t, first, nowFixed.Add(time.Hour))

	// Simulate a process restart: a fresh manager over the same store.
	second := newManager(t, store)
	require.NoError(t, second.Load())

	require.Equal(t, first.OAuth1Blob(), second.OAuth1Blob())
	require.Equal(t, first.Bearer().AccessToken, second.Bearer().AccessToken)
	require.Equal(t, first.Bearer().RefreshToken, second.Bearer().RefreshToken)
	require.Equal(t, first.Profile(), second.Profile())
	require.True(t, second.IsValid())
}

func TestLoadToleratesPartialState(t *testing.T) {
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(sessions.KeyOAuth1Token, `{"oauth_token":"abc","oauth_token_secret":"xyz"}`))
	// No bearer, no profile: crash-between-writes shape.

	m := newManager(t, store)
	require.NoError(t, m.Load())
	require.NotEmpty(t, m.OAuth1Blob())
	require.Nil(t, m.Bearer())
	require.Nil(t, m.Profile())
	require.False(t, m.IsValid())
}

func TestLoadIgnoresCorruptValues(t *testing.T) {
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(sessions.KeyOAuth2Token, "not json"))
	require.NoError(t, store.Set(sessions.KeyProfile, "{broken"))

	m := newManager(t, store)
	require.NoError(t, m.Load())
	require.Nil(t, m.Bearer())
	require.Nil(t, m.Profile())
}

func TestUpdateBearerReplacesOnlyBearer(t *testing.T) {
	store := storefakes.NewFakeStore()
	m := newManager(t, store)
	authenticate(t, m, nowFixed.Add(-time.Hour))
	require.False(t, m.IsValid())

	oauth1Before := m.OAuth1Blob()
	require.NoError(t, m.UpdateBearer(&oauth2.Token{AccessToken: "bearer-new", Expiry: nowFixed.Add(time.Hour)}))

	require.True(t, m.IsValid())
	require.Equal(t, oauth1Before, m.OAuth1Blob())
	require.Equal(t, "bearer-new", m.Bearer().AccessToken)

	reloaded := newManager(t, store)
	require.NoError(t, reloaded.Load())
	require.Equal(t, "bearer-new", reloaded.Bearer().AccessToken)
}

func TestSetAuthenticatedNilProfileClearsStoredOne(t *testing.T) {
	store := storefakes.NewFakeStore()
	m := newManager(t, store)
	authenticate(t, m, nowFixed.Add(time.Hour))
	require.True(t, store.Has(sessions.KeyProfile))

	// A later authentication with no profile must not leave the previous
	// account's name in the store.
	require.NoError(t, m.SetAuthenticated(sessions.AuthTokens{
		OAuth1: `{"oauth_token":"def","oauth_token_secret":"uvw"}`,
		Bearer: &oauth2.Token{AccessToken: "bearer-def", Expiry: nowFixed.Add(time.Hour)},
	}, nil))

	require.Nil(t, m.Profile())
	require.False(t, store.Has(sessions.KeyProfile))
	_, err := m.StoredProfile()
	require.Error(t, err)
}

func TestLogoutClearsEverything(t *testing.T) {
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(sessions.KeyLastSync, "2026-08-30T12:00:00Z"))

	m := newManager(t, store)
	authenticate(t, m, nowFixed.Add(time.Hour))
	require.True(t, m.IsValid())

	require.NoError(t, m.Logout())
	require.False(t, m.IsValid())
	require.Empty(t, m.OAuth1Blob())
	require.Nil(t, m.Bearer())
	require.Nil(t, m.Profile())
	require.Equal(t, 0, store.Len())

	// Idempotent.
	require.NoError(t, m.Logout())
}

func TestStoredProfileBypassesMemory(t *testing.T) {
	store := storefakes.NewFakeStore()
	require.NoError(t, store.Set(sessions.KeyProfile, `{"displayName":"john-d-1234"}`))

	m := newManager(t, store)
	require.Nil(t, m.Profile())

	p, err := m.StoredProfile()
	require.NoError(t, err)
	require.Equal(t, "john-d-1234", p.DisplayName)
}
