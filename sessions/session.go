// Package sessions owns the authenticated session: the token pair, the
// cached profile, local validity checks and persistence through a durable
// key-value collaborator.
package sessions

import "golang.org/x/oauth2"

// Durable storage keys. Each key is read and written independently; a crash
// between writes leaves a partial-but-loadable state. KeyLastSync is owned
// by the data-sync component and only touched here on logout.
const (
	KeyOAuth1Token = "auth.oauth1_token"
	KeyOAuth2Token = "auth.oauth2_token"
	KeyProfile     = "auth.profile"
	KeyLastSync    = "sync.last_sync"
)

// AuthTokens is the credential pair a successful login yields. OAuth1 is an
// opaque serialized blob: it is replayed later to mint fresh bearer tokens
// without re-authenticating. Only the bearer half is replaced on refresh.
type AuthTokens struct {
	OAuth1 string
	Bearer *oauth2.Token
}
