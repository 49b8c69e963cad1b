package oauth1_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/oauth1"
	"github.com/stretchr/testify/require"
)

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unreserved pass through", "abcXYZ019-._~", "abcXYZ019-._~"},
		{"space and slash", "a b~c-d_e.f/g+h", "a%20b~c-d_e.f%2Fg%2Bh"},
		{"ampersand and equals", "a&b=c", "a%26b%3Dc"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, oauth1.PercentEncode(tc.input))
		})
	}
}

func TestBaseStringSortsParameters(t *testing.T) {
	params := map[string]string{"b": "two words", "a": "1"}
	got := oauth1.BaseString("get", "http://example.com/request", params)
	require.Equal(t, "GET&http%3A%2F%2Fexample.com%2Frequest&a%3D1%26b%3Dtwo%2520words", got)

	// Building from a map is order-free; repeated construction is stable.
	for i := 0; i < 10; i++ {
		require.Equal(t, got, oauth1.BaseString("GET", "http://example.com/request", map[string]string{"a": "1", "b": "two words"}))
	}
}

func TestBaseStringSortsByEncodedName(t *testing.T) {
	// Raw order is a0 < a= ('0' sorts before '='), but after encoding the
	// order inverts: "a%3D" sorts before "a0". The encoded order is the one
	// the signature contract requires.
	params := map[string]string{"a0": "x", "a=": "y"}
	got := oauth1.BaseString("GET", "https://api.example.com/x", params)
	require.Equal(t, "GET&https%3A%2F%2Fapi.example.com%2Fx&a%253D%3Dy%26a0%3Dx", got)
}

func TestBaseStringChangesWithAnyParameter(t *testing.T) {
	base := oauth1.BaseString("GET", "http://example.com/request", map[string]string{"a": "1", "b": "2"})
	changed := oauth1.BaseString("GET", "http://example.com/request", map[string]string{"a": "1", "b": "3"})
	require.NotEqual(t, base, changed)
}

func TestSignKnownVector(t *testing.T) {
	params := map[string]string{
		"oauth_consumer_key":     "key",
		"oauth_nonce":            "abc123",
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        "1700000000",
		"oauth_version":          "1.0",
		"ticket":                 "ST-0123456789-abcdef",
	}
	base := oauth1.BaseString("GET", "https://connectapi.example.com/oauth-service/oauth/preauthorized", params)
	require.Equal(t,
		"GET&https%3A%2F%2Fconnectapi.example.com%2Foauth-service%2Foauth%2Fpreauthorized&oauth_consumer_key%3Dkey%26oauth_nonce%3Dabc123%26oauth_signature_method%3DHMAC-SHA1%26oauth_timestamp%3D1700000000%26oauth_version%3D1.0%26ticket%3DST-0123456789-abcdef",
		base)

	require.Equal(t, "cTsJe7eBZVSvLBQX6gDS1TcRNQU=", oauth1.Sign(base, "consumersecret", ""))
	require.Equal(t, "BZXLpDB9dvZ7AeJUdXVdwS/cAtg=", oauth1.Sign(base, "consumersecret", "tokensecret"))
}

func TestSignDeterministicAndTokenSecretSensitive(t *testing.T) {
	base := oauth1.BaseString("GET", "http://example.com/request", map[string]string{"a": "1", "b": "two words"})
	require.Equal(t, "GPr6UC+Eypa8DZQ3x5fMZXcv1GU=", oauth1.Sign(base, "secret", ""))
	require.Equal(t, oauth1.Sign(base, "secret", ""), oauth1.Sign(base, "secret", ""))
	require.NotEqual(t, oauth1.Sign(base, "secret", ""), oauth1.Sign(base, "secret", "other"))
}

func TestNonce(t *testing.T) {
	n1, err := oauth1.Nonce()
	require.NoError(t, err)
	require.Len(t, n1, 32) // 16 bytes hex encoded

	n2, err := oauth1.Nonce()
	require.NoError(t, err)
	require.NotEqual(t, n1, n2)
}

func TestAuthorizationHeader(t *testing.T) {
	signer := oauth1.NewSigner("key", "consumersecret",
		oauth1.WithNonceFunc(func() (string, error) { return "abc123", nil }),
		oauth1.WithNowTime(func() time.Time { return time.Unix(1700000000, 0) }),
	)

	header, err := signer.AuthorizationHeader("GET", "https://connectapi.example.com/oauth-service/oauth/preauthorized", "", "", map[string]string{
		"ticket": "ST-0123456789-abcdef",
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(header, "OAuth "))
	require.Contains(t, header, `oauth_consumer_key="key"`)
	require.Contains(t, header, `oauth_nonce="abc123"`)
	require.Contains(t, header, `oauth_signature_method="HMAC-SHA1"`)
	require.Contains(t, header, `oauth_timestamp="1700000000"`)
	require.Contains(t, header, `oauth_version="1.0"`)
	// The ticket participates in the signature but is not emitted into the header.
	require.NotContains(t, header, "ticket=")
	// Signature over the full parameter set, percent-encoded into the header.
	require.Contains(t, header, `oauth_signature="cTsJe7eBZVSvLBQX6gDS1TcRNQU%3D"`)
}

func TestAuthorizationHeaderWithToken(t *testing.T) {
	signer := oauth1.NewSigner("key", "consumersecret",
		oauth1.WithNonceFunc(func() (string, error) { return "abc123", nil }),
		oauth1.WithNowTime(func() time.Time { return time.Unix(1700000000, 0) }),
	)

	withToken, err := signer.AuthorizationHeader("POST", "https://connectapi.example.com/oauth-service/oauth/exchange/user/2.0", "tok", "toksecret", nil)
	require.NoError(t, err)
	require.Contains(t, withToken, `oauth_token="tok"`)

	withoutToken, err := signer.AuthorizationHeader("POST", "https://connectapi.example.com/oauth-service/oauth/exchange/user/2.0", "", "", nil)
	require.NoError(t, err)
	require.NotContains(t, withoutToken, "oauth_token=")
	require.NotEqual(t, withToken, withoutToken)
}
