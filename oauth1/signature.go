// Package oauth1 implements the OAuth 1.0a HMAC-SHA1 request signing needed
// by the vendor's token endpoints: nonce generation, canonical base-string
// construction, signing and Authorization-header assembly.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const signatureMethod = "HMAC-SHA1"

// Nonce returns a cryptographically random 16-byte value, hex encoded.
func Nonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[Nonce] rand.Read")
	}
	return hex.EncodeToString(b), nil
}

// PercentEncode applies RFC 3986 percent encoding: unreserved characters
// (ALPHA / DIGIT / "-" / "." / "_" / "~") pass through, everything else
// becomes an uppercase %XX escape. url.QueryEscape is not usable here
// because it encodes spaces as "+".
func PercentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{c})))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~'
}

// BaseString builds the canonical signature base string for a request.
// rawURL must be the base URL without any query string; params must contain
// every parameter that will appear in the final request (oauth protocol
// parameters, query parameters and form body alike), or the server will
// reject the signature.
func BaseString(method, rawURL string, params map[string]string) string {
	// RFC 5849 3.4.1.3.2: ordering is over the percent-encoded names, not
	// the raw ones, with encoded values breaking ties.
	type pair struct{ name, value string }
	encoded := make([]pair, 0, len(params))
	for k, v := range params {
		encoded = append(encoded, pair{PercentEncode(k), PercentEncode(v)})
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].name != encoded[j].name {
			return encoded[i].name < encoded[j].name
		}
		return encoded[i].value < encoded[j].value
	})

	pairs := make([]string, 0, len(encoded))
	for _, p := range encoded {
		pairs = append(pairs, p.name+"="+p.value)
	}
	paramString := strings.Join(pairs, "&")

	return strings.ToUpper(method) + "&" + PercentEncode(rawURL) + "&" + PercentEncode(paramString)
}

// Sign computes the base64-encoded HMAC-SHA1 signature of baseString. The
// signing key is "encode(consumerSecret)&encode(tokenSecret)"; tokenSecret
// is empty for requests signed before any token has been issued.
func Sign(baseString, consumerSecret, tokenSecret string) string {
	key := PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Signer assembles signed OAuth1 Authorization headers for a fixed consumer
// identity. The nonce and clock sources are injectable for testing.
type Signer struct {
	consumerKey    string
	consumerSecret string
	nonceFunc      func() (string, error)
	nowFunc        func() time.Time
}

// SignerOption defines a function type to modify the Signer instance.
type SignerOption func(*Signer)

// WithNonceFunc sets the nonce source (primarily for testing)
func WithNonceFunc(f func() (string, error)) SignerOption {
	return func(s *Signer) {
		s.nonceFunc = f
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(f func() time.Time) SignerOption {
	return func(s *Signer) {
		s.nowFunc = f
	}
}

// NewSigner creates a Signer for the given consumer credentials.
func NewSigner(consumerKey, consumerSecret string, options ...SignerOption) *Signer {
	s := &Signer{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		nonceFunc:      Nonce,
		nowFunc:        time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// AuthorizationHeader builds a complete "OAuth ..." header value for a
// request. token/tokenSecret may be empty for two-legged requests. extra
// holds the request's query or body parameters: they are included in the
// signed parameter set but not emitted into the header itself.
func (s *Signer) AuthorizationHeader(method, rawURL, token, tokenSecret string, extra map[string]string) (string, error) {
	nonce, err := s.nonceFunc()
	if err != nil {
		return "", errors.Wrap(err, "[AuthorizationHeader] nonce")
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": signatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.nowFunc().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if token != "" {
		oauthParams["oauth_token"] = token
	}

	signed := make(map[string]string, len(oauthParams)+len(extra))
	for k, v := range extra {
		signed[k] = v
	}
	for k, v := range oauthParams {
		signed[k] = v
	}

	oauthParams["oauth_signature"] = Sign(BaseString(method, rawURL, signed), s.consumerSecret, tokenSecret)

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+`="`+PercentEncode(oauthParams[k])+`"`)
	}
	return "OAuth " + strings.Join(pairs, ", "), nil
}
