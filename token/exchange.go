package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/oauth1"
	"github.com/jrsteele09/go-auth-client/transport"
)

// Fixed vendor endpoint paths. These must match the server byte-for-byte.
const (
	preauthorizedPath = "/oauth-service/oauth/preauthorized"
	exchangePath      = "/oauth-service/oauth/exchange/user/2.0"
)

const defaultBearerLifetime = 3600 * time.Second

// OAuth1Token is the long-lived signing credential minted from a service
// ticket. It is serialized into the session so later bearer refreshes can
// replay it without re-authenticating.
type OAuth1Token struct {
	Token         string `json:"oauth_token"`
	Secret        string `json:"oauth_token_secret"`
	MFAToken      string `json:"mfa_token,omitempty"`
	MFAExpiration string `json:"mfa_expiration_timestamp,omitempty"`
}

// Serialize renders the token as the opaque blob stored in the session.
func (t *OAuth1Token) Serialize() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "[OAuth1Token.Serialize] json.Marshal")
	}
	return string(data), nil
}

// ParseOAuth1Token restores a token from its serialized blob.
func ParseOAuth1Token(blob string) (*OAuth1Token, error) {
	var t OAuth1Token
	if err := json.Unmarshal([]byte(blob), &t); err != nil {
		return nil, errors.Wrap(err, "[ParseOAuth1Token] json.Unmarshal")
	}
	if t.Token == "" || t.Secret == "" {
		return nil, errors.New("[ParseOAuth1Token] blob missing oauth_token or oauth_token_secret")
	}
	return &t, nil
}

// Exchanger runs the two-stage token exchange pipeline.
type Exchanger struct {
	doer          transport.Doer
	consumers     *ConsumerProvider
	apiBaseURL    string
	ssoBaseURL    string
	logger        zerolog.Logger
	nowFunc       func() time.Time
	signerOptions []oauth1.SignerOption
}

// ExchangerOption defines a function type to modify the Exchanger instance.
type ExchangerOption func(*Exchanger)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		e.nowFunc = nowFunc
	}
}

// WithSignerOptions passes options through to the per-request signer
// (primarily for testing with deterministic nonces).
func WithSignerOptions(opts ...oauth1.SignerOption) ExchangerOption {
	return func(e *Exchanger) {
		e.signerOptions = opts
	}
}

// NewExchanger initializes an Exchanger with required dependencies.
func NewExchanger(doer transport.Doer, consumers *ConsumerProvider, apiBaseURL, ssoBaseURL string, logger zerolog.Logger, options ...ExchangerOption) (*Exchanger, error) {
	if doer == nil {
		return nil, errors.New("[NewExchanger] transport is required")
	}
	if consumers == nil {
		return nil, errors.New("[NewExchanger] consumer provider is required")
	}
	if apiBaseURL == "" || ssoBaseURL == "" {
		return nil, errors.New("[NewExchanger] apiBaseURL and ssoBaseURL are required")
	}

	e := &Exchanger{
		doer:       doer,
		consumers:  consumers,
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		ssoBaseURL: strings.TrimRight(ssoBaseURL, "/"),
		logger:     logger,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e, nil
}

// ExchangeTicket trades a service ticket for an OAuth1 token (stage one).
// Any non-200 or missing-field response is fatal for the login attempt.
func (e *Exchanger) ExchangeTicket(ctx context.Context, ticket string) (*OAuth1Token, error) {
	consumer, err := e.consumers.Get(ctx)
	if err != nil {
		return nil, err
	}

	baseURL := e.apiBaseURL + preauthorizedPath
	params := map[string]string{
		"ticket":             ticket,
		"login-url":          e.ssoBaseURL + "/embed",
		"accepts-mfa-tokens": "true",
	}

	signer := oauth1.NewSigner(consumer.Key, consumer.Secret, e.signerOptions...)
	authHeader, err := signer.AuthorizationHeader("GET", baseURL, "", "", params)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	resp, err := e.doer.Do(ctx, "GET", baseURL+"?"+query.Encode(), nil, map[string]string{
		"Authorization": authHeader,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[ExchangeTicket] preauthorized request")
	}
	if resp.Status != 200 {
		e.logger.Error().Int("status", resp.Status).Str("body", string(resp.Body)).Msg("Ticket exchange rejected")
		return nil, autherrors.NewTokenExchangeError(autherrors.StageTicket,
			fmt.Errorf("preauthorized endpoint returned status %d", resp.Status))
	}

	values, err := url.ParseQuery(string(resp.Body))
	if err != nil {
		return nil, autherrors.NewTokenExchangeError(autherrors.StageTicket, err)
	}
	t := &OAuth1Token{
		Token:         values.Get("oauth_token"),
		Secret:        values.Get("oauth_token_secret"),
		MFAToken:      values.Get("mfa_token"),
		MFAExpiration: values.Get("mfa_expiration_timestamp"),
	}
	if t.Token == "" || t.Secret == "" {
		return nil, autherrors.NewTokenExchangeError(autherrors.StageTicket,
			errors.New("response missing oauth_token or oauth_token_secret"))
	}

	e.logger.Info().Bool("mfa_token", t.MFAToken != "").Msg("Service ticket exchanged for OAuth1 token")
	return t, nil
}

type bearerResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// ExchangeBearer trades an OAuth1 token for an OAuth2 bearer token (stage
// two). The OAuth1 token stays reusable afterwards; this is also the whole
// of a session refresh.
func (e *Exchanger) ExchangeBearer(ctx context.Context, t *OAuth1Token) (*oauth2.Token, error) {
	consumer, err := e.consumers.Get(ctx)
	if err != nil {
		return nil, err
	}

	baseURL := e.apiBaseURL + exchangePath
	form := url.Values{}
	params := map[string]string{}
	if t.MFAToken != "" {
		form.Set("mfa_token", t.MFAToken)
		params["mfa_token"] = t.MFAToken
	}

	signer := oauth1.NewSigner(consumer.Key, consumer.Secret, e.signerOptions...)
	authHeader, err := signer.AuthorizationHeader("POST", baseURL, t.Token, t.Secret, params)
	if err != nil {
		return nil, err
	}

	resp, err := e.doer.Do(ctx, "POST", baseURL, strings.NewReader(form.Encode()), map[string]string{
		"Authorization": authHeader,
		"Content-Type":  "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, errors.Wrap(err, "[ExchangeBearer] exchange request")
	}
	if resp.Status != 200 {
		e.logger.Error().Int("status", resp.Status).Str("body", string(resp.Body)).Msg("Bearer exchange rejected")
		return nil, autherrors.NewTokenExchangeError(autherrors.StageBearer,
			fmt.Errorf("exchange endpoint returned status %d", resp.Status))
	}

	var bearer bearerResponse
	if err := json.Unmarshal(resp.Body, &bearer); err != nil {
		return nil, autherrors.NewTokenExchangeError(autherrors.StageBearer, err)
	}
	if bearer.AccessToken == "" {
		return nil, autherrors.NewTokenExchangeError(autherrors.StageBearer,
			errors.New("response missing access_token"))
	}

	lifetime := defaultBearerLifetime
	if bearer.ExpiresIn > 0 {
		lifetime = time.Duration(bearer.ExpiresIn) * time.Second
	}
	expiry := e.nowFunc().Add(lifetime)
	if claimed, ok := bearerClaimExpiry(bearer.AccessToken); ok && claimed.Before(expiry) {
		expiry = claimed
	}

	tokenType := bearer.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	e.logger.Info().Time("expiry", expiry).Msg("OAuth1 token exchanged for bearer token")
	return &oauth2.Token{
		AccessToken:  bearer.AccessToken,
		RefreshToken: bearer.RefreshToken,
		TokenType:    tokenType,
		Expiry:       expiry,
	}, nil
}

// bearerClaimExpiry reads the exp claim out of a JWT-shaped bearer token
// without verifying it. The local expiry check is conservative only - the
// server stays authoritative - so the earlier of the declared lifetime and
// the claimed expiry wins. Opaque tokens simply report no claim.
func bearerClaimExpiry(accessToken string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
