// Package auth is the public surface of the authentication subsystem. A
// Client drives the SSO handshake, the two-stage token exchange and the
// session lifecycle, and hands downstream fetchers a bearer capability.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/go-auth-client/internal/config"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sso"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/jrsteele09/go-auth-client/transport"
)

// Collaborators holds the external capabilities the Client consumes: the
// request transport (which must keep cookie continuity across one login)
// and the durable key-value store.
type Collaborators struct {
	Transport transport.Doer
	Store     sessions.Store
}

// Result is what a completed authentication yields.
type Result struct {
	Tokens  sessions.AuthTokens
	Profile *profile.Profile // nil when the profile fetch degraded
}

// Client owns one account session. Login, CompleteMFA, RefreshSession and
// Logout all mutate shared session state and therefore serialize on one
// lock; a login is a short sequential chain of round-trips, so callers
// never need to run them concurrently anyway.
type Client struct {
	cfg          config.Config
	sessions     *sessions.Manager
	orchestrator *sso.Orchestrator
	exchanger    *token.Exchanger
	profiles     *profile.Fetcher
	limiter      *rate.Limiter
	logger       zerolog.Logger

	lock      sync.Mutex
	challenge *sso.Challenge
}

type clientSettings struct {
	logger  zerolog.Logger
	nowFunc func() time.Time
	limiter *rate.Limiter
}

// Option defines a function type to modify the Client configuration.
type Option func(*clientSettings)

// WithLogger sets the logger used by the client and its components.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *clientSettings) {
		s.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *clientSettings) {
		s.nowFunc = nowFunc
	}
}

// WithLoginLimiter overrides the default login attempt limiter.
func WithLoginLimiter(limiter *rate.Limiter) Option {
	return func(s *clientSettings) {
		s.limiter = limiter
	}
}

// New initializes a Client with required collaborators and loads any
// persisted session from the store.
func New(cfg config.Config, collab Collaborators, options ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[New] config is required")
	}
	if collab.Transport == nil {
		return nil, errors.New("[New] transport is required")
	}
	if collab.Store == nil {
		return nil, errors.New("[New] store is required")
	}

	settings := &clientSettings{
		logger:  zerolog.Nop(),
		nowFunc: time.Now,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
	for _, opt := range options {
		opt(settings)
	}

	sessionManager, err := sessions.NewManager(collab.Store, settings.logger, sessions.WithNowTime(settings.nowFunc))
	if err != nil {
		return nil, err
	}
	orchestrator, err := sso.NewOrchestrator(collab.Transport, cfg.GetSSOBaseURL(), settings.logger)
	if err != nil {
		return nil, err
	}
	consumers, err := token.NewConsumerProvider(collab.Transport, cfg.GetConsumerURL(), settings.logger)
	if err != nil {
		return nil, err
	}
	exchanger, err := token.NewExchanger(collab.Transport, consumers, cfg.GetAPIBaseURL(), cfg.GetSSOBaseURL(),
		settings.logger, token.WithNowTime(settings.nowFunc))
	if err != nil {
		return nil, err
	}
	profiles, err := profile.NewFetcher(collab.Transport, cfg.GetAPIBaseURL(), settings.logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:          cfg,
		sessions:     sessionManager,
		orchestrator: orchestrator,
		exchanger:    exchanger,
		profiles:     profiles,
		limiter:      settings.limiter,
		logger:       settings.logger,
	}
	if err := c.sessions.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Login authenticates with email and password. On an MFA-enabled account it
// returns MFARequiredErr and parks the challenge; the caller collects a
// code and calls CompleteMFA. Any pending challenge from an earlier attempt
// is discarded first.
func (c *Client) Login(ctx context.Context, email, password string) (*Result, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.limiter.Allow() {
		c.logger.Warn().Msg("Login attempt rate limited")
		return nil, autherrors.ErrTooManyAttempts
	}
	c.challenge = nil

	outcome, err := c.orchestrator.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if outcome.Challenge != nil {
		c.challenge = outcome.Challenge
		return nil, autherrors.ErrMFARequired
	}
	return c.completeTicketLocked(ctx, outcome.Ticket)
}

// CompleteMFA finishes a login that stopped at an MFA challenge.
func (c *Client) CompleteMFA(ctx context.Context, code string) (*Result, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.challenge == nil {
		return nil, autherrors.ErrNoMFAChallenge
	}
	ticket, err := c.orchestrator.CompleteMFA(ctx, code, c.challenge)
	if err != nil {
		return nil, err
	}
	result, err := c.completeTicketLocked(ctx, ticket)
	if err != nil {
		return nil, err
	}
	c.challenge = nil
	return result, nil
}

// completeTicketLocked runs the ticket through the exchange pipeline and
// the profile fetch, then persists the session. Caller holds the lock.
func (c *Client) completeTicketLocked(ctx context.Context, ticket string) (*Result, error) {
	oauth1Token, err := c.exchanger.ExchangeTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	bearer, err := c.exchanger.ExchangeBearer(ctx, oauth1Token)
	if err != nil {
		return nil, err
	}
	blob, err := oauth1Token.Serialize()
	if err != nil {
		return nil, err
	}

	prof, err := c.profiles.Fetch(ctx, bearer.AccessToken)
	if err != nil {
		// Degraded, not fatal: tokens without a profile is a valid state.
		c.logger.Warn().Err(err).Msg("Profile fetch degraded, continuing without display name")
		prof = nil
	}

	tokens := sessions.AuthTokens{OAuth1: blob, Bearer: bearer}
	if err := c.sessions.SetAuthenticated(tokens, prof); err != nil {
		return nil, err
	}
	c.challenge = nil

	c.logger.Info().Bool("profile", prof != nil).Msg("Login complete")
	return &Result{Tokens: tokens, Profile: prof}, nil
}

// IsSessionValid reports whether the current session can authorize API
// calls without a refresh.
func (c *Client) IsSessionValid() bool {
	return c.sessions.IsValid()
}

// IsMFARequired reports whether a login attempt is parked on an MFA
// challenge awaiting CompleteMFA.
func (c *Client) IsMFARequired() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.challenge != nil
}

// RefreshSession mints a fresh bearer token from the stored OAuth1
// credential. It returns false on any failure - including having no stored
// credential, in which case no network call is made - and callers are
// expected to fall back to a full Login.
func (c *Client) RefreshSession(ctx context.Context) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.refreshLocked(ctx) == nil
}

// refreshLocked reports failures as ErrRefreshFailed so the cause stays
// distinguishable from a session that was never refreshable; the error never
// leaves the client, it is logged here and collapsed to false by callers.
func (c *Client) refreshLocked(ctx context.Context) error {
	blob := c.sessions.OAuth1Blob()
	if blob == "" {
		c.logger.Debug().Msg("No stored OAuth1 token, refresh not possible")
		return autherrors.Wrapf(autherrors.ErrRefreshFailed, "[RefreshSession] no stored OAuth1 token")
	}
	oauth1Token, err := token.ParseOAuth1Token(blob)
	if err != nil {
		err = autherrors.Wrapf(autherrors.ErrRefreshFailed, "[RefreshSession] stored OAuth1 token unreadable: %v", err)
		c.logger.Warn().Err(err).Msg("Session refresh failed")
		return err
	}
	bearer, err := c.exchanger.ExchangeBearer(ctx, oauth1Token)
	if err != nil {
		err = autherrors.Wrapf(autherrors.ErrRefreshFailed, "[RefreshSession] bearer exchange: %v", err)
		c.logger.Warn().Err(err).Msg("Session refresh failed")
		return err
	}
	if err := c.sessions.UpdateBearer(bearer); err != nil {
		err = autherrors.Wrapf(autherrors.ErrRefreshFailed, "[RefreshSession] persisting bearer: %v", err)
		c.logger.Warn().Err(err).Msg("Session refresh failed")
		return err
	}
	return nil
}

// Logout clears the in-memory session, any pending MFA challenge and every
// durable key. Idempotent.
func (c *Client) Logout() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.challenge = nil
	return c.sessions.Logout()
}

// DisplayName returns a usable account display name, trying in order: the
// in-memory profile, the durably stored profile, then one live fetch
// (refreshing the bearer first if needed). It returns an empty string when
// no usable name exists; callers must branch on emptiness rather than
// trust a placeholder.
func (c *Client) DisplayName(ctx context.Context) string {
	c.lock.Lock()
	defer c.lock.Unlock()

	if p := c.sessions.Profile(); p != nil && profile.UsableDisplayName(p.DisplayName) {
		return p.DisplayName
	}
	if p, err := c.sessions.StoredProfile(); err == nil && profile.UsableDisplayName(p.DisplayName) {
		return p.DisplayName
	}

	if !c.sessions.IsValid() && c.refreshLocked(ctx) != nil {
		return ""
	}
	bearer := c.sessions.Bearer()
	if bearer == nil {
		return ""
	}
	p, err := c.profiles.Fetch(ctx, bearer.AccessToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Live profile fetch for display name failed")
		return ""
	}
	if err := c.sessions.UpdateProfile(p); err != nil {
		c.logger.Warn().Err(err).Msg("Persisting refreshed profile failed")
	}
	return p.DisplayName
}

// BearerHeaders returns the Authorization header downstream endpoint
// fetchers attach to API requests. SessionExpiredErr is returned when the
// session cannot authorize calls right now.
func (c *Client) BearerHeaders() (map[string]string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	bearer := c.sessions.Bearer()
	if bearer == nil || !c.sessions.IsValid() {
		return nil, autherrors.ErrSessionExpired
	}
	return map[string]string{"Authorization": "Bearer " + bearer.AccessToken}, nil
}
