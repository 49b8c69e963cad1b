package sessions

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/profile"
)

// expiryMargin is subtracted from the bearer token lifetime when checking
// validity, to absorb clock skew between this host and the vendor.
const expiryMargin = 30 * time.Second

// Manager is the single owner of the in-memory session. Other components
// read it only through accessor methods; mutations always persist through
// the store.
type Manager struct {
	store   Store
	logger  zerolog.Logger
	nowFunc func() time.Time

	lock       sync.RWMutex
	oauth1Blob string
	bearer     *oauth2.Token
	profile    *profile.Profile
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = nowFunc
	}
}

// NewManager initializes a Manager over the given store.
func NewManager(store Store, logger zerolog.Logger, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	m := &Manager{store: store, logger: logger, nowFunc: time.Now}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Load restores the session from durable storage. Each key is read
// independently: missing or unreadable keys leave their field empty rather
// than failing the load, since a crash mid-persist can legitimately leave a
// partial state (tokens without profile is degraded but usable).
func (m *Manager) Load() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if blob, err := m.store.Get(KeyOAuth1Token); err == nil {
		m.oauth1Blob = blob
	} else if !errors.Is(err, autherrors.ErrKeyNotFound) {
		return errors.Wrap(err, "[Load] reading oauth1 token")
	}

	if raw, err := m.store.Get(KeyOAuth2Token); err == nil {
		var bearer oauth2.Token
		if err := json.Unmarshal([]byte(raw), &bearer); err != nil {
			m.logger.Warn().Err(err).Msg("Stored bearer token unreadable, ignoring")
		} else {
			m.bearer = &bearer
		}
	} else if !errors.Is(err, autherrors.ErrKeyNotFound) {
		return errors.Wrap(err, "[Load] reading oauth2 token")
	}

	if raw, err := m.store.Get(KeyProfile); err == nil {
		var p profile.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			m.logger.Warn().Err(err).Msg("Stored profile unreadable, ignoring")
		} else {
			m.profile = &p
		}
	} else if !errors.Is(err, autherrors.ErrKeyNotFound) {
		return errors.Wrap(err, "[Load] reading profile")
	}

	return nil
}

// OAuth1Blob returns the serialized OAuth1 credential, or an empty string.
func (m *Manager) OAuth1Blob() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.oauth1Blob
}

// Bearer returns a copy of the bearer token, or nil.
func (m *Manager) Bearer() *oauth2.Token {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.bearer == nil {
		return nil
	}
	bearer := *m.bearer
	return &bearer
}

// Profile returns a copy of the cached profile, or nil.
func (m *Manager) Profile() *profile.Profile {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// SetAuthenticated installs a freshly authenticated session and persists it.
// A nil profile clears any previously stored one: a stale name must never
// outlive the session it belonged to.
func (m *Manager) SetAuthenticated(tokens AuthTokens, p *profile.Profile) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.oauth1Blob = tokens.OAuth1
	m.bearer = tokens.Bearer
	m.profile = p

	if err := m.store.Set(KeyOAuth1Token, tokens.OAuth1); err != nil {
		return errors.Wrap(err, "[SetAuthenticated] persisting oauth1 token")
	}
	if err := m.persistBearerLocked(); err != nil {
		return err
	}
	return m.persistProfileLocked()
}

// UpdateBearer replaces only the bearer token, after a refresh.
func (m *Manager) UpdateBearer(bearer *oauth2.Token) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.bearer = bearer
	return m.persistBearerLocked()
}

// UpdateProfile replaces the cached profile and persists it.
func (m *Manager) UpdateProfile(p *profile.Profile) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.profile = p
	return m.persistProfileLocked()
}

func (m *Manager) persistBearerLocked() error {
	if m.bearer == nil {
		return nil
	}
	raw, err := json.Marshal(m.bearer)
	if err != nil {
		return errors.Wrap(err, "[persistBearer] json.Marshal")
	}
	return errors.Wrap(m.store.Set(KeyOAuth2Token, string(raw)), "[persistBearer] store.Set")
}

func (m *Manager) persistProfileLocked() error {
	if m.profile == nil {
		if err := m.store.Remove(KeyProfile); err != nil && !errors.Is(err, autherrors.ErrKeyNotFound) {
			return errors.Wrap(err, "[persistProfile] store.Remove")
		}
		return nil
	}
	raw, err := json.Marshal(m.profile)
	if err != nil {
		return errors.Wrap(err, "[persistProfile] json.Marshal")
	}
	return errors.Wrap(m.store.Set(KeyProfile, string(raw)), "[persistProfile] store.Set")
}

// StoredProfile re-reads the profile key from durable storage, bypassing the
// in-memory copy.
func (m *Manager) StoredProfile() (*profile.Profile, error) {
	raw, err := m.store.Get(KeyProfile)
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, errors.Wrap(err, "[StoredProfile] json.Unmarshal")
	}
	return &p, nil
}

// IsValid reports whether the session can authorize API calls right now:
// both tokens present and the bearer not past its local expiry. The check
// is conservative only; the server can still reject a locally valid token.
func (m *Manager) IsValid() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.oauth1Blob == "" || m.bearer == nil || m.bearer.AccessToken == "" {
		return false
	}
	if m.bearer.Expiry.IsZero() {
		return true
	}
	return m.nowFunc().Add(expiryMargin).Before(m.bearer.Expiry)
}

// Logout clears the in-memory session and every durable key, including the
// sync marker. It is idempotent.
func (m *Manager) Logout() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.oauth1Blob = ""
	m.bearer = nil
	m.profile = nil

	var firstErr error
	for _, key := range []string{KeyOAuth1Token, KeyOAuth2Token, KeyProfile, KeyLastSync} {
		if err := m.store.Remove(key); err != nil && !errors.Is(err, autherrors.ErrKeyNotFound) && firstErr == nil {
			firstErr = errors.Wrapf(err, "[Logout] removing %s", key)
		}
	}
	return firstErr
}
