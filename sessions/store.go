package sessions

// Store is the durable key-value collaborator the session is persisted
// through. Implementations guarantee per-key atomicity only; no multi-key
// transactions are required or assumed. Secure storage (keychain, encrypted
// prefs) is the implementation's concern.
type Store interface {
	// Get returns the stored value, or autherrors.ErrKeyNotFound when absent.
	Get(key string) (string, error)

	// Set stores value under key, replacing any prior value.
	Set(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
