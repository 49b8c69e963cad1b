package sessions

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const storeFileName = "session-store.json"

// FileStore is the reference Store implementation: one JSON file holding the
// key-value map, rewritten atomically via a temp file and rename. Hosts with
// a platform keychain should supply their own Store instead.
type FileStore struct {
	path string
	lock sync.Mutex
}

// NewFileStore creates the folder if needed and returns a store backed by a
// file inside it.
func NewFileStore(folder string) (*FileStore, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] os.MkdirAll")
	}
	return &FileStore{path: filepath.Join(folder, storeFileName)}, nil
}

var _ Store = (*FileStore)(nil)

func (s *FileStore) Get(key string) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", autherrors.ErrKeyNotFound
	}
	return value, nil
}

func (s *FileStore) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(data)
}

func (s *FileStore) Remove(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return s.write(data)
}

func (s *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.read] os.ReadFile")
	}
	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "[FileStore.read] json.Unmarshal")
	}
	return data, nil
}

func (s *FileStore) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "[FileStore.write] json.Marshal")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.write] os.WriteFile")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "[FileStore.write] os.Rename")
}
