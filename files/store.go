package files

import (
	"fmt"
	"io"
	"sync"
)

// FileStore is the file-hosting collaborator: it takes the bytes of an
// upload and returns the public URL they are served from.
type FileStore interface {
	Upload(key string, body io.Reader) (remoteURL string, err error)
}

// FakeFileStore keeps uploads in memory for tests.
type FakeFileStore struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{uploads: make(map[string][]byte)}
}

func (f *FakeFileStore) Upload(key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	f.uploads[key] = data
	f.mu.Unlock()
	return fmt.Sprintf("https://files.invalid/%s", key), nil
}

// Stored returns the bytes uploaded under key, for assertions.
func (f *FakeFileStore) Stored(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.uploads[key]
	return data, ok
}
