package pseudonym

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Secret holds the hashing key for a single pass. Destroy zeroes the bytes;
// any later Use fails with ErrMissingKey.
type Secret struct {
	mu  sync.Mutex
	key []byte
}

func NewSecret(key []byte) *Secret {
	cp := make([]byte, len(key))
	copy(cp, key)
	return &Secret{key: cp}
}

// LoadSecret reads a key file. A single trailing newline is not part of the key.
func LoadSecret(path string) (*Secret, error) {
	if path == "" {
		return nil, ErrMissingKey
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	content = bytes.TrimSuffix(content, []byte("\n"))
	content = bytes.TrimSuffix(content, []byte("\r"))
	s := NewSecret(content)
	for i := range content {
		content[i] = 0
	}
	return s, nil
}

func (s *Secret) Use(fn func(key []byte) error) error {
	if s == nil {
		return ErrMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.key) == 0 {
		return ErrMissingKey
	}
	return fn(s.key)
}

func (s *Secret) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.key = nil
}

func (s *Secret) Available() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.key) > 0
}

// String keeps key material out of logs and fmt output.
func (s *Secret) String() string { return "[REDACTED]" }
