// Package state records which version of a source is installed per platform.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

type Store interface {
	// InstalledVersion returns the recorded version, or an empty string if
	// nothing has been recorded yet.
	InstalledVersion(ctx context.Context, sourceName string, platform manifest.Platform) (string, error)
	RecordInstalled(ctx context.Context, sourceName string, platform manifest.Platform, version string) error
}

func key(sourceName string, platform manifest.Platform) string {
	return fmt.Sprintf("%s@%s", sourceName, platform)
}

type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[string]string)}
}

func (m *MemoryStore) InstalledVersion(_ context.Context, sourceName string, platform manifest.Platform) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[key(sourceName, platform)], nil
}

func (m *MemoryStore) RecordInstalled(_ context.Context, sourceName string, platform manifest.Platform, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[key(sourceName, platform)] = version
	return nil
}
