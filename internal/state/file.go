package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

// FileStore keeps installed versions in a JSON file. The file is re-read on
// every call, so several processes may share it as long as they do not
// record concurrently.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) load() ([]*manifest.InstalledVersion, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read state file: %w", err)
	}
	var versions []*manifest.InstalledVersion
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, fmt.Errorf("could not decode state file %s: %w", f.path, err)
	}
	return versions, nil
}

func (f *FileStore) InstalledVersion(_ context.Context, sourceName string, platform manifest.Platform) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions, err := f.load()
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if v.Source == sourceName && v.Platform == platform.String() {
			return v.Version, nil
		}
	}
	return "", nil
}

func (f *FileStore) RecordInstalled(_ context.Context, sourceName string, platform manifest.Platform, version string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	versions, err := f.load()
	if err != nil {
		return err
	}
	found := false
	for _, v := range versions {
		if v.Source == sourceName && v.Platform == platform.String() {
			v.Version = version
			found = true
		}
	}
	if !found {
		versions = append(versions, &manifest.InstalledVersion{Source: sourceName, Platform: platform.String(), Version: version})
	}
	sort.Slice(versions, func(i, j int) bool {
		if versions[i].Source != versions[j].Source {
			return versions[i].Source < versions[j].Source
		}
		return versions[i].Platform < versions[j].Platform
	})
	raw, err := json.MarshalIndent(versions, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(f.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.Write(raw); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return os.Rename(tmpFile.Name(), f.path)
}
