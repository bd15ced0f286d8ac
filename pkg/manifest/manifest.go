package manifest

import (
	"errors"
	"fmt"
)

// FetchManifest is the result of a successful resolution. URL and Name, when
// both are set, correspond positionally.
type FetchManifest struct {
	URL  []string `json:"url"`
	Name []string `json:"name,omitempty"`
	Ext  string   `json:"ext"`
}

func (m *FetchManifest) Validate() error {
	if len(m.URL) == 0 {
		return errors.New("manifest has no urls")
	}
	if len(m.Name) > 0 && len(m.Name) != len(m.URL) {
		return fmt.Errorf("manifest has %d urls but %d names", len(m.URL), len(m.Name))
	}
	for i, u := range m.URL {
		if u == "" {
			return fmt.Errorf("manifest url %d is empty", i)
		}
	}
	return nil
}

// FileName returns the explicit name of the i-th artifact, or an empty string.
func (m *FetchManifest) FileName(i int) string {
	if i < len(m.Name) {
		return m.Name[i]
	}
	return ""
}

type LatestResponse struct {
	Source  string `json:"source"`
	Version string `json:"version"`
}

type BatchLatestRequest struct {
	Sources []string `json:"sources"`
}

func (r *BatchLatestRequest) Validate() error {
	if len(r.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := make(map[string]bool, len(r.Sources))
	for _, s := range r.Sources {
		if seen[s] {
			return fmt.Errorf("source %s requested multiple times", s)
		}
		seen[s] = true
	}
	return nil
}

type BatchLatestResponse struct {
	Versions map[string]string `json:"versions"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// InstalledVersion is the version of a source last recorded as installed for
// a platform.
type InstalledVersion struct {
	Source   string `json:"source"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
}
