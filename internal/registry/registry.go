// Package registry maps package names to their constructed sources.
package registry

import (
	"fmt"
	"strings"

	"github.com/go-semantic-release/source-resolver/internal/config"
	"github.com/go-semantic-release/source-resolver/internal/source"
)

// Registry is built once at startup and is read-only afterwards.
type Registry struct {
	sources map[string]source.Source
	order   []source.Source
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New registers sources in the given order. Duplicate names are rejected.
func New(sources ...source.Source) (*Registry, error) {
	r := &Registry{
		sources: make(map[string]source.Source, len(sources)),
		order:   make([]source.Source, 0, len(sources)),
	}
	for _, s := range sources {
		name := normalizeName(s.Name())
		if name == "" {
			return nil, fmt.Errorf("source without name")
		}
		if _, ok := r.sources[name]; ok {
			return nil, fmt.Errorf("source %s is registered multiple times", s.Name())
		}
		r.sources[name] = s
		r.order = append(r.order, s)
	}
	return r, nil
}

// NewFromConfig builds every configured source. The first invalid or
// duplicate source fails the whole registry.
func NewFromConfig(sourceConfigs []*config.SourceConfig, clients *config.Clients) (*Registry, error) {
	sources := make([]source.Source, 0, len(sourceConfigs))
	for _, sCfg := range sourceConfigs {
		s, err := sCfg.Build(clients)
		if err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return New(sources...)
}

func (r *Registry) Find(name string) (source.Source, error) {
	s, ok := r.sources[normalizeName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", source.ErrUnknownSource, name)
	}
	return s, nil
}

// Sources returns all sources in registration order.
func (r *Registry) Sources() []source.Source {
	ret := make([]source.Source, len(r.order))
	copy(ret, r.order)
	return ret
}

func (r *Registry) Names() []string {
	ret := make([]string, len(r.order))
	for i, s := range r.order {
		ret[i] = s.Name()
	}
	return ret
}
