package source

import (
	"context"
	"fmt"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

type PinnedFile struct {
	// URL may use the {version}, {os} and {arch} placeholders.
	URL  string
	Name string
}

type PinnedOptions struct {
	Name        string
	Version     string
	Files       map[manifest.Platform][]PinnedFile
	PlatformMap map[manifest.Platform]manifest.Platform
	Ext         string
}

// Pinned serves a single fixed version and never talks to the network.
type Pinned struct {
	opts  PinnedOptions
	files *platformTable[[]PinnedFile]
}

func NewPinned(opts PinnedOptions) (*Pinned, error) {
	if opts.Version == "" {
		return nil, fmt.Errorf("%s: pinned version is missing", opts.Name)
	}
	for p, files := range opts.Files {
		if len(files) == 0 {
			return nil, fmt.Errorf("%s: no files for %s", opts.Name, p)
		}
		named := 0
		for _, f := range files {
			if f.URL == "" {
				return nil, fmt.Errorf("%s: file without url for %s", opts.Name, p)
			}
			if f.Name != "" {
				named++
			}
		}
		if named != 0 && named != len(files) {
			return nil, fmt.Errorf("%s: either all or no files of %s need a name", opts.Name, p)
		}
	}
	files, err := newPlatformTable(opts.Files, opts.PlatformMap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	return &Pinned{opts: opts, files: files}, nil
}

func (p *Pinned) Name() string {
	return p.opts.Name
}

func (p *Pinned) Type() string {
	return TypePinned
}

func (p *Pinned) Platforms() manifest.Platforms {
	return p.files.platforms()
}

func (p *Pinned) Latest(_ context.Context) (string, error) {
	return p.opts.Version, nil
}

func (p *Pinned) GetURL(_ context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	channel, files, ok := p.files.lookup(platform)
	if !ok {
		return nil, unsupportedPlatformError(p.opts.Name, platform)
	}
	if version != p.opts.Version {
		return nil, fmt.Errorf("%w: %s is pinned to %s, not %s", ErrVersionNotFound, p.opts.Name, p.opts.Version, version)
	}
	m := &manifest.FetchManifest{URL: make([]string, 0, len(files))}
	for _, f := range files {
		m.URL = append(m.URL, expand(f.URL, version, channel, false))
		if f.Name != "" {
			m.Name = append(m.Name, f.Name)
		}
	}
	primary := m.URL[0]
	if len(m.Name) > 0 {
		primary = m.Name[0]
	}
	m.Ext = inferExt(p.opts.Ext, primary)
	return m, nil
}
