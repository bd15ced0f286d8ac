package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v3"
)

type FileConfig struct {
	URL  string `yaml:"url" validate:"required"`
	Name string `yaml:"name"`
}

// SourceConfig describes one package and the upstream channel it is resolved
// from. Which fields apply depends on Type.
type SourceConfig struct {
	Name        string `yaml:"name" validate:"required,excludesall=/ "`
	Type        string `yaml:"type" validate:"required,oneof=github bucket scrape pinned"`
	Description string `yaml:"description"`

	// github
	Repo      string  `yaml:"repo"`
	TagPrefix *string `yaml:"tag_prefix"`

	// bucket
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	VersionPrefix string `yaml:"version_prefix"`
	DownloadURL   string `yaml:"download_url" validate:"omitempty,url"`

	// scrape
	IndexURL        string `yaml:"index_url" validate:"omitempty,url"`
	VersionIndexURL string `yaml:"version_index_url"`

	// bucket and scrape
	VersionPattern string `yaml:"version_pattern"`

	// pinned
	Version string                   `yaml:"version"`
	Files   map[string][]*FileConfig `yaml:"files" validate:"dive,dive,required"`

	IncludePrereleases bool              `yaml:"include_prereleases"`
	Assets             map[string]string `yaml:"assets"`
	PlatformMap        map[string]string `yaml:"platform_map"`
	Ext                string            `yaml:"ext"`
}

var validate = validator.New()

func (s *SourceConfig) requireFields(fields map[string]bool) error {
	for field, ok := range fields {
		if !ok {
			return fmt.Errorf("source %s: %s is required for type %s", s.Name, field, s.Type)
		}
	}
	return nil
}

// Validate checks the source configuration without building the source.
func (s *SourceConfig) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}
	var err error
	switch s.Type {
	case source.TypeGitHub:
		err = s.requireFields(map[string]bool{"repo": s.Repo != "", "assets": len(s.Assets) > 0})
	case source.TypeBucket:
		err = s.requireFields(map[string]bool{
			"bucket":          s.Bucket != "",
			"version_pattern": s.VersionPattern != "",
			"download_url":    s.DownloadURL != "",
			"assets":          len(s.Assets) > 0,
		})
	case source.TypeScrape:
		err = s.requireFields(map[string]bool{
			"index_url":       s.IndexURL != "",
			"version_pattern": s.VersionPattern != "",
			"assets":          len(s.Assets) > 0,
		})
	case source.TypePinned:
		err = s.requireFields(map[string]bool{"version": s.Version != "", "files": len(s.Files) > 0})
		if err == nil && len(s.Assets) > 0 {
			err = fmt.Errorf("source %s: pinned sources use files instead of assets", s.Name)
		}
	}
	if err != nil {
		return err
	}
	if _, err := parsePlatformMap(s.PlatformMap); err != nil {
		return fmt.Errorf("source %s: %w", s.Name, err)
	}
	return nil
}

func parsePlatformKeys[T any](m map[string]T) (map[manifest.Platform]T, error) {
	ret := make(map[manifest.Platform]T, len(m))
	for k, v := range m {
		p, err := manifest.ParsePlatform(k)
		if err != nil {
			return nil, err
		}
		ret[p] = v
	}
	return ret, nil
}

func parsePlatformMap(m map[string]string) (map[manifest.Platform]manifest.Platform, error) {
	withKeys, err := parsePlatformKeys(m)
	if err != nil {
		return nil, err
	}
	ret := make(map[manifest.Platform]manifest.Platform, len(withKeys))
	for from, to := range withKeys {
		p, err := manifest.ParsePlatform(to)
		if err != nil {
			return nil, err
		}
		ret[from] = p
	}
	return ret, nil
}

func (s *SourceConfig) tagPrefix() string {
	if s.TagPrefix == nil {
		return "v"
	}
	return *s.TagPrefix
}

// Build validates the configuration and constructs the source.
func (s *SourceConfig) Build(clients *Clients) (source.Source, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	platformMap, err := parsePlatformMap(s.PlatformMap)
	if err != nil {
		return nil, err
	}
	assets, err := parsePlatformKeys(s.Assets)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", s.Name, err)
	}

	switch s.Type {
	case source.TypeGitHub:
		return source.NewGitHub(clients.GitHub, source.GitHubOptions{
			Name:               s.Name,
			Repo:               s.Repo,
			TagPrefix:          s.tagPrefix(),
			IncludePrereleases: s.IncludePrereleases,
			Assets:             assets,
			PlatformMap:        platformMap,
			Ext:                s.Ext,
		})
	case source.TypeBucket:
		return source.NewBucket(clients.S3, source.BucketOptions{
			Name:               s.Name,
			Bucket:             s.Bucket,
			Prefix:             s.Prefix,
			VersionPattern:     s.VersionPattern,
			VersionPrefix:      s.VersionPrefix,
			IncludePrereleases: s.IncludePrereleases,
			Assets:             assets,
			PlatformMap:        platformMap,
			DownloadURL:        s.DownloadURL,
			Ext:                s.Ext,
		})
	case source.TypeScrape:
		return source.NewScrape(clients.HTTP, source.ScrapeOptions{
			Name:               s.Name,
			IndexURL:           s.IndexURL,
			VersionIndexURL:    s.VersionIndexURL,
			VersionPattern:     s.VersionPattern,
			IncludePrereleases: s.IncludePrereleases,
			Assets:             assets,
			PlatformMap:        platformMap,
			Ext:                s.Ext,
		})
	case source.TypePinned:
		files, err := parsePlatformKeys(s.Files)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name, err)
		}
		pinnedFiles := make(map[manifest.Platform][]source.PinnedFile, len(files))
		for p, fl := range files {
			for _, f := range fl {
				pinnedFiles[p] = append(pinnedFiles[p], source.PinnedFile{URL: f.URL, Name: f.Name})
			}
		}
		return source.NewPinned(source.PinnedOptions{
			Name:        s.Name,
			Version:     s.Version,
			Files:       pinnedFiles,
			PlatformMap: platformMap,
			Ext:         s.Ext,
		})
	}
	return nil, fmt.Errorf("source %s: unknown type %s", s.Name, s.Type)
}

type sourcesFile struct {
	Sources []*SourceConfig `yaml:"sources"`
}

// LoadSourcesFile reads a YAML sources file.
func LoadSourcesFile(path string) ([]*SourceConfig, error) {
	if path == "" {
		return nil, errors.New("sources file path cannot be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var sf sourcesFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("unmarshal sources file: %w", err)
	}
	if len(sf.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}
	return sf.Sources, nil
}
