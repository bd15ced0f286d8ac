package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

type ScrapeOptions struct {
	Name string
	// IndexURL is the page listing all releases.
	IndexURL string
	// VersionIndexURL is the page listing the files of one release and may use
	// the {version} placeholder. Defaults to IndexURL.
	VersionIndexURL string
	// VersionPattern extracts versions from IndexURL, its first capture group
	// is the version.
	VersionPattern     string
	IncludePrereleases bool
	// Assets maps a platform to the pattern extracting its file name from
	// VersionIndexURL. If the pattern has a capture group, the first group is
	// the file name.
	Assets      map[manifest.Platform]string
	PlatformMap map[manifest.Platform]manifest.Platform
	Ext         string
}

// Scrape resolves versions from an HTML directory index. Index pages are
// treated as untrusted text and only ever searched with fixed patterns.
type Scrape struct {
	opts      ScrapeOptions
	client    *http.Client
	versionRe *regexp.Regexp
	assets    *platformTable[string]
}

func NewScrape(client *http.Client, opts ScrapeOptions) (*Scrape, error) {
	if opts.IndexURL == "" {
		return nil, fmt.Errorf("%s: index url is missing", opts.Name)
	}
	if opts.VersionIndexURL == "" {
		opts.VersionIndexURL = opts.IndexURL
	}
	versionRe, err := regexp.Compile(opts.VersionPattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid version pattern: %w", opts.Name, err)
	}
	if versionRe.NumSubexp() < 1 {
		return nil, fmt.Errorf("%s: version pattern needs a capture group", opts.Name)
	}
	if err := validatePatterns(opts.Assets); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	assets, err := newPlatformTable(opts.Assets, opts.PlatformMap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	return &Scrape{
		opts:      opts,
		client:    client,
		versionRe: versionRe,
		assets:    assets,
	}, nil
}

func (s *Scrape) Name() string {
	return s.opts.Name
}

func (s *Scrape) Type() string {
	return TypeScrape
}

func (s *Scrape) Platforms() manifest.Platforms {
	return s.assets.platforms()
}

func (s *Scrape) Latest(ctx context.Context) (string, error) {
	page, err := fetchText(ctx, s.client, s.opts.Name, s.opts.IndexURL)
	if err != nil {
		return "", err
	}
	newest := &newestVersion{includePrereleases: s.opts.IncludePrereleases}
	for _, m := range s.versionRe.FindAllStringSubmatch(page, -1) {
		if raw, v, ok := parseVersion(m[1], ""); ok {
			newest.offer(raw, v)
		}
	}
	return newest.result(s.opts.Name)
}

// uniqueMatches returns the distinct file names matched by re in page, in
// order of appearance.
func uniqueMatches(re *regexp.Regexp, page string) []string {
	seen := make(map[string]bool)
	ret := make([]string, 0)
	for _, m := range re.FindAllStringSubmatch(page, -1) {
		name := m[0]
		if len(m) > 1 {
			name = m[1]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		ret = append(ret, name)
	}
	return ret
}

func (s *Scrape) GetURL(ctx context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	channel, pattern, ok := s.assets.lookup(platform)
	if !ok {
		return nil, unsupportedPlatformError(s.opts.Name, platform)
	}
	fileRe, err := expandPattern(pattern, version, channel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.opts.Name, err)
	}

	indexURL := expand(s.opts.VersionIndexURL, version, channel, false)
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid index url %s: %w", s.opts.Name, indexURL, err)
	}
	page, err := fetchText(ctx, s.client, s.opts.Name, indexURL)
	if err != nil {
		return nil, err
	}

	files := uniqueMatches(fileRe, page)
	if len(files) != 1 {
		return nil, fmt.Errorf("%w: %s: expected one file for %s@%s in %s, found %d", ErrVersionNotFound, s.opts.Name, platform, version, indexURL, len(files))
	}
	ref, err := url.Parse(files[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid file name %q", ErrVersionNotFound, s.opts.Name, files[0])
	}
	return &manifest.FetchManifest{
		URL: []string{base.ResolveReference(ref).String()},
		Ext: inferExt(s.opts.Ext, ref.Path),
	}, nil
}
