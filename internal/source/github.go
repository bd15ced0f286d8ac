package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/google/go-github/v59/github"
)

type GitHubOptions struct {
	Name string
	// Repo is the repository slug, e.g. "ninja-build/ninja".
	Repo string
	// TagPrefix is stripped from release tags to form versions and prepended
	// to versions to find the release of a version.
	TagPrefix          string
	IncludePrereleases bool
	// Assets maps a platform to the regular expression its asset name must
	// match. Patterns may use the {version}, {os} and {arch} placeholders.
	Assets      map[manifest.Platform]string
	PlatformMap map[manifest.Platform]manifest.Platform
	Ext         string
}

// GitHub resolves versions from the releases of a GitHub repository.
type GitHub struct {
	opts        GitHubOptions
	owner, repo string
	client      *github.Client
	assets      *platformTable[string]
}

func getOwnerRepo(fullRepo string) (string, string) {
	owner, repo, found := strings.Cut(fullRepo, "/")
	if !found {
		return "", ""
	}
	return owner, repo
}

func NewGitHub(client *github.Client, opts GitHubOptions) (*GitHub, error) {
	owner, repo := getOwnerRepo(opts.Repo)
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("%s: invalid repository %q", opts.Name, opts.Repo)
	}
	if err := validatePatterns(opts.Assets); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	assets, err := newPlatformTable(opts.Assets, opts.PlatformMap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Name, err)
	}
	return &GitHub{
		opts:   opts,
		owner:  owner,
		repo:   repo,
		client: client,
		assets: assets,
	}, nil
}

func (g *GitHub) Name() string {
	return g.opts.Name
}

func (g *GitHub) Type() string {
	return TypeGitHub
}

func (g *GitHub) Platforms() manifest.Platforms {
	return g.assets.platforms()
}

func (g *GitHub) Latest(ctx context.Context) (string, error) {
	newest := &newestVersion{includePrereleases: g.opts.IncludePrereleases}
	opts := &github.ListOptions{Page: 1, PerPage: 100}
	for {
		releases, resp, err := g.client.Repositories.ListReleases(ctx, g.owner, g.repo, opts)
		if err != nil {
			return "", upstreamError(g.opts.Name, err)
		}
		for _, release := range releases {
			// ignore drafts
			if release.GetDraft() {
				continue
			}
			if release.GetPrerelease() && !g.opts.IncludePrereleases {
				continue
			}
			raw, v, ok := parseVersion(release.GetTagName(), g.opts.TagPrefix)
			if !ok {
				continue
			}
			newest.offer(raw, v)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return newest.result(g.opts.Name)
}

func isNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

func (g *GitHub) GetURL(ctx context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	channel, pattern, ok := g.assets.lookup(platform)
	if !ok {
		return nil, unsupportedPlatformError(g.opts.Name, platform)
	}
	assetRe, err := expandPattern(pattern, version, channel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.opts.Name, err)
	}

	tag := g.opts.TagPrefix + version
	release, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s has no release %s", ErrVersionNotFound, g.opts.Name, tag)
	}
	if err != nil {
		return nil, upstreamError(g.opts.Name, err)
	}

	// first match in listing order wins
	for _, asset := range release.Assets {
		if assetRe.MatchString(asset.GetName()) {
			return &manifest.FetchManifest{
				URL: []string{asset.GetBrowserDownloadURL()},
				Ext: inferExt(g.opts.Ext, asset.GetName()),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: release %s of %s has no asset for %s", ErrVersionNotFound, tag, g.opts.Name, platform)
}
