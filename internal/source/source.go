// Package source implements the upstream channels a package version can be
// resolved from. Every Source answers two questions: what is the newest
// upstream version, and where can the artifacts of a given version be
// downloaded for a platform.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

const (
	TypeGitHub = "github"
	TypeBucket = "bucket"
	TypeScrape = "scrape"
	TypePinned = "pinned"
)

// Source is one upstream distribution channel of a package. Implementations
// hold no mutable state after construction and are safe for concurrent use.
type Source interface {
	Name() string
	Type() string
	// Platforms returns the platforms GetURL accepts.
	Platforms() manifest.Platforms
	// Latest returns the newest upstream version.
	Latest(ctx context.Context) (string, error)
	// GetURL returns the artifacts of version for platform. Unsupported
	// platforms are rejected before any network call is made.
	GetURL(ctx context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error)
}

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNoVersionFound      = errors.New("no version found")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrVersionNotFound     = errors.New("version not found")
	ErrUnknownSource       = errors.New("unknown source")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrUpstreamUnavailable, "upstream_unavailable"},
	{ErrNoVersionFound, "no_version_found"},
	{ErrUnsupportedPlatform, "unsupported_platform"},
	{ErrVersionNotFound, "version_not_found"},
	{ErrUnknownSource, "unknown_source"},
}

// Kind returns a short label for the error kind of err, "ok" for a nil error
// and "internal" for errors of no known kind.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

func upstreamError(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, name, err)
}

func unsupportedPlatformError(name string, p manifest.Platform) error {
	return fmt.Errorf("%w: %s does not support %s", ErrUnsupportedPlatform, name, p)
}
