package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

type BucketOptions struct {
	Name   string
	Bucket string
	// Prefix restricts the listing used to find the latest version.
	Prefix string
	// VersionPattern is matched against every object key below Prefix, its
	// first capture group is the version.
	VersionPattern string
	// VersionPrefix is the listing prefix for the objects of one version and
	// may use the {version} placeholder. Defaults to Prefix.
	VersionPrefix      string
	IncludePrereleases bool
	// Assets maps a platform to the regular expression its object key must
	// match.
	Assets      map[manifest.Platform]string
	PlatformMap map[manifest.Platform]manifest.Platform
	// DownloadURL is the public base URL object keys are appended to.
	DownloadURL string
	Ext         string
}

// Bucket resolves versions from the object listing of an S3 compatible
// bucket, e.g. a Google Cloud Storage bucket through its interoperability API.
type Bucket struct {
	opts      BucketOptions
	client    s3.ListObjectsV2APIClient
	versionRe *regexp.Regexp
	assets    *platformTable[string]
}

func NewBucket(client s3.ListObjectsV2APIClient, opts BucketOptions) (*Bucket, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%s: bucket is missing", opts.Name)
	}
	if _, err := url.Parse(opts.DownloadURL); err != nil || opts.DownloadURL == "" {
		return nil, fmt.Errorf("%s: invalid download url %q", opts.Name, opts.DownloadURL)
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
	if opts.VersionPrefix == "" {
		opts.VersionPrefix = opts.Prefix
	}
	return &Bucket{
		opts:      opts,
		client:    client,
		versionRe: versionRe,
		assets:    assets,
	}, nil
}

func (b *Bucket) Name() string {
	return b.opts.Name
}

func (b *Bucket) Type() string {
	return TypeBucket
}

func (b *Bucket) Platforms() manifest.Platforms {
	return b.assets.platforms()
}

func (b *Bucket) bucketError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return upstreamError(b.opts.Name, fmt.Errorf("bucket %s: %s: %s", b.opts.Bucket, apiErr.ErrorCode(), apiErr.ErrorMessage()))
	}
	return upstreamError(b.opts.Name, err)
}

// listKeys calls fn for every key below prefix in listing order until fn
// returns false.
func (b *Bucket) listKeys(ctx context.Context, prefix string, fn func(key string) bool) error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.opts.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return b.bucketError(err)
		}
		for _, obj := range page.Contents {
			if !fn(aws.ToString(obj.Key)) {
				return nil
			}
		}
	}
	return nil
}

func (b *Bucket) Latest(ctx context.Context) (string, error) {
	newest := &newestVersion{includePrereleases: b.opts.IncludePrereleases}
	err := b.listKeys(ctx, b.opts.Prefix, func(key string) bool {
		m := b.versionRe.FindStringSubmatch(key)
		if m == nil {
			return true
		}
		if raw, v, ok := parseVersion(m[1], ""); ok {
			newest.offer(raw, v)
		}
		return true
	})
	if err != nil {
		return "", err
	}
	return newest.result(b.opts.Name)
}

func (b *Bucket) GetURL(ctx context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	channel, pattern, ok := b.assets.lookup(platform)
	if !ok {
		return nil, unsupportedPlatformError(b.opts.Name, platform)
	}
	keyRe, err := expandPattern(pattern, version, channel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.opts.Name, err)
	}

	var found string
	err = b.listKeys(ctx, expand(b.opts.VersionPrefix, version, channel, false), func(key string) bool {
		if keyRe.MatchString(key) {
			found = key
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, fmt.Errorf("%w: %s has no object for %s@%s", ErrVersionNotFound, b.opts.Name, platform, version)
	}
	dlURL, err := url.JoinPath(b.opts.DownloadURL, found)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.opts.Name, err)
	}
	return &manifest.FetchManifest{
		URL: []string{dlURL},
		Ext: inferExt(b.opts.Ext, found),
	}, nil
}
