package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/go-semantic-release/source-resolver/internal/registry"
	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	linuxAmd64   = manifest.MustParsePlatform("linux-amd64")
	windowsAmd64 = manifest.MustParsePlatform("windows-amd64")
)

type fakeSource struct {
	name        string
	latest      string
	latestErr   error
	manifest    *manifest.FetchManifest
	platforms   manifest.Platforms
	latestCalls int
	getURLCalls int
}

func (f *fakeSource) Name() string                  { return f.name }
func (f *fakeSource) Type() string                  { return "fake" }
func (f *fakeSource) Platforms() manifest.Platforms { return f.platforms }

func (f *fakeSource) Latest(context.Context) (string, error) {
	f.latestCalls++
	return f.latest, f.latestErr
}

func (f *fakeSource) GetURL(_ context.Context, version string, platform manifest.Platform) (*manifest.FetchManifest, error) {
	f.getURLCalls++
	if !f.platforms.Has(platform) {
		return nil, fmt.Errorf("%w: %s", source.ErrUnsupportedPlatform, platform)
	}
	if version != f.latest {
		return nil, fmt.Errorf("%w: %s", source.ErrVersionNotFound, version)
	}
	return f.manifest, nil
}

func newFake(name, latest string) *fakeSource {
	return &fakeSource{
		name:      name,
		latest:    latest,
		platforms: manifest.Platforms{linuxAmd64},
		manifest: &manifest.FetchManifest{
			URL: []string{fmt.Sprintf("https://example.com/%s-%s.tar.gz", name, latest)},
			Ext: ".tar.gz",
		},
	}
}

func newResolver(t *testing.T, sources ...source.Source) *Resolver {
	log := logrus.New()
	log.Out = io.Discard
	reg, err := registry.New(sources...)
	require.NoError(t, err)
	return New(log, reg)
}

func TestCheckLatest(t *testing.T) {
	foo := newFake("foo", "1.2.3")
	r := newResolver(t, foo)

	v, err := r.CheckLatest(context.Background(), "foo")
	require.NoError(t, err)
	require.Equal(t, "1.2.3", v)

	_, err = r.CheckLatest(context.Background(), "bar")
	require.ErrorIs(t, err, source.ErrUnknownSource)

	foo.latestErr = fmt.Errorf("%w: boom", source.ErrUpstreamUnavailable)
	_, err = r.CheckLatest(context.Background(), "foo")
	require.ErrorIs(t, err, source.ErrUpstreamUnavailable)
	// no retries
	require.Equal(t, 2, foo.latestCalls)
}

func TestResolve(t *testing.T) {
	foo := newFake("foo", "1.2.3")
	r := newResolver(t, foo)

	m, err := r.Resolve(context.Background(), "foo", "1.2.3", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/foo-1.2.3.tar.gz"}, m.URL)

	_, err = r.Resolve(context.Background(), "foo", "1.2.3", windowsAmd64)
	require.ErrorIs(t, err, source.ErrUnsupportedPlatform)

	_, err = r.Resolve(context.Background(), "unknown", "1.2.3", linuxAmd64)
	require.ErrorIs(t, err, source.ErrUnknownSource)

	_, err = r.Resolve(context.Background(), "foo", "", linuxAmd64)
	require.ErrorContains(t, err, "version is required")
	require.Equal(t, 2, foo.getURLCalls)
}

func TestResolveRejectsInvalidManifest(t *testing.T) {
	foo := newFake("foo", "1.2.3")
	foo.manifest = &manifest.FetchManifest{URL: []string{"a", "b"}, Name: []string{"a"}}
	r := newResolver(t, foo)
	_, err := r.Resolve(context.Background(), "foo", "1.2.3", linuxAmd64)
	require.ErrorContains(t, err, "invalid manifest")
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	upToDate := newFake("uptodate", "1.0.0")
	outdated := newFake("outdated", "2.0.0")
	broken := newFake("broken", "3.0.0")
	broken.latestErr = fmt.Errorf("%w: 503", source.ErrUpstreamUnavailable)
	windowsOnly := newFake("windowsonly", "4.0.0")
	windowsOnly.platforms = manifest.Platforms{windowsAmd64}

	store := state.NewMemoryStore()
	require.NoError(t, store.RecordInstalled(ctx, "uptodate", linuxAmd64, "1.0.0"))
	require.NoError(t, store.RecordInstalled(ctx, "outdated", linuxAmd64, "1.9.0"))

	r := newResolver(t, upToDate, outdated, broken, windowsOnly)
	updates, err := r.Sync(ctx, linuxAmd64, store, false)
	require.ErrorContains(t, err, "1 of 3 sources failed")
	require.Len(t, updates, 3)

	require.Equal(t, &Update{Source: "uptodate", Platform: "linux-amd64", Installed: "1.0.0", Latest: "1.0.0", UpToDate: true}, updates[0])
	require.Equal(t, &Update{
		Source:    "outdated",
		Platform:  "linux-amd64",
		Installed: "1.9.0",
		Latest:    "2.0.0",
		Manifest:  outdated.manifest,
	}, updates[1])
	require.Equal(t, "broken", updates[2].Source)
	require.Contains(t, updates[2].Error, "upstream unavailable")

	require.Equal(t, 0, upToDate.getURLCalls)
	require.Equal(t, 0, windowsOnly.latestCalls)

	v, err := store.InstalledVersion(ctx, "outdated", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, "1.9.0", v)
}

func TestSyncRecord(t *testing.T) {
	ctx := context.Background()
	foo := newFake("foo", "2.0.0")
	store := state.NewMemoryStore()
	r := newResolver(t, foo)

	updates, err := r.Sync(ctx, linuxAmd64, store, true)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, "", updates[0].Installed)
	require.NotNil(t, updates[0].Manifest)

	v, err := store.InstalledVersion(ctx, "foo", linuxAmd64)
	require.NoError(t, err)
	require.Equal(t, "2.0.0", v)

	updates, err = r.Sync(ctx, linuxAmd64, store, true)
	require.NoError(t, err)
	require.True(t, updates[0].UpToDate)
	require.Equal(t, 1, foo.getURLCalls)
}

type failingStore struct{}

func (failingStore) InstalledVersion(context.Context, string, manifest.Platform) (string, error) {
	return "", errors.New("disk on fire")
}

func (failingStore) RecordInstalled(context.Context, string, manifest.Platform, string) error {
	return errors.New("disk on fire")
}

func TestSyncStoreError(t *testing.T) {
	r := newResolver(t, newFake("foo", "1.0.0"))
	updates, err := r.Sync(context.Background(), linuxAmd64, failingStore{}, false)
	require.Error(t, err)
	require.Contains(t, updates[0].Error, "could not read installed version")
}
