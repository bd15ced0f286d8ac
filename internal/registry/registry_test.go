package registry

import (
	"testing"

	"github.com/go-semantic-release/source-resolver/internal/config"
	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func newPinned(t *testing.T, name, version string) source.Source {
	s, err := source.NewPinned(source.PinnedOptions{
		Name:    name,
		Version: version,
		Files: map[manifest.Platform][]source.PinnedFile{
			manifest.MustParsePlatform("linux-amd64"): {{URL: "https://example.com/" + name + "-{version}.tar.gz"}},
		},
	})
	require.NoError(t, err)
	return s
}

func TestRegistryFind(t *testing.T) {
	r, err := New(newPinned(t, "foo", "1.0.0"), newPinned(t, "bar", "2.0.0"))
	require.NoError(t, err)
	require.Equal(t, []string{"foo", "bar"}, r.Names())
	require.Len(t, r.Sources(), 2)

	s, err := r.Find("Foo")
	require.NoError(t, err)
	require.Equal(t, "foo", s.Name())

	_, err = r.Find("baz")
	require.ErrorIs(t, err, source.ErrUnknownSource)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := New(newPinned(t, "foo", "1.0.0"), newPinned(t, "FOO", "2.0.0"))
	require.ErrorContains(t, err, "registered multiple times")
}

func TestNewFromConfig(t *testing.T) {
	r, err := NewFromConfig(config.Sources, &config.Clients{HTTP: source.NewHTTPClient(0, nil)})
	require.NoError(t, err)
	require.Len(t, r.Names(), len(config.Sources))

	pinned := func(name string) *config.SourceConfig {
		return &config.SourceConfig{
			Name:    name,
			Type:    "pinned",
			Version: "1.0.0",
			Files:   map[string][]*config.FileConfig{"linux-amd64": {{URL: "https://example.com/x.zip"}}},
		}
	}
	_, err = NewFromConfig([]*config.SourceConfig{pinned("foo"), pinned("foo")}, &config.Clients{})
	require.ErrorContains(t, err, "registered multiple times")

	invalid := pinned("bar")
	invalid.Version = ""
	_, err = NewFromConfig([]*config.SourceConfig{pinned("foo"), invalid}, &config.Clients{})
	require.ErrorContains(t, err, "version is required")
}
