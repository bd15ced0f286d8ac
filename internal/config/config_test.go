package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-semantic-release/source-resolver/internal/source"
	"github.com/go-semantic-release/source-resolver/internal/state"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/require"
)

func testClients() *Clients {
	httpClient := source.NewHTTPClient(time.Second, nil)
	return &Clients{
		HTTP:   httpClient,
		GitHub: github.NewClient(httpClient),
	}
}

func TestNewResolverConfigFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "token")
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("PORT", "9000")
	cfg, err := NewResolverConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.GitHubToken)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, ":9000", cfg.GetServerAddr())
	require.Equal(t, "https://storage.googleapis.com", cfg.S3Endpoint)
	require.Equal(t, "file", cfg.StateBackend)
	require.Equal(t, 4, cfg.BatchConcurrency)
}

func TestNewInvocationConfigFromEnv(t *testing.T) {
	t.Setenv("_3PP_VERSION", "2.1.0")
	t.Setenv("_3PP_PLATFORM", "windows-amd64")
	t.Setenv("_3PP_PACKAGE", "ninja")
	cfg, err := NewInvocationConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, &InvocationConfig{Package: "ninja", Version: "2.1.0", Platform: "windows-amd64"}, cfg)
}

func TestLoadRootCAs(t *testing.T) {
	pool, err := (&ResolverConfig{}).LoadRootCAs()
	require.NoError(t, err)
	require.Nil(t, pool)

	bundle := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bundle, []byte("not a certificate"), 0o600))
	_, err = (&ResolverConfig{CABundle: bundle}).LoadRootCAs()
	require.ErrorContains(t, err, "contains no certificates")

	_, err = (&ResolverConfig{CABundle: filepath.Join(t.TempDir(), "missing.pem")}).LoadRootCAs()
	require.ErrorContains(t, err, "could not read CA bundle")
}

func TestDefaultSourcesBuild(t *testing.T) {
	clients := testClients()
	names := make(map[string]bool)
	for _, sCfg := range Sources {
		s, err := sCfg.Build(clients)
		require.NoError(t, err, sCfg.Name)
		require.Equal(t, sCfg.Name, s.Name())
		require.Equal(t, sCfg.Type, s.Type())
		require.NotEmpty(t, s.Platforms())
		require.False(t, names[sCfg.Name], "duplicate source %s", sCfg.Name)
		names[sCfg.Name] = true
	}
}

const testSourcesFile = `
sources:
  - name: foo
    type: github
    repo: owner/foo
    tag_prefix: release-
    assets:
      windows-amd64: '^foo-windows-x86_64\.zip$'
    platform_map:
      windows-arm64: windows-amd64
  - name: bar
    type: pinned
    version: 1.0.0
    files:
      linux-amd64:
        - url: https://example.com/bar-{version}.tar.gz
          name: bar.tar.gz
`

func TestLoadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testSourcesFile), 0o600))

	sources, err := (&ResolverConfig{SourcesFile: path}).LoadSources()
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "release-", sources[0].tagPrefix())
	require.Equal(t, "bar.tar.gz", sources[1].Files["linux-amd64"][0].Name)

	s, err := sources[0].Build(testClients())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"windows-amd64", "windows-arm64"}, s.Platforms().Strings())

	s, err = sources[1].Build(testClients())
	require.NoError(t, err)
	m, err := s.GetURL(context.Background(), "1.0.0", manifest.MustParsePlatform("linux-amd64"))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/bar-1.0.0.tar.gz"}, m.URL)
}

func TestLoadSourcesFileErrors(t *testing.T) {
	_, err := LoadSourcesFile("")
	require.ErrorContains(t, err, "cannot be empty")

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: foo\n    unknown: field\n"), 0o600))
	_, err = LoadSourcesFile(path)
	require.ErrorContains(t, err, "unmarshal sources file")

	require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0o600))
	_, err = LoadSourcesFile(path)
	require.ErrorContains(t, err, "defines no sources")
}

func TestSourceConfigValidate(t *testing.T) {
	testCases := []struct {
		cfg      *SourceConfig
		expected string
	}{
		{cfg: &SourceConfig{Type: "github"}, expected: "Name"},
		{cfg: &SourceConfig{Name: "foo", Type: "ftp"}, expected: "Type"},
		{cfg: &SourceConfig{Name: "foo/bar", Type: "pinned"}, expected: "Name"},
		{cfg: &SourceConfig{Name: "foo", Type: "github", Assets: map[string]string{"linux-amd64": "x"}}, expected: "repo is required"},
		{cfg: &SourceConfig{Name: "foo", Type: "scrape", IndexURL: "not a url"}, expected: "IndexURL"},
		{cfg: &SourceConfig{Name: "foo", Type: "bucket", Bucket: "b", DownloadURL: "https://example.com", Assets: map[string]string{"linux-amd64": "x"}}, expected: "version_pattern is required"},
		{cfg: &SourceConfig{Name: "foo", Type: "pinned", Version: "1", Files: map[string][]*FileConfig{"linux-amd64": {{}}}}, expected: "URL"},
		{cfg: &SourceConfig{Name: "foo", Type: "pinned", Version: "1", Files: map[string][]*FileConfig{"linux-amd64": {{URL: "u"}}}, Assets: map[string]string{"linux-amd64": "x"}}, expected: "use files instead of assets"},
		{cfg: &SourceConfig{Name: "foo", Type: "github", Repo: "o/r", Assets: map[string]string{"linux-amd64": "x"}, PlatformMap: map[string]string{"linux-arm64": "linux"}}, expected: "invalid platform"},
	}
	for _, testCase := range testCases {
		require.ErrorContains(t, testCase.cfg.Validate(), testCase.expected)
	}
}

func TestSourceConfigBuildErrors(t *testing.T) {
	_, err := (&SourceConfig{Name: "foo", Type: "github", Repo: "o/r", Assets: map[string]string{"linux": "x"}}).Build(testClients())
	require.ErrorContains(t, err, "invalid platform")

	_, err = (&SourceConfig{Name: "foo", Type: "github", Repo: "o/r", Assets: map[string]string{"linux-amd64": "("}}).Build(testClients())
	require.ErrorContains(t, err, "invalid asset pattern")
}

func TestCreateStateStore(t *testing.T) {
	ctx := context.Background()
	store, closeFn, err := (&ResolverConfig{StateBackend: StateBackendMemory}).CreateStateStore(ctx)
	require.NoError(t, err)
	require.IsType(t, &state.MemoryStore{}, store)
	require.NoError(t, closeFn())

	stateFile := filepath.Join(t.TempDir(), "installed.json")
	store, _, err = (&ResolverConfig{StateBackend: StateBackendFile, StateFile: stateFile}).CreateStateStore(ctx)
	require.NoError(t, err)
	require.NoError(t, store.RecordInstalled(ctx, "ninja", manifest.MustParsePlatform("linux-amd64"), "1.12.1"))
	require.FileExists(t, stateFile)

	_, _, err = (&ResolverConfig{StateBackend: StateBackendFile}).CreateStateStore(ctx)
	require.ErrorContains(t, err, "STATE_FILE is required")

	_, _, err = (&ResolverConfig{StateBackend: "redis"}).CreateStateStore(ctx)
	require.ErrorContains(t, err, "unknown state backend")
}
