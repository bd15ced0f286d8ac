package source

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/go-semantic-release/source-resolver/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	testCases := []struct {
		err      error
		expected string
	}{
		{err: nil, expected: "ok"},
		{err: upstreamError("foo", errors.New("connection refused")), expected: "upstream_unavailable"},
		{err: fmt.Errorf("wrapped: %w", ErrNoVersionFound), expected: "no_version_found"},
		{err: unsupportedPlatformError("foo", manifest.MustParsePlatform("linux-amd64")), expected: "unsupported_platform"},
		{err: ErrVersionNotFound, expected: "version_not_found"},
		{err: ErrUnknownSource, expected: "unknown_source"},
		{err: errors.New("boom"), expected: "internal"},
	}
	for _, testCase := range testCases {
		require.Equal(t, testCase.expected, Kind(testCase.err))
	}
}

func TestNewestVersion(t *testing.T) {
	newest := &newestVersion{}
	for _, v := range []string{"1.2.0", "1.10.0", "1.3.0", "2.0.0-beta.1"} {
		newest.offer(v, semver.MustParse(v))
	}
	latest, err := newest.result("foo")
	require.NoError(t, err)
	require.Equal(t, "1.10.0", latest)

	_, err = (&newestVersion{}).result("foo")
	require.ErrorIs(t, err, ErrNoVersionFound)
}

func TestParseVersion(t *testing.T) {
	raw, v, ok := parseVersion("v2.1.0", "v")
	require.True(t, ok)
	require.Equal(t, "2.1.0", raw)
	require.Equal(t, "2.1.0", v.String())

	raw, _, ok = parseVersion("release-1.12.1", "release-")
	require.True(t, ok)
	require.Equal(t, "1.12.1", raw)

	_, _, ok = parseVersion("nightly", "v")
	require.False(t, ok)

	_, _, ok = parseVersion("2.1.0", "v")
	require.False(t, ok)
}

func TestInferExt(t *testing.T) {
	testCases := []struct {
		configured, name, expected string
	}{
		{name: "foo-windows-x86_64.zip", expected: ".zip"},
		{name: "cmake-3.28.1-linux-x86_64.tar.gz", expected: ".tar.gz"},
		{name: "https://example.com/dl/node-v20.0.0.TAR.XZ", expected: ".tar.xz"},
		{name: "ninja", expected: ""},
		{name: "tool.bin", expected: ".bin"},
		{configured: ".whl", name: "foo.zip", expected: ".whl"},
	}
	for _, testCase := range testCases {
		require.Equal(t, testCase.expected, inferExt(testCase.configured, testCase.name), testCase.name)
	}
}

func TestPlatformTable(t *testing.T) {
	linux := manifest.MustParsePlatform("linux-amd64")
	linuxArm := manifest.MustParsePlatform("linux-arm64")
	table, err := newPlatformTable(map[manifest.Platform]string{linux: "a"}, map[manifest.Platform]manifest.Platform{linuxArm: linux})
	require.NoError(t, err)

	channel, entry, ok := table.lookup(linuxArm)
	require.True(t, ok)
	require.Equal(t, linux, channel)
	require.Equal(t, "a", entry)

	_, _, ok = table.lookup(manifest.MustParsePlatform("windows-amd64"))
	require.False(t, ok)
	require.Equal(t, []string{"linux-amd64", "linux-arm64"}, table.platforms().Strings())

	_, err = newPlatformTable(map[manifest.Platform]string{}, nil)
	require.ErrorContains(t, err, "no platforms configured")
}

func TestExpandPattern(t *testing.T) {
	re, err := expandPattern(`^tool-{version}-{os}-{arch}\.zip$`, "1.0.0+build.1", manifest.MustParsePlatform("mac-arm64"))
	require.NoError(t, err)
	require.True(t, re.MatchString("tool-1.0.0+build.1-mac-arm64.zip"))
	require.False(t, re.MatchString("tool-1x0x0+build.1-mac-arm64.zip"))
}
