package source

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/go-semantic-release/source-resolver/pkg/manifest"
)

// platformTable holds the per-platform configuration of a source together with
// its static remapping table. A remapped platform is served the artifact of
// its target platform, e.g. mac-arm64 served by the mac-amd64 build.
type platformTable[T any] struct {
	entries map[manifest.Platform]T
	remap   map[manifest.Platform]manifest.Platform
}

func newPlatformTable[T any](entries map[manifest.Platform]T, remap map[manifest.Platform]manifest.Platform) (*platformTable[T], error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no platforms configured")
	}
	for from, to := range remap {
		if _, ok := entries[to]; !ok {
			return nil, fmt.Errorf("platform %s is mapped to %s which is not configured", from, to)
		}
	}
	return &platformTable[T]{entries: entries, remap: remap}, nil
}

// lookup returns the upstream platform and configuration serving p.
func (t *platformTable[T]) lookup(p manifest.Platform) (manifest.Platform, T, bool) {
	if to, ok := t.remap[p]; ok {
		p = to
	}
	e, ok := t.entries[p]
	return p, e, ok
}

func (t *platformTable[T]) platforms() manifest.Platforms {
	ret := make(manifest.Platforms, 0, len(t.entries)+len(t.remap))
	for p := range t.entries {
		ret = append(ret, p)
	}
	for p := range t.remap {
		if _, ok := t.entries[p]; !ok {
			ret = append(ret, p)
		}
	}
	return ret
}

var placeholderRe = regexp.MustCompile(`\{(version|os|arch)\}`)

func expand(template, version string, p manifest.Platform, quote bool) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(ph string) string {
		var v string
		switch ph {
		case "{version}":
			v = version
		case "{os}":
			v = p.OS
		case "{arch}":
			v = p.Arch
		}
		if quote {
			return regexp.QuoteMeta(v)
		}
		return v
	})
}

// expandPattern compiles an asset pattern after substituting the quoted
// version and platform placeholders.
func expandPattern(pattern, version string, p manifest.Platform) (*regexp.Regexp, error) {
	return regexp.Compile(expand(pattern, version, p, true))
}

func validatePatterns(patterns map[manifest.Platform]string) error {
	for p, pattern := range patterns {
		if _, err := expandPattern(pattern, "0.0.0", p); err != nil {
			return fmt.Errorf("invalid asset pattern for %s: %w", p, err)
		}
	}
	return nil
}

var knownExts = []string{".tar.gz", ".tar.xz", ".tar.bz2", ".tar.zst", ".tgz", ".zip", ".7z", ".exe", ".msi", ".dmg", ".pkg", ".tar"}

// inferExt returns the extension hint for an artifact name. An explicitly
// configured extension always wins.
func inferExt(configured, name string) string {
	if configured != "" {
		return configured
	}
	base := strings.ToLower(path.Base(name))
	for _, ext := range knownExts {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}
	return path.Ext(base)
}
