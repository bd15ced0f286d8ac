package source

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

func parseVersion(tag, prefix string) (string, *semver.Version, bool) {
	raw, found := strings.CutPrefix(tag, prefix)
	if !found {
		return "", nil, false
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return "", nil, false
	}
	return raw, v, true
}

// newestVersion keeps a running maximum over the versions offered to it. On
// equal versions the first one offered wins.
type newestVersion struct {
	includePrereleases bool
	raw                string
	version            *semver.Version
}

func (n *newestVersion) offer(raw string, v *semver.Version) {
	if v.Prerelease() != "" && !n.includePrereleases {
		return
	}
	if n.version == nil || v.GreaterThan(n.version) {
		n.raw, n.version = raw, v
	}
}

func (n *newestVersion) result(name string) (string, error) {
	if n.version == nil {
		return "", fmt.Errorf("%w: %s has no matching releases", ErrNoVersionFound, name)
	}
	return n.raw, nil
}
