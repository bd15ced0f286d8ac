package manifest

import (
	"fmt"
	"sort"
	"strings"
)

// Platform identifies the target of an artifact as an (OS, architecture) pair.
type Platform struct {
	OS   string
	Arch string
}

var (
	KnownOS   = []string{"linux", "mac", "windows"}
	KnownArch = []string{"386", "amd64", "arm64", "armv6l", "mips64", "mipsle", "ppc64le", "riscv64", "s390x"}
)

func contains(l []string, s string) bool {
	for _, e := range l {
		if e == s {
			return true
		}
	}
	return false
}

// ParsePlatform parses a platform formatted as "<os>-<arch>".
func ParsePlatform(s string) (Platform, error) {
	os, arch, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !found || os == "" || arch == "" {
		return Platform{}, fmt.Errorf("invalid platform %q: expected <os>-<arch>", s)
	}
	if !contains(KnownOS, os) {
		return Platform{}, fmt.Errorf("invalid platform %q: unknown os %s", s, os)
	}
	if !contains(KnownArch, arch) {
		return Platform{}, fmt.Errorf("invalid platform %q: unknown arch %s", s, arch)
	}
	return Platform{OS: os, Arch: arch}, nil
}

func MustParsePlatform(s string) Platform {
	p, err := ParsePlatform(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.OS, p.Arch)
}

func (p Platform) IsZero() bool {
	return p.OS == "" && p.Arch == ""
}

type Platforms []Platform

func (l Platforms) Has(p Platform) bool {
	for _, e := range l {
		if e == p {
			return true
		}
	}
	return false
}

func (l Platforms) Strings() []string {
	ret := make([]string, len(l))
	for i, p := range l {
		ret[i] = p.String()
	}
	sort.Strings(ret)
	return ret
}
