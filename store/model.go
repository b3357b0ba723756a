package store

import (
	_ "crypto/sha256"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// CapabilityKind is the name of a capability as recorded by the package database.
type CapabilityKind string

const (
	KindImage    CapabilityKind = "oci_image"
	KindManifest CapabilityKind = "oci_manifest"
	KindConfig   CapabilityKind = "oci_config"
)

// Capability is a fact a package is recorded as providing, e.g. "oci_image(myapp) = 1.0".
type Capability struct {
	Kind    CapabilityKind
	Key     string
	Version string
}

// String renders the capability without its version, the form the package
// database expects in what-provides queries.
func (c Capability) String() string {
	return fmt.Sprintf("%s(%s)", c.Kind, c.Key)
}

// Matches reports whether o names the same capability. Versions are ignored.
func (c Capability) Matches(o Capability) bool {
	return c.Kind == o.Kind && c.Key == o.Key
}

func ImageCapability(name string) Capability {
	return Capability{Kind: KindImage, Key: name}
}

func ManifestCapability(d digest.Digest) Capability {
	return Capability{Kind: KindManifest, Key: d.String()}
}

func ConfigCapability(d digest.Digest) Capability {
	return Capability{Kind: KindConfig, Key: d.String()}
}

// ParseCapability parses a single provides line. Lines that do not have the
// form kind(key) with an optional "= version" are reported as not ok.
func ParseCapability(line string) (Capability, bool) {
	name, version := line, ""
	if i := strings.Index(line, "="); i >= 0 {
		name, version = line[:i], line[i+1:]
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	open := strings.Index(name, "(")
	if open <= 0 || !strings.HasSuffix(name, ")") {
		return Capability{}, false
	}

	return Capability{
		Kind:    CapabilityKind(name[:open]),
		Key:     name[open+1 : len(name)-1],
		Version: version,
	}, true
}

// Package is an installed package.
type Package struct {
	// ID is the identifier the package database returned, e.g. myapp-1.0-1.x86_64.
	ID           string
	Name         string
	Architecture string
}
