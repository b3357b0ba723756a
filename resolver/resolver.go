// Package resolver translates registry references, a name with a tag or a
// digest, into documents and blobs of the OCI layouts installed by packages.
//
// Names and tags are owned by the package database, which records them as
// oci_image(name) = tag capabilities. Digests are owned by the layouts. Packages
// may additionally provide oci_manifest(digest) and oci_config(digest) to make
// digest lookups unambiguous.
package resolver

import (
	"context"
	"io"

	"github.com/imagespy/rpm-registry/layout"
	"github.com/imagespy/rpm-registry/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

const (
	prometheusNamespace = "rpm_registry"
	defaultOS           = "linux"
)

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: prometheusNamespace,
	Name:      "resolutions_total",
	Help:      "Number of resolved references, by operation and result.",
}, []string{"operation", "result"})

// Resolver resolves references. It keeps no state between calls, every call
// queries the package database and reads the layouts again.
type Resolver struct {
	layout *layout.Reader
	log    logrus.FieldLogger
	store  store.Store
}

func New(s store.Store, l *layout.Reader, log logrus.FieldLogger) *Resolver {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Resolver{layout: l, log: log, store: s}
}

// NormalizeArchitecture maps package architectures to the names used by registries.
func NormalizeArchitecture(arch string) string {
	if arch == "x86_64" {
		return "amd64"
	}

	return arch
}

// ListTags returns the tags of all packages that provide the image. A tag is
// listed once per package that carries it.
func (r *Resolver) ListTags(ctx context.Context, name string) ([]string, error) {
	tags, err := r.listTags(ctx, name)
	observe("tags", err)
	return tags, err
}

func (r *Resolver) listTags(ctx context.Context, name string) ([]string, error) {
	c := store.ImageCapability(name)
	pkgs, err := r.store.Providers(ctx, c)
	if err != nil {
		return nil, err
	}

	if len(pkgs) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "image %s", name)
	}

	tags := []string{}
	for _, pkg := range pkgs {
		caps, err := r.store.Capabilities(ctx, pkg)
		if err != nil {
			return nil, err
		}

		for _, pc := range caps {
			if c.Matches(pc) && pc.Version != "" {
				tags = append(tags, pc.Version)
			}
		}
	}

	return tags, nil
}

// taggedPackages returns the packages that provide oci_image(name) = tag.
func (r *Resolver) taggedPackages(ctx context.Context, name string, tag string) ([]string, error) {
	c := store.ImageCapability(name)
	pkgs, err := r.store.Providers(ctx, c)
	if err != nil {
		return nil, err
	}

	result := []string{}
	for _, pkg := range pkgs {
		caps, err := r.store.Capabilities(ctx, pkg)
		if err != nil {
			return nil, err
		}

		for _, pc := range caps {
			if c.Matches(pc) && pc.Version == tag {
				result = append(result, pkg)
				break
			}
		}
	}

	return result, nil
}

func observe(operation string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrAmbiguousReference):
		result = "ambiguous"
	default:
		result = "error"
	}

	resolutions.WithLabelValues(operation, result).Inc()
}
