package resolver

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/imagespy/rpm-registry/layout"
	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/store"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	layerMediaType = "application/octet-stream"
)

// ResolveByDigest resolves a digest to a manifest, an index document, a config
// or a layer, in this order. The first stage that finds the digest wins. Only
// a missing digest falls through to the next stage.
func (r *Resolver) ResolveByDigest(ctx context.Context, name string, d digest.Digest) (*Artifact, error) {
	a, err := r.ResolveManifestByDigest(ctx, name, d)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return a, err
	}

	return r.ResolveBlob(ctx, d)
}

// ResolveManifestByDigest resolves a digest to the manifest of the package
// that provides oci_manifest(digest) or, if no package does, to the index
// document of a package of the image whose content has the digest.
func (r *Resolver) ResolveManifestByDigest(ctx context.Context, name string, d digest.Digest) (*Artifact, error) {
	a, err := r.resolveManifestByDigest(ctx, name, d)
	observe("manifest_by_digest", err)
	return a, err
}

func (r *Resolver) resolveManifestByDigest(ctx context.Context, name string, d digest.Digest) (*Artifact, error) {
	logger := r.log.WithFields(logrus.Fields{"image": name, "digest": d})
	a, err := r.manifestByCapability(ctx, d)
	if err != nil {
		return nil, err
	}

	if a != nil {
		logger.Debug("resolved manifest by capability")
		return a, nil
	}

	a, err = r.indexByHash(ctx, name, d)
	if err != nil {
		return nil, err
	}

	if a != nil {
		logger.Debug("resolved index document by hash")
		return a, nil
	}

	return nil, errors.Wrapf(ErrNotFound, "manifest %s of image %s", d, name)
}

// manifestByCapability returns nil if no package provides oci_manifest(d).
func (r *Resolver) manifestByCapability(ctx context.Context, d digest.Digest) (*Artifact, error) {
	c := store.ManifestCapability(d)
	pkgs, err := r.store.Providers(ctx, c)
	if err != nil {
		return nil, err
	}

	switch len(pkgs) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &AmbiguousError{Capability: c, Packages: pkgs}
	}

	info, err := r.store.Info(ctx, pkgs[0])
	if err != nil {
		return nil, err
	}

	img, err := r.layout.Read(ctx, info.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading layout of package %s", pkgs[0])
	}

	if img.ManifestDescriptor.Digest != d {
		return nil, &layout.StructureError{
			Path: img.IndexPath,
			Err:  errors.Errorf("package %s provides %s but its index references manifest %s", pkgs[0], c, img.ManifestDescriptor.Digest),
		}
	}

	return &Artifact{
		Kind:      KindManifest,
		MediaType: img.Manifest.MediaType,
		Digest:    d,
		Size:      int64(len(img.ManifestRaw)),
		Content:   img.ManifestRaw,
	}, nil
}

// indexByHash returns nil if no index.json installed by a package of the image has the digest d.
func (r *Resolver) indexByHash(ctx context.Context, name string, d digest.Digest) (*Artifact, error) {
	pkgs, err := r.store.Providers(ctx, store.ImageCapability(name))
	if err != nil {
		return nil, err
	}

	for _, pkg := range pkgs {
		files, err := r.store.Files(ctx, pkg)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			if filepath.Base(f) != "index.json" {
				continue
			}

			actual, err := layout.HashFile(f)
			if err != nil {
				if errors.Is(err, layout.ErrNotExist) {
					r.log.Warnf("package %s lists %s but the file does not exist", pkg, f)
					continue
				}

				return nil, err
			}

			if actual != d {
				continue
			}

			index, raw, err := layout.ReadIndexFile(f)
			if err != nil {
				return nil, err
			}

			if actual := digest.FromBytes(raw); actual != d {
				return nil, &layout.StructureError{Path: f, Err: errors.Errorf("content digest %s does not match %s", actual, d)}
			}

			return indexArtifact(f, index.MediaType, d, raw), nil
		}
	}

	return nil, nil
}

// ResolveBlob resolves a digest to the config blob of the package that
// provides oci_config(digest) or to a blob of the shared blob store.
func (r *Resolver) ResolveBlob(ctx context.Context, d digest.Digest) (*Artifact, error) {
	a, err := r.resolveBlob(ctx, d)
	observe("blob", err)
	return a, err
}

func (r *Resolver) resolveBlob(ctx context.Context, d digest.Digest) (*Artifact, error) {
	c := store.ConfigCapability(d)
	pkgs, err := r.store.Providers(ctx, c)
	if err != nil {
		return nil, err
	}

	if len(pkgs) == 1 {
		a, err := r.configOfPackage(ctx, pkgs[0], d)
		if err != nil || a != nil {
			return a, err
		}
	} else if len(pkgs) > 1 {
		r.log.WithField("digest", d).Debugf("%d packages provide %s, using the shared blob store", len(pkgs), c)
	}

	p := r.layout.BlobPath(d)
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "blob %s", d)
		}

		return nil, errors.Wrapf(err, "reading blob %s", d)
	}

	if fi.IsDir() {
		return nil, errors.Wrapf(ErrNotFound, "blob %s", d)
	}

	return &Artifact{
		Kind:      KindLayer,
		MediaType: layerMediaType,
		Digest:    d,
		Size:      fi.Size(),
		Path:      p,
	}, nil
}

// configOfPackage returns nil if pkg does not install a file named after d.
func (r *Resolver) configOfPackage(ctx context.Context, pkg string, d digest.Digest) (*Artifact, error) {
	files, err := r.store.Files(ctx, pkg)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		if !strings.HasSuffix(f, layout.Hex(d)) {
			continue
		}

		raw, err := ioutil.ReadFile(f)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &layout.StructureError{Path: f, Err: layout.ErrNotExist}
			}

			return nil, errors.Wrapf(err, "reading config %s", d)
		}

		if actual := d.Algorithm().FromBytes(raw); actual != d {
			return nil, &layout.StructureError{Path: f, Err: errors.Errorf("content digest %s does not match %s", actual, d)}
		}

		return &Artifact{
			Kind:      KindConfig,
			MediaType: registry.MediaTypeOCIConfig,
			Digest:    d,
			Size:      int64(len(raw)),
			Path:      f,
			Content:   raw,
		}, nil
	}

	return nil, nil
}
