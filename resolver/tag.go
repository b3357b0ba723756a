package resolver

import (
	"context"

	"github.com/imagespy/rpm-registry/layout"
	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/store"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ResolveByTag returns a manifest list with one entry for every package that
// provides the tag of the image. Packages of different architectures that
// carry the same tag make up a multi-platform image.
func (r *Resolver) ResolveByTag(ctx context.Context, name string, tag string) (*registry.ManifestList, error) {
	l, err := r.resolveByTag(ctx, name, tag)
	observe("tag", err)
	return l, err
}

func (r *Resolver) resolveByTag(ctx context.Context, name string, tag string) (*registry.ManifestList, error) {
	pkgs, err := r.taggedPackages(ctx, name, tag)
	if err != nil {
		return nil, err
	}

	if len(pkgs) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "image %s:%s", name, tag)
	}

	entries := make([]registry.ManifestDescriptor, len(pkgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pkg := range pkgs {
		i, pkg := i, pkg
		g.Go(func() error {
			entry, err := r.platformManifest(gctx, pkg)
			if err != nil {
				return err
			}

			entries[i] = *entry
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.log.WithField("image", name+":"+tag).Debugf("resolved %d platform manifests", len(entries))
	return registry.NewManifestList(entries), nil
}

// platformManifest reads the layout installed by pkg and describes its first
// manifest for the architecture of the package.
func (r *Resolver) platformManifest(ctx context.Context, pkg string) (*registry.ManifestDescriptor, error) {
	info, err := r.store.Info(ctx, pkg)
	if err != nil {
		return nil, err
	}

	img, err := r.layout.Read(ctx, info.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading layout of package %s", pkg)
	}

	desc := img.ManifestDescriptor
	return &registry.ManifestDescriptor{
		MediaType: registry.DockerMediaType(desc.MediaType),
		Size:      desc.Size,
		Digest:    desc.Digest,
		Platform: registry.Platform{
			Architecture: NormalizeArchitecture(info.Architecture),
			OS:           defaultOS,
		},
	}, nil
}

// ResolveIndexByTag returns the index document of the one package that
// provides the tag of the image. Unlike ResolveByTag more than one package is
// an error.
func (r *Resolver) ResolveIndexByTag(ctx context.Context, name string, tag string) (*Artifact, error) {
	a, err := r.resolveIndexByTag(ctx, name, tag)
	observe("index_by_tag", err)
	return a, err
}

func (r *Resolver) resolveIndexByTag(ctx context.Context, name string, tag string) (*Artifact, error) {
	pkgs, err := r.taggedPackages(ctx, name, tag)
	if err != nil {
		return nil, err
	}

	switch len(pkgs) {
	case 0:
		return nil, errors.Wrapf(ErrNotFound, "image %s:%s", name, tag)
	case 1:
	default:
		return nil, &AmbiguousError{
			Capability: store.Capability{Kind: store.KindImage, Key: name, Version: tag},
			Packages:   pkgs,
		}
	}

	info, err := r.store.Info(ctx, pkgs[0])
	if err != nil {
		return nil, err
	}

	indexPath, err := r.layout.IndexPath(info.Name)
	if err != nil {
		return nil, err
	}

	index, raw, err := layout.ReadIndexFile(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading index of package %s", pkgs[0])
	}

	return indexArtifact(indexPath, index.MediaType, digest.FromBytes(raw), raw), nil
}

func indexArtifact(path string, mediaType string, d digest.Digest, raw []byte) *Artifact {
	if mediaType == "" {
		mediaType = registry.MediaTypeOCIIndex
	}

	return &Artifact{
		Kind:      KindIndex,
		MediaType: mediaType,
		Digest:    d,
		Size:      int64(len(raw)),
		Path:      path,
		Content:   raw,
	}
}
