package resolver

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/imagespy/rpm-registry/layout"
	"github.com/imagespy/rpm-registry/layout/layouttest"
	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/store"
	"github.com/imagespy/rpm-registry/store/fake"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	base     string
	resolver *Resolver
	store    *fake.Store
}

func newFixture(t *testing.T) *fixture {
	base := t.TempDir()
	s := fake.NewStore()
	return &fixture{
		base:     base,
		resolver: New(s, layout.New(base), nil),
		store:    s,
	}
}

// install writes a layout named pkgName and adds a package that provides the image with the given tags.
func (f *fixture) install(t *testing.T, pkgName string, arch string, image string, tags ...string) *layouttest.Image {
	img := layouttest.WriteImage(t, f.base, pkgName, arch)
	caps := []store.Capability{}
	for _, tag := range tags {
		caps = append(caps, store.Capability{Kind: store.KindImage, Key: image, Version: tag})
	}

	f.store.Add(&fake.Package{
		ID:           pkgName + "-1.0-1." + arch,
		Name:         pkgName,
		Architecture: arch,
		Capabilities: caps,
		Files:        []string{img.IndexPath, img.ConfigPath},
	})
	return img
}

func TestNormalizeArchitecture(t *testing.T) {
	testcases := map[string]string{
		"x86_64":  "amd64",
		"aarch64": "aarch64",
		"s390x":   "s390x",
		"ppc64le": "ppc64le",
		"":        "",
	}

	for in, expected := range testcases {
		assert.Equal(t, expected, NormalizeArchitecture(in))
	}
}

func TestResolver_ListTags(t *testing.T) {
	f := newFixture(t)
	f.install(t, "myapp_x86_64", "x86_64", "myapp", "1.0", "latest")
	f.install(t, "myapp_aarch64", "aarch64", "myapp", "1.0")
	f.install(t, "other", "x86_64", "other", "2.0")

	tags, err := f.resolver.ListTags(context.Background(), "myapp")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "latest", "1.0"}, tags)

	_, err = f.resolver.ListTags(context.Background(), "nonexistent-image")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_ResolveByTag(t *testing.T) {
	f := newFixture(t)
	img := f.install(t, "myapp", "x86_64", "myapp", "1.0")

	l, err := f.resolver.ResolveByTag(context.Background(), "myapp", "1.0")
	require.NoError(t, err)
	assert.Equal(t, 2, l.SchemaVersion)
	assert.Equal(t, registry.MediaTypeManifestList, l.MediaType)
	require.Len(t, l.Manifests, 1)
	assert.Equal(t, registry.ManifestDescriptor{
		MediaType: registry.MediaTypeDockerManifest,
		Size:      img.ManifestSize,
		Digest:    img.ManifestDigest,
		Platform:  registry.Platform{Architecture: "amd64", OS: "linux"},
	}, l.Manifests[0])
}

func TestResolver_ResolveByTag_MultiArch(t *testing.T) {
	f := newFixture(t)
	x86 := f.install(t, "myapp_x86_64", "x86_64", "myapp", "1.0")
	arm := f.install(t, "myapp_aarch64", "aarch64", "myapp", "1.0", "latest")
	f.install(t, "myapp_s390x", "s390x", "myapp", "0.9")

	l, err := f.resolver.ResolveByTag(context.Background(), "myapp", "1.0")
	require.NoError(t, err)
	require.Len(t, l.Manifests, 2)
	assert.Equal(t, x86.ManifestDigest, l.Manifests[0].Digest)
	assert.Equal(t, "amd64", l.Manifests[0].Platform.Architecture)
	assert.Equal(t, arm.ManifestDigest, l.Manifests[1].Digest)
	assert.Equal(t, "aarch64", l.Manifests[1].Platform.Architecture)

	l, err = f.resolver.ResolveByTag(context.Background(), "myapp", "latest")
	require.NoError(t, err)
	require.Len(t, l.Manifests, 1)
	assert.Equal(t, "aarch64", l.Manifests[0].Platform.Architecture)
}

func TestResolver_ResolveByTag_NotFound(t *testing.T) {
	f := newFixture(t)
	f.install(t, "myapp", "x86_64", "myapp", "1.0")

	_, err := f.resolver.ResolveByTag(context.Background(), "myapp", "2.0")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.resolver.ResolveByTag(context.Background(), "other", "1.0")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_ResolveByTag_BrokenLayout(t *testing.T) {
	f := newFixture(t)
	f.install(t, "myapp_x86_64", "x86_64", "myapp", "1.0")
	broken := f.install(t, "myapp_aarch64", "aarch64", "myapp", "1.0")
	layouttest.WriteFile(t, broken.IndexPath, []byte(`{}`))

	l, err := f.resolver.ResolveByTag(context.Background(), "myapp", "1.0")
	assert.Nil(t, l)
	var structErr *layout.StructureError
	assert.True(t, errors.As(err, &structErr))
}

func TestResolver_ResolveIndexByTag(t *testing.T) {
	f := newFixture(t)
	img := f.install(t, "myapp", "x86_64", "myapp", "1.0")

	a, err := f.resolver.ResolveIndexByTag(context.Background(), "myapp", "1.0")
	require.NoError(t, err)
	assert.Equal(t, KindIndex, a.Kind)
	assert.Equal(t, ocispec.MediaTypeImageIndex, a.MediaType)
	assert.Equal(t, img.IndexDigest, a.Digest)

	hashed, err := layout.HashFile(img.IndexPath)
	require.NoError(t, err)
	assert.Equal(t, hashed, a.Digest)

	f.install(t, "myapp_aarch64", "aarch64", "myapp", "1.0")
	_, err = f.resolver.ResolveIndexByTag(context.Background(), "myapp", "1.0")
	assert.True(t, errors.Is(err, ErrAmbiguousReference))
	var ambErr *AmbiguousError
	require.True(t, errors.As(err, &ambErr))
	assert.Len(t, ambErr.Packages, 2)

	_, err = f.resolver.ResolveIndexByTag(context.Background(), "myapp", "2.0")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_ResolveManifestByDigest_Capability(t *testing.T) {
	f := newFixture(t)
	img := layouttest.WriteImage(t, f.base, "myapp", "x86_64")
	f.store.Add(&fake.Package{
		ID:           "myapp-1.0-1.x86_64",
		Name:         "myapp",
		Architecture: "x86_64",
		Capabilities: []store.Capability{
			{Kind: store.KindImage, Key: "myapp", Version: "1.0"},
			store.ManifestCapability(img.ManifestDigest),
		},
	})

	a, err := f.resolver.ResolveManifestByDigest(context.Background(), "myapp", img.ManifestDigest)
	require.NoError(t, err)
	assert.Equal(t, KindManifest, a.Kind)
	assert.Equal(t, ocispec.MediaTypeImageManifest, a.MediaType)
	assert.Equal(t, img.ManifestRaw, a.Content)
	assert.Equal(t, img.ManifestDigest, digest.FromBytes(a.Content))
}

func TestResolver_ResolveManifestByDigest_Ambiguous(t *testing.T) {
	f := newFixture(t)
	img := layouttest.WriteImage(t, f.base, "myapp", "x86_64")
	for _, id := range []string{"myapp-1.0-1.x86_64", "myapp-copy-1.0-1.x86_64"} {
		f.store.Add(&fake.Package{
			ID:           id,
			Name:         "myapp",
			Architecture: "x86_64",
			Capabilities: []store.Capability{store.ManifestCapability(img.ManifestDigest)},
		})
	}

	a, err := f.resolver.ResolveManifestByDigest(context.Background(), "myapp", img.ManifestDigest)
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, ErrAmbiguousReference))
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = f.resolver.ResolveByDigest(context.Background(), "myapp", img.ManifestDigest)
	assert.True(t, errors.Is(err, ErrAmbiguousReference))
}

func TestResolver_ResolveManifestByDigest_CapabilityMismatch(t *testing.T) {
	f := newFixture(t)
	layouttest.WriteImage(t, f.base, "myapp", "x86_64")
	other := digest.FromString("other manifest")
	f.store.Add(&fake.Package{
		ID:           "myapp-1.0-1.x86_64",
		Name:         "myapp",
		Architecture: "x86_64",
		Capabilities: []store.Capability{store.ManifestCapability(other)},
	})

	_, err := f.resolver.ResolveManifestByDigest(context.Background(), "myapp", other)
	var structErr *layout.StructureError
	assert.True(t, errors.As(err, &structErr))
}

func TestResolver_ResolveManifestByDigest_IndexByHash(t *testing.T) {
	f := newFixture(t)
	f.install(t, "myapp_aarch64", "aarch64", "myapp", "1.0")
	img := f.install(t, "myapp_x86_64", "x86_64", "myapp", "1.0")

	a, err := f.resolver.ResolveManifestByDigest(context.Background(), "myapp", img.IndexDigest)
	require.NoError(t, err)
	assert.Equal(t, KindIndex, a.Kind)
	assert.Equal(t, img.IndexPath, a.Path)
	assert.Equal(t, img.IndexDigest, digest.FromBytes(a.Content))

	_, err = f.resolver.ResolveManifestByDigest(context.Background(), "myapp", digest.FromString("unknown"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_ResolveManifestByDigest_CapabilityBeforeIndexHash(t *testing.T) {
	f := newFixture(t)
	img := layouttest.WriteImage(t, f.base, "myapp", "x86_64")
	f.store.Add(&fake.Package{
		ID:           "myapp-1.0-1.x86_64",
		Name:         "myapp",
		Architecture: "x86_64",
		Capabilities: []store.Capability{
			{Kind: store.KindImage, Key: "myapp", Version: "1.0"},
			store.ManifestCapability(img.ManifestDigest),
		},
	})

	// another package of the image installs an index.json whose content hashes to the same digest
	clash := filepath.Join(f.base, "clash", "index.json")
	layouttest.WriteFile(t, clash, img.ManifestRaw)
	f.store.Add(&fake.Package{
		ID:           "clash-1.0-1.x86_64",
		Name:         "clash",
		Architecture: "x86_64",
		Capabilities: []store.Capability{{Kind: store.KindImage, Key: "myapp", Version: "1.0"}},
		Files:        []string{clash},
	})

	a, err := f.resolver.ResolveManifestByDigest(context.Background(), "myapp", img.ManifestDigest)
	require.NoError(t, err)
	assert.Equal(t, KindManifest, a.Kind)
	assert.Equal(t, img.ManifestRaw, a.Content)
}

func TestResolver_ResolveBlob(t *testing.T) {
	f := newFixture(t)
	img := layouttest.WriteImage(t, f.base, "myapp", "x86_64")
	f.store.Add(&fake.Package{
		ID:           "myapp-1.0-1.x86_64",
		Name:         "myapp",
		Architecture: "x86_64",
		Capabilities: []store.Capability{store.ConfigCapability(img.ConfigDigest)},
		Files:        []string{img.IndexPath, img.ConfigPath},
	})

	a, err := f.resolver.ResolveBlob(context.Background(), img.ConfigDigest)
	require.NoError(t, err)
	assert.Equal(t, KindConfig, a.Kind)
	assert.Equal(t, registry.MediaTypeOCIConfig, a.MediaType)
	assert.Equal(t, img.ConfigPath, a.Path)

	a, err = f.resolver.ResolveBlob(context.Background(), img.LayerDigest)
	require.NoError(t, err)
	assert.Equal(t, KindLayer, a.Kind)
	assert.Equal(t, filepath.Join(f.base, "blobs", "sha256", img.LayerDigest.Encoded()), a.Path)

	r, err := a.Open()
	require.NoError(t, err)
	defer r.Close()
	content, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, img.LayerDigest, digest.FromBytes(content))

	_, err = f.resolver.ResolveBlob(context.Background(), digest.FromString("unknown"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolver_ResolveByDigest(t *testing.T) {
	f := newFixture(t)
	img := f.install(t, "myapp", "x86_64", "myapp", "1.0")

	a, err := f.resolver.ResolveByDigest(context.Background(), "myapp", img.IndexDigest)
	require.NoError(t, err)
	assert.Equal(t, KindIndex, a.Kind)

	a, err = f.resolver.ResolveByDigest(context.Background(), "myapp", img.LayerDigest)
	require.NoError(t, err)
	assert.Equal(t, KindLayer, a.Kind)

	_, err = f.resolver.ResolveByDigest(context.Background(), "myapp", digest.FromString("unknown"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAmbiguousError(t *testing.T) {
	err := &AmbiguousError{
		Capability: store.Capability{Kind: store.KindImage, Key: "myapp", Version: "1.0"},
		Packages:   []string{"a", "b"},
	}
	assert.Equal(t, "ambiguous reference: 2 packages provide oci_image(myapp) = 1.0: a, b", err.Error())
	assert.True(t, errors.Is(errors.Wrap(err, "resolving"), ErrAmbiguousReference))
}
