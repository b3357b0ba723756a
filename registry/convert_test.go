package registry

import (
	"testing"

	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
)

func ociManifest() *Manifest {
	return &Manifest{
		SchemaVersion: 2,
		MediaType:     ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    digest.FromString("config"),
			Size:      6,
		},
		Layers: []ocispec.Descriptor{
			{MediaType: ocispec.MediaTypeImageLayerGzip, Digest: digest.FromString("abc"), Size: 3},
			{MediaType: ocispec.MediaTypeImageLayer, Digest: digest.FromString("def"), Size: 3},
			{MediaType: "application/vnd.oci.image.layer.v1.tar+zstd", Digest: digest.FromString("ghi"), Size: 3},
		},
	}
}

func TestToDocker(t *testing.T) {
	m := ociManifest()
	d := ToDocker(m)

	assert.Equal(t, "application/vnd.docker.distribution.manifest.v2+json", d.MediaType)
	assert.Equal(t, "application/vnd.docker.container.image.v1+json", d.Config.MediaType)
	assert.Equal(t, m.Config.Digest, d.Config.Digest)
	assert.Equal(t, m.Config.Size, d.Config.Size)
	assert.Equal(t, []string{
		"application/vnd.docker.image.rootfs.diff.tar.gzip",
		"application/vnd.docker.image.rootfs.diff.tar",
		"application/vnd.oci.image.layer.v1.tar+zstd",
	}, []string{d.Layers[0].MediaType, d.Layers[1].MediaType, d.Layers[2].MediaType})
	for i := range m.Layers {
		assert.Equal(t, m.Layers[i].Digest, d.Layers[i].Digest)
		assert.Equal(t, m.Layers[i].Size, d.Layers[i].Size)
	}

	// the source manifest is left untouched
	assert.Equal(t, ocispec.MediaTypeImageManifest, m.MediaType)
	assert.Equal(t, ocispec.MediaTypeImageLayerGzip, m.Layers[0].MediaType)
}

func TestToOCI_RoundTrip(t *testing.T) {
	m := ociManifest()
	assert.Equal(t, m, ToOCI(ToDocker(m)))
}

func TestDockerMediaType(t *testing.T) {
	assert.Equal(t, MediaTypeManifestList, DockerMediaType(MediaTypeOCIIndex))
	assert.Equal(t, MediaTypeDockerManifest, DockerMediaType(MediaTypeOCIManifest))
	assert.Equal(t, MediaTypeDockerManifest, DockerMediaType(MediaTypeDockerManifest))
	assert.Equal(t, MediaTypeOCIConfig, OCIMediaType(MediaTypeDockerConfig))
	assert.True(t, IsManifestMediaType(MediaTypeDockerManifest))
	assert.False(t, IsManifestMediaType(MediaTypeOCIIndex))
}
