package registry

import (
	"github.com/docker/distribution/manifest/schema2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

var (
	ociToDocker = map[string]string{
		ocispec.MediaTypeImageIndex:     MediaTypeManifestList,
		ocispec.MediaTypeImageManifest:  schema2.MediaTypeManifest,
		ocispec.MediaTypeImageConfig:    schema2.MediaTypeImageConfig,
		ocispec.MediaTypeImageLayerGzip: schema2.MediaTypeLayer,
		ocispec.MediaTypeImageLayer:     schema2.MediaTypeUncompressedLayer,
	}
	dockerToOCI = map[string]string{}
)

func init() {
	for oci, docker := range ociToDocker {
		dockerToOCI[docker] = oci
	}
}

// DockerMediaType returns the Docker schema 2 media type that corresponds to
// an OCI media type. Media types without a counterpart are returned unchanged.
func DockerMediaType(mediaType string) string {
	if mt, ok := ociToDocker[mediaType]; ok {
		return mt
	}

	return mediaType
}

// OCIMediaType is the inverse of DockerMediaType.
func OCIMediaType(mediaType string) string {
	if mt, ok := dockerToOCI[mediaType]; ok {
		return mt
	}

	return mediaType
}

// IsManifestMediaType reports whether mediaType denotes a single image manifest.
func IsManifestMediaType(mediaType string) bool {
	return mediaType == MediaTypeOCIManifest || mediaType == MediaTypeDockerManifest
}

// ToDocker converts m to the Docker schema 2 shape.
func ToDocker(m *Manifest) *Manifest {
	return convert(m, DockerMediaType)
}

// ToOCI converts m to the OCI shape.
func ToOCI(m *Manifest) *Manifest {
	return convert(m, OCIMediaType)
}

func convert(m *Manifest, mediaType func(string) string) *Manifest {
	result := &Manifest{
		SchemaVersion: m.SchemaVersion,
		MediaType:     mediaType(m.MediaType),
		Config:        m.Config,
		Layers:        make([]ocispec.Descriptor, len(m.Layers)),
		Annotations:   m.Annotations,
	}
	result.Config.MediaType = mediaType(m.Config.MediaType)
	for i, l := range m.Layers {
		l.MediaType = mediaType(l.MediaType)
		result.Layers[i] = l
	}

	return result
}
