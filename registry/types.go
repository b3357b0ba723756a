package registry

import (
	_ "crypto/sha256"

	"github.com/docker/distribution/manifest/manifestlist"
	"github.com/docker/distribution/manifest/schema2"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	MediaTypeManifestList   = manifestlist.MediaTypeManifestList
	MediaTypeDockerManifest = schema2.MediaTypeManifest
	MediaTypeDockerConfig   = schema2.MediaTypeImageConfig
	MediaTypeOCIIndex       = ocispec.MediaTypeImageIndex
	MediaTypeOCIManifest    = ocispec.MediaTypeImageManifest
	MediaTypeOCIConfig      = ocispec.MediaTypeImageConfig
)

// TagList is the response for /v2/<name>/tags/list.
type TagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// ManifestList is a multi-platform manifest list. It carries one entry per
// platform specific image.
type ManifestList struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Manifests     []ManifestDescriptor `json:"manifests"`
}

// NewManifestList returns a Docker manifest list over the given entries.
func NewManifestList(entries []ManifestDescriptor) *ManifestList {
	if entries == nil {
		entries = []ManifestDescriptor{}
	}

	return &ManifestList{
		SchemaVersion: 2,
		MediaType:     MediaTypeManifestList,
		Manifests:     entries,
	}
}

// ManifestDescriptor references the image manifest of one platform.
type ManifestDescriptor struct {
	MediaType string        `json:"mediaType"`
	Size      int64         `json:"size"`
	Digest    digest.Digest `json:"digest"`
	Platform  Platform      `json:"platform"`
}

type Platform struct {
	Architecture string `json:"architecture"`
	OS           string `json:"os"`
}

// Manifest is an image manifest, either in the OCI or the Docker schema 2
// variant. Both share the same structure, a config blob and ordered layers,
// and only differ in media types.
type Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Config        ocispec.Descriptor   `json:"config"`
	Layers        []ocispec.Descriptor `json:"layers"`
	Annotations   map[string]string    `json:"annotations,omitempty"`
}
