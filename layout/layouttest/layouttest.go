// Package layouttest writes OCI image layouts for tests.
package layouttest

import (
	_ "crypto/sha256"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/require"
)

// Image describes a layout written by WriteImage.
type Image struct {
	Name           string
	IndexPath      string
	IndexDigest    digest.Digest
	ManifestDigest digest.Digest
	ManifestSize   int64
	ManifestRaw    []byte
	ConfigDigest   digest.Digest
	ConfigPath     string
	LayerDigest    digest.Digest
}

// WriteImage writes a single layer OCI layout for an image below base/name.
// The layer is also written to the blob store shared by all images.
func WriteImage(t testing.TB, base string, name string, architecture string) *Image {
	t.Helper()
	dir := filepath.Join(base, name)

	layer := []byte(fmt.Sprintf("layer of %s for %s", name, architecture))
	layerDigest := digest.FromBytes(layer)
	WriteFile(t, blobPath(dir, layerDigest), layer)
	WriteFile(t, blobPath(base, layerDigest), layer)

	config := mustMarshal(t, map[string]interface{}{
		"created":      "2024-05-01T10:00:00Z",
		"architecture": architecture,
		"os":           "linux",
		"config":       map[string]interface{}{"Env": []string{"PATH=/usr/bin"}, "Cmd": []string{"/bin/sh"}},
		"rootfs":       map[string]interface{}{"type": "layers", "diff_ids": []string{layerDigest.String()}},
		"history":      []map[string]interface{}{{"created": "2024-05-01T10:00:00Z", "created_by": "kiwi"}},
	})
	configDigest := digest.FromBytes(config)
	configPath := blobPath(dir, configDigest)
	WriteFile(t, configPath, config)

	manifest := mustMarshal(t, ocispec.Manifest{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageManifest,
		Config: ocispec.Descriptor{
			MediaType: ocispec.MediaTypeImageConfig,
			Digest:    configDigest,
			Size:      int64(len(config)),
		},
		Layers: []ocispec.Descriptor{
			{
				MediaType: ocispec.MediaTypeImageLayerGzip,
				Digest:    layerDigest,
				Size:      int64(len(layer)),
			},
		},
	})
	manifestDigest := digest.FromBytes(manifest)
	WriteFile(t, blobPath(dir, manifestDigest), manifest)

	index := mustMarshal(t, ocispec.Index{
		Versioned: specs.Versioned{SchemaVersion: 2},
		MediaType: ocispec.MediaTypeImageIndex,
		Manifests: []ocispec.Descriptor{
			{
				MediaType: ocispec.MediaTypeImageManifest,
				Digest:    manifestDigest,
				Size:      int64(len(manifest)),
			},
		},
	})
	indexPath := filepath.Join(dir, "index.json")
	WriteFile(t, indexPath, index)

	return &Image{
		Name:           name,
		IndexPath:      indexPath,
		IndexDigest:    digest.FromBytes(index),
		ManifestDigest: manifestDigest,
		ManifestSize:   int64(len(manifest)),
		ManifestRaw:    manifest,
		ConfigDigest:   configDigest,
		ConfigPath:     configPath,
		LayerDigest:    layerDigest,
	}
}

// WriteFile writes content to path, creating missing directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, ioutil.WriteFile(path, content, 0644))
}

func blobPath(dir string, d digest.Digest) string {
	return filepath.Join(dir, "blobs", d.Algorithm().String(), d.Encoded())
}

func mustMarshal(t testing.TB, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
