// Package layout reads OCI image layouts from the file system.
//
// A layout consists of an index.json and a content addressed store below
// blobs/sha256/. The first manifest of the index is the image manifest of the
// layout. Every document read is verified against the digest it is referenced by.
package layout

import (
	_ "crypto/sha256"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/imagespy/rpm-registry/registry"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

const (
	indexFile = "index.json"
)

// Config is the image configuration. Parts that are not needed to serve an
// image are kept as raw JSON.
type Config struct {
	Created      string          `json:"created,omitempty"`
	Architecture string          `json:"architecture"`
	OS           string          `json:"os"`
	Config       json.RawMessage `json:"config,omitempty"`
	RootFS       json.RawMessage `json:"rootfs,omitempty"`
}

// Image is the content of a layout.
type Image struct {
	IndexPath string
	// ManifestDescriptor is the first entry of the index.
	ManifestDescriptor ocispec.Descriptor
	Manifest           *registry.Manifest
	ManifestRaw        []byte
	Config             *Config
	ConfigRaw          []byte
}

// Reader reads the layouts stored below BasePath, one directory per image name.
type Reader struct {
	BasePath string
}

func New(basePath string) *Reader {
	return &Reader{BasePath: basePath}
}

// ImagePath returns the directory of the layout of an image.
func (r *Reader) ImagePath(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", errors.Errorf("invalid image name %q", name)
	}

	return filepath.Join(r.BasePath, name), nil
}

// IndexPath returns the path of the index document of an image.
func (r *Reader) IndexPath(name string) (string, error) {
	p, err := r.ImagePath(name)
	if err != nil {
		return "", err
	}

	return filepath.Join(p, indexFile), nil
}

// BlobPath returns the path of a blob in the store that is shared by all images.
func (r *Reader) BlobPath(d digest.Digest) string {
	return filepath.Join(r.BasePath, "blobs", d.Algorithm().String(), Hex(d))
}

// ImageBlobPath returns the path of a blob in the layout of an image.
func (r *Reader) ImageBlobPath(name string, d digest.Digest) (string, error) {
	p, err := r.ImagePath(name)
	if err != nil {
		return "", err
	}

	return filepath.Join(p, "blobs", d.Algorithm().String(), Hex(d)), nil
}

// Read reads the layout of an image, its first manifest and that manifest's config.
func (r *Reader) Read(ctx context.Context, name string) (*Image, error) {
	indexPath, err := r.IndexPath(name)
	if err != nil {
		return nil, err
	}

	index, _, err := ReadIndexFile(indexPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	desc := index.Manifests[0]
	manifestPath, err := r.ImageBlobPath(name, desc.Digest)
	if err != nil {
		return nil, err
	}

	manifestRaw, err := readBlob(manifestPath, desc.Digest)
	if err != nil {
		return nil, err
	}

	manifest := &registry.Manifest{}
	if err := json.Unmarshal(manifestRaw, manifest); err != nil {
		return nil, &StructureError{Path: manifestPath, Err: errors.Wrap(err, "decoding manifest")}
	}

	if manifest.MediaType == "" {
		manifest.MediaType = desc.MediaType
	}

	if manifest.SchemaVersion != 2 || !registry.IsManifestMediaType(manifest.MediaType) {
		return nil, structureErrorf(manifestPath, "unsupported manifest %s with schema version %d", manifest.MediaType, manifest.SchemaVersion)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := manifest.Config.Digest.Validate(); err != nil {
		return nil, &StructureError{Path: manifestPath, Err: errors.Wrapf(err, "config digest %q", manifest.Config.Digest)}
	}

	configPath, err := r.ImageBlobPath(name, manifest.Config.Digest)
	if err != nil {
		return nil, err
	}

	configRaw, err := readBlob(configPath, manifest.Config.Digest)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := json.Unmarshal(configRaw, config); err != nil {
		return nil, &StructureError{Path: configPath, Err: errors.Wrap(err, "decoding config")}
	}

	if config.Architecture == "" || config.OS == "" {
		return nil, structureErrorf(configPath, "config does not declare architecture and os")
	}

	return &Image{
		IndexPath:          indexPath,
		ManifestDescriptor: desc,
		Manifest:           manifest,
		ManifestRaw:        manifestRaw,
		Config:             config,
		ConfigRaw:          configRaw,
	}, nil
}

// ReadIndexFile reads and validates the index document at path. It returns
// the parsed document and its raw content.
func ReadIndexFile(path string) (*ocispec.Index, []byte, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, nil, err
	}

	index := &ocispec.Index{}
	if err := json.Unmarshal(raw, index); err != nil {
		return nil, nil, &StructureError{Path: path, Err: errors.Wrap(err, "decoding index")}
	}

	if index.SchemaVersion != 2 {
		return nil, nil, structureErrorf(path, "unsupported index schema version %d", index.SchemaVersion)
	}

	if len(index.Manifests) == 0 {
		return nil, nil, structureErrorf(path, "index does not reference a manifest")
	}

	first := index.Manifests[0]
	if !registry.IsManifestMediaType(first.MediaType) {
		return nil, nil, structureErrorf(path, "first index entry has unsupported media type %q", first.MediaType)
	}

	if err := first.Digest.Validate(); err != nil {
		return nil, nil, &StructureError{Path: path, Err: errors.Wrapf(err, "first index entry digest %q", first.Digest)}
	}

	return index, raw, nil
}

// HashFile returns the sha256 digest of the file at path.
func HashFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &StructureError{Path: path, Err: ErrNotExist}
		}

		return "", errors.Wrapf(err, "opening %s", path)
	}

	defer f.Close()
	d, err := digest.SHA256.FromReader(f)
	if err != nil {
		return "", errors.Wrapf(err, "hashing %s", path)
	}

	return d, nil
}

// Hex returns the encoded part of a digest, the name of the blob in a blob store.
func Hex(d digest.Digest) string {
	return d.Encoded()
}

// readBlob expects a validated digest.
func readBlob(path string, expected digest.Digest) ([]byte, error) {
	if !expected.Algorithm().Available() {
		return nil, structureErrorf(path, "unsupported digest algorithm %s", expected.Algorithm())
	}

	b, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if actual := expected.Algorithm().FromBytes(b); actual != expected {
		return nil, structureErrorf(path, "content digest %s does not match %s", actual, expected)
	}

	return b, nil
}

func readFile(path string) ([]byte, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StructureError{Path: path, Err: ErrNotExist}
		}

		return nil, errors.Wrapf(err, "reading %s", path)
	}

	return b, nil
}
