package resolver

import (
	"bytes"
	"io"
	"os"

	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

// Kind is the kind of document or blob a digest resolved to.
type Kind int

const (
	KindManifest Kind = iota + 1
	KindIndex
	KindConfig
	KindLayer
)

func (k Kind) String() string {
	switch k {
	case KindManifest:
		return "manifest"
	case KindIndex:
		return "index"
	case KindConfig:
		return "config"
	case KindLayer:
		return "layer"
	}

	return "unknown"
}

// Artifact is a resolved document or blob. Small documents are held in
// Content, everything else is read from Path.
type Artifact struct {
	Kind      Kind
	MediaType string
	Digest    digest.Digest
	Size      int64
	Path      string
	Content   []byte
}

// Open returns a reader for the artifact's content.
func (a *Artifact) Open() (io.ReadSeekCloser, error) {
	if a.Content != nil {
		return &contentReader{bytes.NewReader(a.Content)}, nil
	}

	f, err := os.Open(a.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s %s", a.Kind, a.Digest)
	}

	return f, nil
}

type contentReader struct {
	*bytes.Reader
}

func (contentReader) Close() error {
	return nil
}
