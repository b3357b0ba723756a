// Package web serves the read-only part of the Docker Registry HTTP API V2
// from the images that are installed by packages.
package web

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/resolver"
	digest "github.com/opencontainers/go-digest"
	log "github.com/sirupsen/logrus"
)

// Resolver resolves the references of requests.
type Resolver interface {
	ListTags(ctx context.Context, name string) ([]string, error)
	ResolveByTag(ctx context.Context, name string, tag string) (*registry.ManifestList, error)
	ResolveIndexByTag(ctx context.Context, name string, tag string) (*resolver.Artifact, error)
	ResolveByDigest(ctx context.Context, name string, d digest.Digest) (*resolver.Artifact, error)
	ResolveBlob(ctx context.Context, d digest.Digest) (*resolver.Artifact, error)
}

type Handler struct {
	log      log.FieldLogger
	resolver Resolver
}

// Init returns the handler of the registry API.
func Init(res Resolver, l log.FieldLogger) http.Handler {
	if l == nil {
		l = log.StandardLogger()
	}

	h := &Handler{
		log:      l,
		resolver: res,
	}

	r := mux.NewRouter()
	r.Use(routeName)
	r.HandleFunc("/v2/", h.Base).Methods(http.MethodGet, http.MethodHead).Name("base")
	r.HandleFunc("/v2", h.Base).Methods(http.MethodGet, http.MethodHead).Name("base")
	r.HandleFunc("/v2/{name:.+}/tags/list", h.Tags).Methods(http.MethodGet).Name("tags")
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.Manifest).Methods(http.MethodGet, http.MethodHead).Name("manifest")
	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.Blob).Methods(http.MethodGet, http.MethodHead).Name("blob")
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	return &server{log: l, router: r}
}
