package web

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/distribution/registry/api/errcode"
	v2 "github.com/docker/distribution/registry/api/v2"
	"github.com/gorilla/mux"
	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/resolver"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

const (
	contentDigestHeader = "Docker-Content-Digest"
)

// Base answers the API version check.
func (h *Handler) Base(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", "2")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write([]byte("{}"))
	}
}

// Tags lists the tags of an image in lexical order. The list can be paginated
// with the query parameters n and last.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	name, ok := h.name(w, r)
	if !ok {
		return
	}

	tags, err := h.resolver.ListTags(r.Context(), name)
	if err != nil {
		h.serveError(w, r, err, v2.ErrorCodeNameUnknown)
		return
	}

	tags = uniqueSorted(tags)
	q := r.URL.Query()
	if last := q.Get("last"); last != "" {
		i := sort.SearchStrings(tags, last)
		if i < len(tags) && tags[i] == last {
			i++
		}

		tags = tags[i:]
	}

	if n, err := strconv.Atoi(q.Get("n")); err == nil && n >= 0 && n < len(tags) {
		tags = tags[:n]
		if n > 0 {
			next := url.Values{}
			next.Set("n", strconv.Itoa(n))
			next.Set("last", tags[n-1])
			w.Header().Set("Link", fmt.Sprintf(`<%s?%s>; rel="next"`, r.URL.Path, next.Encode()))
		}
	}

	b, err := json.Marshal(&registry.TagList{Name: name, Tags: tags})
	if err != nil {
		requestLogger(r, h.log).Errorf("encoding tag list: %s", err)
		h.writeError(w, r, errcode.ErrorCodeUnknown)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// Manifest serves the manifest list of a tag. A digest is resolved to a
// manifest, an index document or a blob, in this order.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	name, ok := h.name(w, r)
	if !ok {
		return
	}

	tag, d, err := registry.ParseReference(mux.Vars(r)["reference"])
	if err != nil {
		if errors.Is(err, registry.ErrTagInvalid) {
			h.writeError(w, r, v2.ErrorCodeTagInvalid.WithDetail(err.Error()))
			return
		}

		h.writeError(w, r, v2.ErrorCodeDigestInvalid.WithDetail(err.Error()))
		return
	}

	if d != "" {
		a, err := h.resolver.ResolveByDigest(r.Context(), name, d)
		if err != nil {
			h.serveError(w, r, err, v2.ErrorCodeManifestUnknown)
			return
		}

		h.serveArtifact(w, r, a)
		return
	}

	if accepts(r, registry.MediaTypeOCIIndex) && !accepts(r, registry.MediaTypeManifestList) {
		a, err := h.resolver.ResolveIndexByTag(r.Context(), name, tag)
		if err != nil {
			h.serveError(w, r, err, v2.ErrorCodeManifestUnknown)
			return
		}

		h.serveArtifact(w, r, a)
		return
	}

	list, err := h.resolver.ResolveByTag(r.Context(), name, tag)
	if err != nil {
		h.serveError(w, r, err, v2.ErrorCodeManifestUnknown)
		return
	}

	b, err := json.Marshal(list)
	if err != nil {
		requestLogger(r, h.log).Errorf("encoding manifest list: %s", err)
		h.writeError(w, r, errcode.ErrorCodeUnknown)
		return
	}

	w.Header().Set("Content-Type", list.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.Header().Set(contentDigestHeader, digest.FromBytes(b).String())
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(b)
	}
}

// Blob serves a config or a layer.
func (h *Handler) Blob(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.name(w, r); !ok {
		return
	}

	d, err := digest.Parse(mux.Vars(r)["digest"])
	if err != nil {
		h.writeError(w, r, v2.ErrorCodeDigestInvalid.WithDetail(err.Error()))
		return
	}

	a, err := h.resolver.ResolveBlob(r.Context(), d)
	if err != nil {
		h.serveError(w, r, err, v2.ErrorCodeBlobUnknown)
		return
	}

	h.serveArtifact(w, r, a)
}

func (h *Handler) serveArtifact(w http.ResponseWriter, r *http.Request, a *resolver.Artifact) {
	f, err := a.Open()
	if err != nil {
		h.serveError(w, r, err, v2.ErrorCodeBlobUnknown)
		return
	}

	defer f.Close()
	w.Header().Set("Content-Type", a.MediaType)
	w.Header().Set(contentDigestHeader, a.Digest.String())
	w.Header().Set("Etag", fmt.Sprintf(`"%s"`, a.Digest))
	http.ServeContent(w, r, "", time.Time{}, f)
}

func (h *Handler) name(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if !registry.ValidName(name) {
		h.writeError(w, r, v2.ErrorCodeNameInvalid.WithDetail(fmt.Sprintf("invalid repository name %q", name)))
		return "", false
	}

	return name, true
}

// accepts reports whether the Accept headers of the request list mediaType.
// Quality values are ignored.
func accepts(r *http.Request, mediaType string) bool {
	for _, header := range r.Header["Accept"] {
		for _, raw := range strings.Split(header, ",") {
			mt, _, err := mime.ParseMediaType(raw)
			if err != nil {
				continue
			}

			if mt == mediaType {
				return true
			}
		}
	}

	return false
}

func uniqueSorted(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := []string{}
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}
		result = append(result, t)
	}

	sort.Strings(result)
	return result
}
