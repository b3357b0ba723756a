package web

import (
	"context"
	"net/http"

	"github.com/docker/distribution/registry/api/errcode"
	rlog "github.com/imagespy/rpm-registry/log"
	"github.com/imagespy/rpm-registry/resolver"
	"github.com/pkg/errors"
)

// serveError writes the registry error envelope for err. Unknown references
// are reported with notFound. Everything else is a server error.
func (h *Handler) serveError(w http.ResponseWriter, r *http.Request, err error, notFound errcode.ErrorCode) {
	l := requestLogger(r, h.log)
	var e error
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		l.Debug(err)
		e = notFound.WithDetail(err.Error())
	case errors.Is(err, context.Canceled):
		l.Debug(err)
		e = errcode.ErrorCodeUnavailable
	case errors.Is(err, resolver.ErrAmbiguousReference):
		l.Errorf("resolving %s: %s", r.URL.Path, err)
		e = errcode.ErrorCodeUnknown.WithMessage(err.Error())
	default:
		l.Errorf("resolving %s: %s", r.URL.Path, rlog.FormatError(err))
		e = errcode.ErrorCodeUnknown
	}

	h.writeError(w, r, e)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, e error) {
	if err := errcode.ServeJSON(w, e); err != nil {
		requestLogger(r, h.log).Errorf("writing error response: %s", err)
	}
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, errcode.ErrorCodeUnsupported.WithMessage("the registry is read-only"))
}

