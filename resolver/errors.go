package resolver

import (
	"fmt"
	"strings"

	"github.com/imagespy/rpm-registry/store"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned if no package or file matches a reference.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousReference matches every AmbiguousError.
	ErrAmbiguousReference = errors.New("ambiguous reference")
)

// AmbiguousError is returned if more packages provide a capability than
// allowed. The package database is misconfigured if this happens.
type AmbiguousError struct {
	Capability store.Capability
	Packages   []string
}

func (e *AmbiguousError) Error() string {
	c := e.Capability.String()
	if e.Capability.Version != "" {
		c = c + " = " + e.Capability.Version
	}

	return fmt.Sprintf("%s: %d packages provide %s: %s", ErrAmbiguousReference, len(e.Packages), c, strings.Join(e.Packages, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguousReference
}
