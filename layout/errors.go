package layout

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotExist is wrapped by a StructureError if a file of the layout is missing.
	ErrNotExist = errors.New("file does not exist")
)

// StructureError is returned if an image layout is incomplete or one of its
// documents is malformed or does not match its digest.
type StructureError struct {
	Path string
	Err  error
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("invalid image layout at %s: %s", e.Path, e.Err)
}

func (e *StructureError) Unwrap() error {
	return e.Err
}

func structureErrorf(path string, format string, args ...interface{}) error {
	return &StructureError{Path: path, Err: errors.Errorf(format, args...)}
}
