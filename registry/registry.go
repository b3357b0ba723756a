package registry

import (
	"regexp"
	"strings"

	"github.com/docker/distribution/reference"
	digest "github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
)

var (
	// ErrTagInvalid is returned by ParseReference for references that are neither a digest nor a valid tag.
	ErrTagInvalid = errors.New("invalid tag")

	anchoredTagRegexp  = regexp.MustCompile(`^` + reference.TagRegexp.String() + `$`)
	anchoredNameRegexp = regexp.MustCompile(`^` + reference.NameRegexp.String() + `$`)
)

// ParseReference splits the reference part of a manifest URL into either a tag
// or a digest. Exactly one of the returned values is set if err is nil.
func ParseReference(ref string) (string, digest.Digest, error) {
	if strings.Contains(ref, ":") {
		d, err := digest.Parse(ref)
		if err != nil {
			return "", "", err
		}

		return "", d, nil
	}

	if !anchoredTagRegexp.MatchString(ref) {
		return "", "", errors.Wrapf(ErrTagInvalid, "%q", ref)
	}

	return ref, "", nil
}

// ValidName reports whether name is a valid repository name.
func ValidName(name string) bool {
	return len(name) <= reference.NameTotalLengthMax && anchoredNameRegexp.MatchString(name)
}
