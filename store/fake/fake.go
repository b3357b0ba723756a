// Package fake implements an in-memory package database for tests.
package fake

import (
	"context"

	"github.com/imagespy/rpm-registry/store"
	"github.com/pkg/errors"
)

// Package is an installed package of the fake database.
type Package struct {
	ID           string
	Name         string
	Architecture string
	Capabilities []store.Capability
	Files        []string
}

type Store struct {
	packages []*Package
}

// NewStore returns a store that knows about the given packages.
func NewStore(pkgs ...*Package) *Store {
	return &Store{packages: pkgs}
}

// Add installs a package.
func (fs *Store) Add(p *Package) {
	fs.packages = append(fs.packages, p)
}

func (fs *Store) Providers(ctx context.Context, c store.Capability) ([]string, error) {
	result := []string{}
	for _, p := range fs.packages {
		for _, pc := range p.Capabilities {
			if c.Matches(pc) {
				result = append(result, p.ID)
				break
			}
		}
	}

	return result, nil
}

func (fs *Store) Capabilities(ctx context.Context, pkg string) ([]store.Capability, error) {
	p, err := fs.get(pkg)
	if err != nil {
		return nil, err
	}

	return p.Capabilities, nil
}

func (fs *Store) Files(ctx context.Context, pkg string) ([]string, error) {
	p, err := fs.get(pkg)
	if err != nil {
		return nil, err
	}

	return p.Files, nil
}

func (fs *Store) Info(ctx context.Context, pkg string) (*store.Package, error) {
	p, err := fs.get(pkg)
	if err != nil {
		return nil, err
	}

	return &store.Package{ID: p.ID, Name: p.Name, Architecture: p.Architecture}, nil
}

func (fs *Store) get(pkg string) (*Package, error) {
	for _, p := range fs.packages {
		if p.ID == pkg {
			return p, nil
		}
	}

	return nil, errors.Wrapf(store.ErrQuery, "package %s is not installed", pkg)
}
