package store

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrQuery is returned if the package database failed to answer a query about a package it listed before.
	ErrQuery = errors.New("package query failed")
)

// Store represents the high-level API to query the package database.
type Store interface {
	// Providers returns the packages that provide c. An empty result is not an error.
	Providers(ctx context.Context, c Capability) ([]string, error)
	// Capabilities returns all capabilities a package provides, in the order of the package database.
	Capabilities(ctx context.Context, pkg string) ([]Capability, error)
	// Files returns the absolute paths of the files installed by a package.
	Files(ctx context.Context, pkg string) ([]string, error)
	// Info returns name and architecture of a package.
	Info(ctx context.Context, pkg string) (*Package, error)
}
