// Package store persists package releases. The Store interface is the
// capability the ingestion flow depends on; the sqlite backend is the
// production implementation and Memory backs tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/bnema/parcel/internal/identity"
	"github.com/bnema/parcel/internal/manifest"
)

var (
	// ErrConflict is returned by Create when a release with the same
	// (scope, name, version) key already exists.
	ErrConflict = errors.New("release already exists")

	// ErrNotFound is returned by Get when no release matches the key.
	ErrNotFound = errors.New("release not found")
)

// Release is one immutable published version of a package. Once created
// it is never updated; the only operations are create and read.
type Release struct {
	Identity      identity.PackageIdentity
	Version       *semver.Version
	Checksum      string
	RepositoryURL string
	CommitHash    string
	SourceArchive []byte
	Manifests     []manifest.Record
	CreatedAt     time.Time
}

// Key returns the display form "scope/name/version" of the release key.
func (r *Release) Key() string {
	return r.Identity.String() + "/" + r.Version.String()
}

// Store is the persistence capability behind the ingestion flow.
//
// Create is the single authority on key uniqueness: a duplicate key must
// fail with ErrConflict at commit time, even when an earlier Exists probe
// returned false. Exists is advisory only, there to fail fast before the
// expensive archive analysis.
type Store interface {
	Exists(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (bool, error)
	Create(ctx context.Context, release *Release) error
	Get(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (*Release, error)
	Close() error
}
