// Package ingest composes identity validation, archive analysis, checksum
// computation and the release store into the end-to-end create-package-
// release flow.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/bnema/parcel/internal/archive"
	"github.com/bnema/parcel/internal/checksum"
	"github.com/bnema/parcel/internal/identity"
	"github.com/bnema/parcel/internal/manifest"
	"github.com/bnema/parcel/internal/metrics"
	"github.com/bnema/parcel/internal/store"
)

// PublishRequest carries one decoded upload: the raw path tokens, the
// archive bytes and the optional caller-supplied metadata.
type PublishRequest struct {
	Scope         string
	Name          string
	Version       string
	RepositoryURL string
	CommitHash    string
	Archive       []byte
}

// PublishResult is the payload for a freshly created release.
type PublishResult struct {
	Scope         string `json:"scope"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	Checksum      string `json:"checksum"`
	RepositoryURL string `json:"repositoryURL,omitempty"`
	CommitHash    string `json:"commitHash,omitempty"`
	Location      string `json:"location"`
}

// Service is the release ingestion orchestrator. All collaborators are
// injected at startup; the service itself holds no mutable state, so one
// instance serves every concurrent request.
type Service struct {
	store   store.Store
	metrics *metrics.Ingest
	logger  *log.Logger
}

// New builds the orchestrator.
func New(st store.Store, m *metrics.Ingest, logger *log.Logger) *Service {
	return &Service{store: st, metrics: m, logger: logger}
}

// Publish runs the create-package-release flow. Side effects are strictly
// ordered: nothing is written to the store before the archive analysis
// succeeds, and the analysis workspace is removed on every branch. The
// Create call is the single commit point; a conflict there surfaces the
// same way as one caught by the advisory Exists probe.
func (s *Service) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	id, err := identity.ParseIdentity(req.Scope, req.Name)
	if err != nil {
		s.metrics.Rejected("invalid_identity")
		return nil, newError(KindInvalid, err, "invalid package identity")
	}
	version, err := identity.ParseVersion(req.Version)
	if err != nil {
		s.metrics.Rejected("invalid_version")
		return nil, newError(KindInvalid, err, "invalid release version")
	}

	// Advisory fast path. The store's Create remains the authority on
	// uniqueness; this probe only avoids wasted archive analysis.
	exists, err := s.store.Exists(ctx, id, version)
	if err != nil {
		s.metrics.Rejected("store_error")
		return nil, newError(KindUnavailable, err, "release store unavailable")
	}
	if exists {
		s.metrics.Rejected("conflict")
		return nil, s.conflict(ctx, id, version)
	}

	if len(req.Archive) == 0 {
		s.metrics.Rejected("missing_archive")
		return nil, newError(KindUnprocessable, nil, "request carries no source archive")
	}

	digest := checksum.Archive(req.Archive)

	analysisStart := time.Now()
	records, err := s.analyzeArchive(ctx, req.Archive)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrBadArchive):
			s.metrics.Rejected("bad_archive")
			return nil, newError(KindUnprocessable, err, "source archive could not be processed")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			s.metrics.Rejected("analysis_error")
			return nil, newError(KindUnavailable, err, "archive analysis failed")
		}
	}
	s.metrics.ObserveAnalysis(time.Since(analysisStart))

	if !manifest.HasCanonical(records) {
		s.metrics.Rejected("no_canonical_manifest")
		return nil, newError(KindUnprocessable, nil, "package has no canonical Package.swift descriptor")
	}

	release := &store.Release{
		Identity:      id,
		Version:       version,
		Checksum:      digest,
		RepositoryURL: req.RepositoryURL,
		CommitHash:    req.CommitHash,
		SourceArchive: req.Archive,
		Manifests:     records,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.Create(ctx, release); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.metrics.Rejected("conflict")
			return nil, s.conflict(ctx, id, version)
		}
		s.metrics.Rejected("store_error")
		return nil, newError(KindUnavailable, err, "release store unavailable")
	}

	s.metrics.Accepted()
	s.logger.Info("release published",
		"package", id.String(),
		"version", version.String(),
		"checksum", digest,
		"manifests", len(records))

	return &PublishResult{
		Scope:         string(id.Scope),
		Name:          string(id.Name),
		Version:       version.String(),
		Checksum:      digest,
		RepositoryURL: req.RepositoryURL,
		CommitHash:    req.CommitHash,
		Location:      fmt.Sprintf("%s/%s/%s", id.Scope, id.Name, version),
	}, nil
}

// Get looks up a published release by its raw path tokens.
func (s *Service) Get(ctx context.Context, scope, name, version string) (*store.Release, error) {
	id, err := identity.ParseIdentity(scope, name)
	if err != nil {
		return nil, newError(KindInvalid, err, "invalid package identity")
	}
	v, err := identity.ParseVersion(version)
	if err != nil {
		return nil, newError(KindInvalid, err, "invalid release version")
	}
	release, err := s.store.Get(ctx, id, v)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, nil,
				fmt.Sprintf("release %s/%s/%s does not exist", id.Scope, id.Name, v))
		}
		return nil, newError(KindUnavailable, err, "release store unavailable")
	}
	return release, nil
}

type analysis struct {
	records []manifest.Record
	err     error
}

// analyzeArchive extracts the upload into a scratch workspace and scans
// it for build descriptors. The blocking extraction work runs on its own
// goroutine and the request waits on a one-shot channel; when the request
// is cancelled it stops waiting, while the worker still runs to
// completion and removes the workspace, so a timed-out request never
// leaves a directory behind.
func (s *Service) analyzeArchive(ctx context.Context, archiveBytes []byte) ([]manifest.Record, error) {
	done := make(chan analysis, 1)
	go func() {
		ws, err := archive.New(archiveBytes)
		if err != nil {
			done <- analysis{err: err}
			return
		}

		var res analysis
		if err := ws.Extract(); err != nil {
			res.err = err
		} else {
			res.records, res.err = manifest.Scan(ws.Root())
		}
		// The workspace is gone before the completion signal fires, so a
		// request that observes the result never sees a leftover
		// directory.
		ws.Close()
		done <- res
	}()

	select {
	case res := <-done:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// conflict builds the already-exists error. The key is rendered in the
// casing of the stored release, not the conflicting submission's.
func (s *Service) conflict(ctx context.Context, id identity.PackageIdentity, version *semver.Version) error {
	if stored, err := s.store.Get(ctx, id, version); err == nil {
		id = stored.Identity
	}
	return newError(KindConflict, store.ErrConflict,
		fmt.Sprintf("release %s/%s/%s already exists", id.Scope, id.Name, version))
}
