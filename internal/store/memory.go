package store

import (
	"context"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/bnema/parcel/internal/identity"
)

// Memory is an in-process Store. It enforces the same case-insensitive
// key uniqueness as the sqlite backend, which lets orchestrator tests
// exercise the conflict protocol without a database on disk.
type Memory struct {
	mu       sync.Mutex
	releases map[string]*Release
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{releases: make(map[string]*Release)}
}

func (m *Memory) Exists(_ context.Context, id identity.PackageIdentity, version *semver.Version) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.releases[memoryKey(id, version)]
	return ok, nil
}

func (m *Memory) Create(_ context.Context, release *Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(release.Identity, release.Version)
	if _, ok := m.releases[key]; ok {
		return ErrConflict
	}
	m.releases[key] = release
	return nil
}

func (m *Memory) Get(_ context.Context, id identity.PackageIdentity, version *semver.Version) (*Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	release, ok := m.releases[memoryKey(id, version)]
	if !ok {
		return nil, ErrNotFound
	}
	return release, nil
}

func (m *Memory) Close() error {
	return nil
}

// memoryKey lowercases scope and name so lookups match the
// case-insensitive identity semantics.
func memoryKey(id identity.PackageIdentity, version *semver.Version) string {
	return strings.ToLower(string(id.Scope)) + "/" + strings.ToLower(string(id.Name)) + "/" + version.String()
}
