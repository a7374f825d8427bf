package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/parcel/internal/identity"
	"github.com/bnema/parcel/internal/manifest"
)

func testRelease(t *testing.T, scope, name, version string) *Release {
	t.Helper()
	v, err := semver.StrictNewVersion(version)
	require.NoError(t, err)
	return &Release{
		Identity:      identity.PackageIdentity{Scope: identity.Scope(scope), Name: identity.Name(name)},
		Version:       v,
		Checksum:      "deadbeef",
		SourceArchive: []byte("archive"),
		Manifests: []manifest.Record{
			{Filename: "Package.swift", ToolsVersion: "5.3", Contents: []byte("// swift-tools-version:5.3\n")},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryCreateAndGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	release := testRelease(t, "Acme", "Widgets", "2.0.0")

	exists, err := m.Exists(ctx, release.Identity, release.Version)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.Create(ctx, release))

	exists, err = m.Exists(ctx, release.Identity, release.Version)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := m.Get(ctx, release.Identity, release.Version)
	require.NoError(t, err)
	assert.Equal(t, "Acme/Widgets/2.0.0", got.Key())
}

func TestMemoryConflict(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, testRelease(t, "Acme", "Widgets", "2.0.0")))
	assert.ErrorIs(t, m.Create(ctx, testRelease(t, "Acme", "Widgets", "2.0.0")), ErrConflict)

	// The key comparison ignores case.
	assert.ErrorIs(t, m.Create(ctx, testRelease(t, "acme", "wIDGETS", "2.0.0")), ErrConflict)

	// A different version is a different release.
	assert.NoError(t, m.Create(ctx, testRelease(t, "Acme", "Widgets", "2.0.1")))
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()
	release := testRelease(t, "Acme", "Widgets", "2.0.0")
	_, err := m.Get(context.Background(), release.Identity, release.Version)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryConcurrentCreate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const publishers = 8
	releases := make([]*Release, publishers)
	for i := range releases {
		releases[i] = testRelease(t, "Acme", "Widgets", "2.0.0")
	}

	errs := make([]error, publishers)
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Create(ctx, releases[i])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)
}
