package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	sqlite "modernc.org/sqlite"

	"github.com/bnema/parcel/internal/identity"
	"github.com/bnema/parcel/internal/manifest"
)

const dbFilename = "parcel.db"

// SQLite extended result codes for constraint violations on the release
// key. Anything else is a backend fault, not a conflict.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// SQLite is the relational Store backend. A single bounded *sql.DB pool
// is shared by every concurrent request; no connection is held across
// archive analysis because callers only touch the store for the short
// Exists/Create/Get calls.
type SQLite struct {
	db *sql.DB
}

// Open opens the registry database under dataDir, creating it if needed,
// and brings the schema up to the expected shape. The migration is
// idempotent and re-runs safely on restart; a migration failure is fatal
// to startup, never to an individual request.
func Open(dataDir string, maxConns int) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dataDir, dbFilename)

	// busy_timeout lets a writer wait for a concurrent transaction
	// instead of failing with SQLITE_BUSY; the unique index then decides
	// who wins the key.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debug("release store ready", "path", path, "max_conns", maxConns)
	return &SQLite{db: db}, nil
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS releases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope TEXT NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			checksum TEXT NOT NULL,
			repository_url TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			source_archive BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS releases_key_idx
			ON releases (scope COLLATE NOCASE, name COLLATE NOCASE, version);
		CREATE TABLE IF NOT EXISTS release_manifests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			release_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			toolchain_version TEXT,
			filename TEXT NOT NULL,
			tools_version TEXT NOT NULL,
			contents BLOB NOT NULL,
			FOREIGN KEY (release_id) REFERENCES releases(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS release_manifests_release_idx
			ON release_manifests (release_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM releases
		 WHERE scope = ? COLLATE NOCASE AND name = ? COLLATE NOCASE AND version = ?`,
		string(id.Scope), string(id.Name), version.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to probe release: %w", err)
	}
	return count > 0, nil
}

// Create inserts the release row and its manifest rows in one
// transaction. The unique index on (scope, name, version) is the source
// of truth for the conflict protocol: when two publishers race, the
// second insert fails here and is reported as ErrConflict.
func (s *SQLite) Create(ctx context.Context, release *Release) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO releases (scope, name, version, checksum, repository_url, commit_hash, source_archive, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(release.Identity.Scope), string(release.Identity.Name), release.Version.String(),
		release.Checksum, release.RepositoryURL, release.CommitHash,
		release.SourceArchive, release.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert release: %w", err)
	}
	releaseID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read release id: %w", err)
	}

	for i, record := range release.Manifests {
		toolchain := sql.NullString{String: record.ToolchainVersion, Valid: record.ToolchainVersion != ""}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO release_manifests (release_id, position, toolchain_version, filename, tools_version, contents)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			releaseID, i, toolchain, record.Filename, record.ToolsVersion, record.Contents,
		)
		if err != nil {
			return fmt.Errorf("failed to insert manifest %s: %w", record.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit release: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id identity.PackageIdentity, version *semver.Version) (*Release, error) {
	var (
		releaseID int64
		release   Release
		scope     string
		name      string
		ver       string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, scope, name, version, checksum, repository_url, commit_hash, source_archive, created_at
		 FROM releases
		 WHERE scope = ? COLLATE NOCASE AND name = ? COLLATE NOCASE AND version = ?`,
		string(id.Scope), string(id.Name), version.String(),
	).Scan(&releaseID, &scope, &name, &ver, &release.Checksum,
		&release.RepositoryURL, &release.CommitHash, &release.SourceArchive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read release: %w", err)
	}

	// The stored row keeps the casing of the first publisher.
	release.Identity = identity.PackageIdentity{Scope: identity.Scope(scope), Name: identity.Name(name)}
	release.Version, err = semver.StrictNewVersion(ver)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored version %q: %w", ver, err)
	}
	release.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored timestamp %q: %w", createdAt, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT toolchain_version, filename, tools_version, contents
		 FROM release_manifests WHERE release_id = ? ORDER BY position`,
		releaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			record    manifest.Record
			toolchain sql.NullString
		)
		if err := rows.Scan(&toolchain, &record.Filename, &record.ToolsVersion, &record.Contents); err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		record.ToolchainVersion = toolchain.String
		release.Manifests = append(release.Manifests, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate manifest rows: %w", err)
	}

	return &release, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	return false
}
