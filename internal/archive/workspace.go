// Package archive manages the per-request scratch directory an uploaded
// source archive is written to and extracted in.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrBadArchive marks a corrupt or unsupported upload, as opposed to a
// local I/O failure. Callers map it to a client-facing rejection.
var ErrBadArchive = errors.New("corrupt or unsupported source archive")

const (
	archiveFilename = "source.tar.gz"
	packageDirname  = "package"
)

// Workspace is a scratch directory scoped to one ingestion attempt. It
// holds the uploaded archive on disk and, after Extract, the unpacked
// package tree. Close removes the whole directory and is safe to call
// from any exit path.
type Workspace struct {
	dir     string
	cleanup sync.Once
}

// New creates a workspace and writes the archive bytes into it. On any
// failure the partially created directory is removed before returning.
func New(archiveBytes []byte) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "parcel-ingest-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, archiveFilename), archiveBytes, 0o600); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Error("failed to remove workspace after write failure", "dir", dir, "error", rmErr)
		}
		return nil, fmt.Errorf("failed to write archive to workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Root returns the directory the archive is unpacked into.
func (w *Workspace) Root() string {
	return filepath.Join(w.dir, packageDirname)
}

// Extract unpacks the stored gzip-compressed tar archive under Root. A
// gzip or tar decode failure reports ErrBadArchive so the caller can
// reject the upload instead of treating it as a server fault.
func (w *Workspace) Extract() error {
	f, err := os.Open(filepath.Join(w.dir, archiveFilename))
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadArchive, err)
	}
	defer gz.Close()

	root := w.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create package directory: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadArchive, err)
		}
		target, err := entryPath(root, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", hdr.Name, err)
			}
			if err := writeEntry(target, tr); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		default:
			// Symlinks, devices and the like have no place in a source
			// archive; ignore them rather than fail the whole upload.
			continue
		}
	}
	return nil
}

// Close removes the workspace tree. Removal runs at most once no matter
// how many paths defer it.
func (w *Workspace) Close() error {
	var err error
	w.cleanup.Do(func() {
		err = os.RemoveAll(w.dir)
		if err != nil {
			log.Error("failed to remove ingest workspace", "dir", w.dir, "error", err)
		}
	})
	return err
}

// entryPath resolves an archive entry name inside root, rejecting
// absolute paths and entries that climb out of the tree.
func entryPath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: entry %q escapes the archive root", ErrBadArchive, name)
	}
	return filepath.Join(root, cleaned), nil
}

func writeEntry(target string, r io.Reader) error {
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
