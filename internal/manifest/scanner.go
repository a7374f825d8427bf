// Package manifest discovers build descriptors in an extracted package
// tree. A package ships one canonical Package.swift plus any number of
// toolchain-qualified variants such as Package@swift-5.5.swift; every
// recognized descriptor must declare its minimum tools version on the
// first line.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
)

const (
	canonicalStem      = "Package"
	descriptorExt      = ".swift"
	qualifierPrefix    = "@swift-"
	toolsVersionMarker = "// swift-tools-version:"
)

// Record is one discovered build descriptor. An empty ToolchainVersion
// marks the canonical descriptor.
type Record struct {
	ToolchainVersion string
	Filename         string
	ToolsVersion     string
	Contents         []byte
}

// Scan enumerates build descriptors at the root of an extracted package
// tree, in directory enumeration order. A version-qualified descriptor
// that is unreadable or carries no tools-version marker is skipped, not
// fatal; whether the canonical descriptor made it into the result is the
// caller's invariant to enforce.
func Scan(root string) ([]Record, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read package root: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		qualifier, ok := parseDescriptorName(entry.Name())
		if !ok {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(root, entry.Name()))
		if err != nil {
			log.Warn("skipping unreadable descriptor", "file", entry.Name(), "error", err)
			continue
		}
		tools, ok := toolsVersion(contents)
		if !ok {
			log.Warn("skipping descriptor without tools-version marker", "file", entry.Name())
			continue
		}
		records = append(records, Record{
			ToolchainVersion: qualifier,
			Filename:         entry.Name(),
			ToolsVersion:     tools,
			Contents:         contents,
		})
	}
	return records, nil
}

// HasCanonical reports whether records contain the descriptor with no
// toolchain qualifier.
func HasCanonical(records []Record) bool {
	for _, r := range records {
		if r.ToolchainVersion == "" {
			return true
		}
	}
	return false
}

// parseDescriptorName matches a filename against the fixed descriptor
// grammar Package[@swift-MAJOR[.MINOR[.PATCH]]].swift. It returns the
// embedded toolchain version, empty for the canonical name, and whether
// the name matched at all. A malformed embedded version means the file is
// not a descriptor, not that the package is broken.
func parseDescriptorName(name string) (string, bool) {
	if !strings.HasPrefix(name, canonicalStem) || !strings.HasSuffix(name, descriptorExt) {
		return "", false
	}
	middle := name[len(canonicalStem) : len(name)-len(descriptorExt)]
	if middle == "" {
		return "", true
	}
	if !strings.HasPrefix(middle, qualifierPrefix) {
		return "", false
	}
	version := middle[len(qualifierPrefix):]
	if !validQualifier(version) {
		return "", false
	}
	return version, true
}

// validQualifier accepts MAJOR, MAJOR.MINOR or MAJOR.MINOR.PATCH where
// each component is plain decimal digits.
func validQualifier(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) > 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false
			}
		}
	}
	return true
}

// toolsVersion extracts the minimum tools version declared on the first
// line of a descriptor. Only the first line is inspected; a missing or
// unparsable marker disqualifies the file.
func toolsVersion(contents []byte) (string, bool) {
	line := contents
	if i := bytes.IndexByte(contents, '\n'); i >= 0 {
		line = contents[:i]
	}
	text := strings.TrimRight(string(line), "\r")
	if !strings.HasPrefix(text, toolsVersionMarker) {
		return "", false
	}
	raw := strings.TrimSpace(text[len(toolsVersionMarker):])
	if _, err := semver.NewVersion(raw); err != nil {
		return "", false
	}
	return raw, true
}
