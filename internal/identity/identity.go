// Package identity validates the scope, name and version tokens that
// identify a package release. Parsing is pure: no store or filesystem
// access happens here, so a malformed request is rejected before any
// side effect occurs.
package identity

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	maxScopeLength = 39
	maxNameLength  = 100
)

// Error describes why a scope, name or version token was rejected.
type Error struct {
	Token  string // "scope", "name" or "version"
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Token, e.Value, e.Reason)
}

// Scope is a validated package namespace token.
type Scope string

// Name is a validated package name token.
type Name string

// PackageIdentity pairs a scope and a name. Two identities are equal
// case-insensitively; the stored form keeps the casing the package was
// first published with.
type PackageIdentity struct {
	Scope Scope
	Name  Name
}

// ParseScope validates a raw scope token: alphanumeric, hyphen-separated,
// at most 39 characters.
func ParseScope(raw string) (Scope, error) {
	if err := validateToken("scope", raw, maxScopeLength, "-"); err != nil {
		return "", err
	}
	return Scope(raw), nil
}

// ParseName validates a raw package name token: alphanumeric with hyphen
// or underscore separators, at most 100 characters.
func ParseName(raw string) (Name, error) {
	if err := validateToken("name", raw, maxNameLength, "-_"); err != nil {
		return "", err
	}
	return Name(raw), nil
}

// ParseIdentity validates both tokens and returns the identity value.
func ParseIdentity(scope, name string) (PackageIdentity, error) {
	s, err := ParseScope(scope)
	if err != nil {
		return PackageIdentity{}, err
	}
	n, err := ParseName(name)
	if err != nil {
		return PackageIdentity{}, err
	}
	return PackageIdentity{Scope: s, Name: n}, nil
}

// ParseVersion parses a release version from the request path. Only strict
// semantic versions are accepted, no "v" prefix and no partial versions.
func ParseVersion(raw string) (*semver.Version, error) {
	if raw == "" {
		return nil, &Error{Token: "version", Value: raw, Reason: "must not be empty"}
	}
	v, err := semver.StrictNewVersion(raw)
	if err != nil {
		return nil, &Error{Token: "version", Value: raw, Reason: "not a valid semantic version"}
	}
	return v, nil
}

// Equal compares two identities case-insensitively.
func (id PackageIdentity) Equal(other PackageIdentity) bool {
	return strings.EqualFold(string(id.Scope), string(other.Scope)) &&
		strings.EqualFold(string(id.Name), string(other.Name))
}

// String returns the display form "scope/name" with original casing.
func (id PackageIdentity) String() string {
	return string(id.Scope) + "/" + string(id.Name)
}

// validateToken scans a token against the registry grammar: the first and
// last characters must be alphanumeric, separators must not repeat, and
// the token must fit the length bound. Written as an explicit scan so each
// rejection names its reason.
func validateToken(token, raw string, maxLength int, separators string) error {
	if raw == "" {
		return &Error{Token: token, Value: raw, Reason: "must not be empty"}
	}
	if len(raw) > maxLength {
		return &Error{Token: token, Value: raw, Reason: fmt.Sprintf("must be at most %d characters", maxLength)}
	}
	prevSeparator := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if isAlphanumeric(c) {
			prevSeparator = false
			continue
		}
		if strings.IndexByte(separators, c) < 0 {
			return &Error{Token: token, Value: raw, Reason: fmt.Sprintf("contains disallowed character %q", c)}
		}
		if i == 0 {
			return &Error{Token: token, Value: raw, Reason: "must begin with a letter or digit"}
		}
		if i == len(raw)-1 {
			return &Error{Token: token, Value: raw, Reason: "must end with a letter or digit"}
		}
		if prevSeparator {
			return &Error{Token: token, Value: raw, Reason: "contains consecutive separators"}
		}
		prevSeparator = true
	}
	return nil
}

func isAlphanumeric(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
