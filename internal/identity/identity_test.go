package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	valid := []string{"acme", "Acme", "mona-lisa", "a", "scope1", "1scope"}
	for _, raw := range valid {
		scope, err := ParseScope(raw)
		require.NoError(t, err, "scope %q", raw)
		assert.Equal(t, Scope(raw), scope)
	}

	invalid := map[string]string{
		"":            "must not be empty",
		"-acme":       "must begin with a letter or digit",
		"acme-":       "must end with a letter or digit",
		"mona--lisa":  "contains consecutive separators",
		"acme_corp":   "contains disallowed character",
		"acme corp":   "contains disallowed character",
		"acme/widget": "contains disallowed character",
	}
	for raw, reason := range invalid {
		_, err := ParseScope(raw)
		require.Error(t, err, "scope %q", raw)
		var identityErr *Error
		require.ErrorAs(t, err, &identityErr)
		assert.Equal(t, "scope", identityErr.Token)
		assert.Contains(t, identityErr.Reason, reason)
	}

	tooLong := ""
	for i := 0; i < 40; i++ {
		tooLong += "a"
	}
	_, err := ParseScope(tooLong)
	assert.Error(t, err)
}

func TestParseName(t *testing.T) {
	valid := []string{"Widgets", "swift-log", "grpc_swift", "a1"}
	for _, raw := range valid {
		name, err := ParseName(raw)
		require.NoError(t, err, "name %q", raw)
		assert.Equal(t, Name(raw), name)
	}

	invalid := []string{"", "_widgets", "widgets_", "swift--log", "swift.log", "swift log"}
	for _, raw := range invalid {
		_, err := ParseName(raw)
		assert.Error(t, err, "name %q", raw)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v.String())

	v, err = ParseVersion("1.2.3-beta.1")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3-beta.1", v.String())

	for _, raw := range []string{"", "2", "2.0", "v2.0.0", "latest", "2.0.0.0"} {
		_, err := ParseVersion(raw)
		require.Error(t, err, "version %q", raw)
		var identityErr *Error
		require.ErrorAs(t, err, &identityErr)
		assert.Equal(t, "version", identityErr.Token)
	}
}

// Rejection must be idempotent: the same malformed token always yields
// the same classified error.
func TestRejectionIdempotence(t *testing.T) {
	first, err1 := ParseScope("-bad")
	second, err2 := ParseScope("-bad")
	assert.Equal(t, first, second)
	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
}

func TestIdentityEqualIsCaseInsensitive(t *testing.T) {
	a := PackageIdentity{Scope: "Acme", Name: "Widgets"}
	b := PackageIdentity{Scope: "acme", Name: "wIDGETS"}
	c := PackageIdentity{Scope: "acme", Name: "gadgets"}

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "Acme/Widgets", a.String())
}
