package ingest

import "errors"

// Kind classifies an ingestion failure into the response class the HTTP
// layer reports. Every error leaving this package carries exactly one
// Kind.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalid marks a malformed scope, name or version token.
	KindInvalid
	// KindConflict marks a release key that already exists.
	KindConflict
	// KindUnprocessable marks a missing or corrupt archive, or a package
	// without its canonical descriptor.
	KindUnprocessable
	// KindNotFound marks a lookup for a release that was never published.
	KindNotFound
	// KindUnavailable marks a store or backend failure.
	KindUnavailable
)

// Error is a classified ingestion failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the classification from err, or KindUnknown when the
// error did not come out of the ingestion flow.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
