package psd2client

import "errors"

// Configuration errors.
var (
	// ErrInvalidConfig is returned when Config or FileConfig holds an
	// unusable value.
	ErrInvalidConfig = errors.New("psd2client: invalid configuration")
)

// Request errors. They fail a single call; the client stays usable.
var (
	// ErrInvalidMethod is returned for methods other than GET, POST, PUT
	// and DELETE.
	ErrInvalidMethod = errors.New("psd2client: invalid method")

	// ErrInvalidPath is returned when the request path cannot be resolved
	// to an absolute URL.
	ErrInvalidPath = errors.New("psd2client: invalid path")

	// ErrInvalidHeader is returned when a header name or value cannot be
	// sent over HTTP.
	ErrInvalidHeader = errors.New("psd2client: invalid header")

	// ErrUnsupportedEncoding is returned for body encodings other than
	// json and urlencoded.
	ErrUnsupportedEncoding = errors.New("psd2client: unsupported encoding")

	// ErrEncoding is returned when a body cannot be serialized.
	ErrEncoding = errors.New("psd2client: unable to serialize body")

	// ErrTransport wraps failures of the underlying HTTP transport. The
	// original cause is preserved in the chain.
	ErrTransport = errors.New("psd2client: transport failure")
)
