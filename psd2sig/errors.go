package psd2sig

import "errors"

// Credential errors. All of them are fatal for construction.
var (
	// ErrCredentialFormat is returned when certificate or key material has
	// an unsupported shape or cannot be parsed.
	ErrCredentialFormat = errors.New("psd2sig: invalid credential format")

	// ErrCredentialMismatch is returned when a private key does not belong
	// to the certificate it was supplied with.
	ErrCredentialMismatch = errors.New("psd2sig: private key does not match certificate")

	// ErrIncompleteCredential is returned when only one half of a
	// certificate/key pair is supplied.
	ErrIncompleteCredential = errors.New("psd2sig: incomplete certificate/key pair")
)

// Signing errors.
var (
	// ErrNoMaterial is returned when SignConfig has no signing material.
	ErrNoMaterial = errors.New("psd2sig: signing material must not be nil")

	// ErrSigning is returned when the RSA signature cannot be produced.
	ErrSigning = errors.New("psd2sig: signing failed")
)

// Verification errors.
var (
	// ErrNoResolver is returned when VerifyConfig has no KeyResolver configured.
	ErrNoResolver = errors.New("psd2sig: key resolver must not be nil")

	// ErrSignatureNotFound is returned when the request carries no Signature
	// header.
	ErrSignatureNotFound = errors.New("psd2sig: signature not found")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("psd2sig: signature verification failed")

	// ErrMalformedHeader is returned when the Signature header cannot be
	// parsed.
	ErrMalformedHeader = errors.New("psd2sig: malformed signature header")

	// ErrMissingHeader is returned when a required header is not covered by
	// the signature or is absent from the request.
	ErrMissingHeader = errors.New("psd2sig: required header missing from signature")

	// ErrUnknownKey is returned by resolvers that cannot map a keyId to a
	// verifier.
	ErrUnknownKey = errors.New("psd2sig: unknown key")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when the Digest header does not match the
	// request body.
	ErrDigestMismatch = errors.New("psd2sig: digest mismatch")

	// ErrDigestNotFound is returned when the Digest header is not present.
	ErrDigestNotFound = errors.New("psd2sig: digest not found")

	// ErrUnsupportedDigest is returned when the digest algorithm is not
	// supported.
	ErrUnsupportedDigest = errors.New("psd2sig: unsupported digest algorithm")
)
