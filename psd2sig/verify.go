package psd2sig

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
)

// KeyResolver returns a Verifier for the given keyId and algorithm.
// It is called during request verification to look up the signer's key.
type KeyResolver func(r *http.Request, keyID string, alg Algorithm) (Verifier, error)

// defaultRequiredHeaders must be covered by every accepted signature.
var defaultRequiredHeaders = []string{"digest", "x-request-id"}

// VerifyConfig configures signature verification of incoming requests.
type VerifyConfig struct {
	// Resolver looks up a Verifier for a given keyId and algorithm.
	// Required.
	Resolver KeyResolver

	// RequiredHeaders lists lowercased header names that must be covered
	// by the signature. Defaults to digest and x-request-id.
	RequiredHeaders []string
}

// VerifyRequest verifies the Signature header of r. When the digest header
// is covered, the Digest value is also checked against the body.
func VerifyRequest(r *http.Request, cfg VerifyConfig) error {
	_, err := verifyRequest(r, cfg)
	return err
}

// verifyRequest verifies r and returns the keyId of the accepted signature.
func verifyRequest(r *http.Request, cfg VerifyConfig) (string, error) {
	if cfg.Resolver == nil {
		return "", ErrNoResolver
	}

	raw, ok := lookupHeader(r.Header, HeaderSignature)
	if !ok || raw == "" {
		return "", ErrSignatureNotFound
	}

	params, err := parseSignature(raw)
	if err != nil {
		return "", err
	}

	required := cfg.RequiredHeaders
	if len(required) == 0 {
		required = defaultRequiredHeaders
	}

	for _, name := range required {
		if !slices.Contains(params.headers, name) {
			return "", fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
	}

	if slices.Contains(params.headers, "digest") {
		if err := VerifyDigest(r); err != nil {
			return "", err
		}
	}

	verifier, err := cfg.Resolver(r, params.keyID, params.alg)
	if err != nil {
		return "", err
	}

	signingString, err := rebuildSigningString(r.Header, params.headers)
	if err != nil {
		return "", err
	}

	if err := verifier.Verify([]byte(signingString), params.signature); err != nil {
		return "", err
	}

	return params.keyID, nil
}

// CertificateResolver returns a KeyResolver that takes the signer's key
// from the TPP-Signature-Certificate header. The identity derived from the
// certificate must equal the keyId of the signature. When roots is not
// nil, the certificate must also chain to one of them.
func CertificateResolver(roots *x509.CertPool) KeyResolver {
	return func(r *http.Request, keyID string, alg Algorithm) (Verifier, error) {
		if alg != AlgorithmSHA256 {
			return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrUnknownKey, alg)
		}

		encoded, ok := lookupHeader(r.Header, HeaderSignatureCertificate)
		if !ok || encoded == "" {
			return nil, fmt.Errorf("%w: %s header not present", ErrUnknownKey, HeaderSignatureCertificate)
		}

		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 in certificate", ErrMalformedHeader)
		}

		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
		}

		if roots != nil {
			_, err := cert.Verify(x509.VerifyOptions{
				Roots:     roots,
				KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
			})
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnknownKey, err)
			}
		}

		if NewIdentity(cert).KeyID != keyID {
			return nil, fmt.Errorf("%w: keyId does not match certificate", ErrUnknownKey)
		}

		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: certificate key is not RSA", ErrUnknownKey)
		}

		return NewRSAVerifier(keyID, pub)
	}
}
