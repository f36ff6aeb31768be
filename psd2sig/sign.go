package psd2sig

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// GenerateRequestID returns a new random UUID v4 (122 random bits) for the
// X-Request-Id header.
func GenerateRequestID() string {
	return uuid.NewString()
}

// SignConfig configures request signing.
type SignConfig struct {
	// Material holds the validated signing certificate and key. Required.
	Material *SigningMaterial

	// RequestID returns the X-Request-Id value for a request. Defaults to
	// GenerateRequestID. It is called once per signed request.
	RequestID func() string
}

// SignedRequest is the result of signing one request.
type SignedRequest struct {
	// RequestID is the value of the X-Request-Id header.
	RequestID string

	// Header holds the sanitized caller headers and the computed Digest,
	// X-Request-Id, TPP-Signature-Certificate and Signature headers.
	Header http.Header

	// Body is the request body, unchanged.
	Body []byte
}

// Sign signs a request described by headers and body.
//
// Reserved headers and non-primitive values are removed from headers (see
// Sanitize), then X-Request-Id and Digest are added. The signable headers
// (digest, x-request-id, psu-id, psu-corporate-id, tpp-redirect-uri) are
// rendered as sorted "name: value" lines, signed with RSASSA-PKCS1-v1_5
// SHA-256, and the TPP-Signature-Certificate and Signature headers are
// added. A nil body is digested as an empty one.
//
// Sign does not modify headers or body and is safe for concurrent use.
func Sign(headers map[string]any, body []byte, cfg SignConfig) (*SignedRequest, error) {
	if cfg.Material == nil {
		return nil, ErrNoMaterial
	}

	generate := cfg.RequestID
	if generate == nil {
		generate = GenerateRequestID
	}

	header := Sanitize(headers)

	requestID := generate()
	header[HeaderRequestID] = []string{requestID}
	header[HeaderDigest] = []string{ComputeDigest(body)}

	signingString, names := buildSigningString(header)

	signer := cfg.Material.signer

	sig, err := signer.Sign([]byte(signingString))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	header[HeaderSignatureCertificate] = []string{cfg.Material.encoded}
	header[HeaderSignature] = []string{serializeSignature(signatureParams{
		keyID:     signer.KeyID(),
		alg:       signer.Algorithm(),
		headers:   names,
		signature: sig,
	})}

	return &SignedRequest{
		RequestID: requestID,
		Header:    header,
		Body:      body,
	}, nil
}

// SignRequest signs an HTTP request in place. The request headers are
// replaced by the signed header set; the body is read and restored.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if cfg.Material == nil {
		return ErrNoMaterial
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	signed, err := Sign(FromHTTPHeader(r.Header), body, cfg)
	if err != nil {
		return err
	}

	r.Header = signed.Header

	return nil
}
