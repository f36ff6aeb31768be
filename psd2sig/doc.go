// Package psd2sig implements the request signing used by PSD2 / Open
// Banking APIs: a SHA-256 Digest of the body, an X-Request-Id, the TPP
// signing certificate and an RSA Signature header over a canonical subset
// of headers.
//
// # Signing Material
//
// NewSigningMaterial validates a signing certificate and its RSA private
// key once and derives the keyId used in every signature. Certificates and
// keys are accepted as raw bytes (PEM or DER) or as hex-encoded strings:
//
//	material, err := psd2sig.NewSigningMaterial(certPEM, keyPEM)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(material.Identity().KeyID) // SN=0A1B...,CA=C=DE,O=Bank,CN=Issuing CA
//
// # Signing Requests
//
// Sign produces the complete header set for a request:
//
//	signed, err := psd2sig.Sign(map[string]any{
//	    "PSU-ID":       "user-1",
//	    "Content-Type": "application/json",
//	}, body, psd2sig.SignConfig{Material: material})
//
// The resulting headers include:
//
//	Digest: SHA-256=<base64>
//	X-Request-Id: <uuid>
//	TPP-Signature-Certificate: <base64 DER>
//	Signature: keyId="SN=...,CA=...",algorithm="sha-256",headers="digest psu-id x-request-id",signature="<base64>"
//
// Only digest, x-request-id, psu-id, psu-corporate-id and tpp-redirect-uri
// are covered by the signature. Caller supplied values for the four
// computed headers are always discarded.
//
// # Client Transport
//
// NewTransport creates an http.RoundTripper that signs every outgoing
// request of an existing http.Client:
//
//	client := &http.Client{
//	    Transport: psd2sig.NewTransport(nil, psd2sig.SignConfig{
//	        Material: material,
//	    }),
//	}
//
// # Verifying Requests
//
// VerifyRequest and Middleware check signatures on the receiving side.
// CertificateResolver takes the signer key from the
// TPP-Signature-Certificate header:
//
//	mw, err := psd2sig.Middleware(psd2sig.MiddlewareConfig{
//	    Verify: psd2sig.VerifyConfig{
//	        Resolver: psd2sig.CertificateResolver(roots),
//	    },
//	})
//
// Rejected requests receive a NextGenPSD2 tppMessages body with one of the
// codes SIGNATURE_MISSING, SIGNATURE_INVALID, CERTIFICATE_INVALID or
// FORMAT_ERROR.
package psd2sig
