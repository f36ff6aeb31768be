package psd2sig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
)

// KeyPair holds a certificate and its private key. Each half is either raw
// bytes ([]byte, PEM or DER) or a hex-encoded string of those bytes.
type KeyPair struct {
	Certificate any
	Key         any
}

// IsZero reports whether neither half of the pair was supplied.
func (p KeyPair) IsZero() bool {
	return isAbsent(p.Certificate) && isAbsent(p.Key)
}

// SigningMaterial is the validated signing state of a TPP: the signing
// certificate, its matching RSA key and the identity derived from it.
// It is immutable after construction and safe for concurrent use.
type SigningMaterial struct {
	certificate *x509.Certificate
	encoded     string
	identity    Identity
	signer      Signer
}

// NewSigningMaterial validates a signing certificate and RSA private key and
// derives the signer identity. The key must belong to the certificate.
//
// It returns ErrCredentialFormat when either value cannot be decoded or
// parsed, and ErrCredentialMismatch when the key does not match the
// certificate.
func NewSigningMaterial(certificate, key any) (*SigningMaterial, error) {
	cert, priv, err := loadPair(certificate, key)
	if err != nil {
		return nil, err
	}

	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: signing key must be RSA, got %T", ErrCredentialFormat, priv)
	}

	identity := NewIdentity(cert)

	signer, err := NewRSASigner(identity.KeyID, rsaKey)
	if err != nil {
		return nil, err
	}

	return &SigningMaterial{
		certificate: cert,
		encoded:     base64.StdEncoding.EncodeToString(cert.Raw),
		identity:    identity,
		signer:      signer,
	}, nil
}

// Identity returns the signer identity derived from the certificate.
func (m *SigningMaterial) Identity() Identity { return m.identity }

// Certificate returns the parsed signing certificate.
func (m *SigningMaterial) Certificate() *x509.Certificate { return m.certificate }

// CertificateHeader returns the base64 DER of the signing certificate as
// sent in the TPP-Signature-Certificate header.
func (m *SigningMaterial) CertificateHeader() string { return m.encoded }

// Signer returns the RSA signer bound to the identity's keyId.
func (m *SigningMaterial) Signer() Signer { return m.signer }

// LoadTLSCertificate validates a mutual-TLS certificate/key pair and returns
// it as a tls.Certificate. A PEM certificate input may carry the issuing
// chain after the leaf.
//
// A zero pair yields (nil, nil): mutual TLS is disabled. Supplying only one
// half returns ErrIncompleteCredential.
func LoadTLSCertificate(pair KeyPair) (*tls.Certificate, error) {
	switch {
	case pair.IsZero():
		return nil, nil
	case isAbsent(pair.Certificate):
		return nil, fmt.Errorf("%w: tls key supplied without certificate", ErrIncompleteCredential)
	case isAbsent(pair.Key):
		return nil, fmt.Errorf("%w: tls certificate supplied without key", ErrIncompleteCredential)
	}

	certBytes, err := decodeMaterial(pair.Certificate)
	if err != nil {
		return nil, fmt.Errorf("tls certificate: %w", err)
	}

	chain, err := parseCertificates(certBytes)
	if err != nil {
		return nil, fmt.Errorf("tls certificate: %w", err)
	}

	keyBytes, err := decodeMaterial(pair.Key)
	if err != nil {
		return nil, fmt.Errorf("tls key: %w", err)
	}

	priv, err := parsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("tls key: %w", err)
	}

	if err := checkKeyMatch(chain[0], priv); err != nil {
		return nil, fmt.Errorf("tls key: %w", err)
	}

	out := &tls.Certificate{
		PrivateKey: priv,
		Leaf:       chain[0],
	}

	for _, c := range chain {
		out.Certificate = append(out.Certificate, c.Raw)
	}

	return out, nil
}

// loadPair decodes, parses and matches a certificate and private key.
func loadPair(certificate, key any) (*x509.Certificate, crypto.PrivateKey, error) {
	certBytes, err := decodeMaterial(certificate)
	if err != nil {
		return nil, nil, fmt.Errorf("signing certificate: %w", err)
	}

	chain, err := parseCertificates(certBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("signing certificate: %w", err)
	}

	keyBytes, err := decodeMaterial(key)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key: %w", err)
	}

	priv, err := parsePrivateKey(keyBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key: %w", err)
	}

	if err := checkKeyMatch(chain[0], priv); err != nil {
		return nil, nil, fmt.Errorf("signing key: %w", err)
	}

	return chain[0], priv, nil
}

// decodeMaterial applies the input policy for credentials: raw bytes are
// used unmodified, strings are decoded as hex, anything else is rejected.
func decodeMaterial(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		if len(val) == 0 {
			return nil, fmt.Errorf("%w: empty input", ErrCredentialFormat)
		}

		return val, nil

	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return nil, fmt.Errorf("%w: empty input", ErrCredentialFormat)
		}

		b, err := hex.DecodeString(val)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex: %w", ErrCredentialFormat, err)
		}

		return b, nil

	default:
		return nil, fmt.Errorf("%w: expected []byte or hex string, got %T", ErrCredentialFormat, v)
	}
}

func isAbsent(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []byte:
		return len(val) == 0
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

// parseCertificates parses a DER certificate or one or more PEM
// CERTIFICATE blocks. The leaf is always first.
func parseCertificates(b []byte) ([]*x509.Certificate, error) {
	block, rest := pem.Decode(b)
	if block == nil {
		cert, err := x509.ParseCertificate(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCredentialFormat, err)
		}

		return []*x509.Certificate{cert}, nil
	}

	var chain []*x509.Certificate

	for block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrCredentialFormat, block.Type)
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCredentialFormat, err)
		}

		chain = append(chain, cert)
		block, rest = pem.Decode(rest)
	}

	return chain, nil
}

// parsePrivateKey parses a PEM or DER private key in PKCS#1, PKCS#8 or SEC1
// form.
func parsePrivateKey(b []byte) (crypto.PrivateKey, error) {
	if block, _ := pem.Decode(b); block != nil {
		if strings.Contains(block.Type, "ENCRYPTED") {
			return nil, fmt.Errorf("%w: encrypted private keys are not supported", ErrCredentialFormat)
		}

		b = block.Bytes
	}

	if key, err := x509.ParsePKCS1PrivateKey(b); err == nil {
		return key, nil
	}

	if key, err := x509.ParsePKCS8PrivateKey(b); err == nil {
		return key, nil
	}

	if key, err := x509.ParseECPrivateKey(b); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: unrecognized private key encoding", ErrCredentialFormat)
}

// checkKeyMatch verifies that priv is the private half of the
// certificate's public key.
func checkKeyMatch(cert *x509.Certificate, priv crypto.PrivateKey) error {
	var pub crypto.PublicKey

	switch key := priv.(type) {
	case *rsa.PrivateKey:
		pub = &key.PublicKey
	case *ecdsa.PrivateKey:
		pub = &key.PublicKey
	case ed25519.PrivateKey:
		pub = key.Public()
	default:
		return fmt.Errorf("%w: unsupported private key type %T", ErrCredentialFormat, priv)
	}

	eq, ok := pub.(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !eq.Equal(cert.PublicKey) {
		return ErrCredentialMismatch
	}

	return nil
}
