package psd2sig

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// LoadPKCS12 decodes a PKCS#12 bundle holding a certificate, its private
// key and optionally the issuing CA chain. Both the legacy RC2/3DES and the
// PBES2/AES encodings are accepted.
//
// The returned KeyPair carries the leaf followed by the chain as PEM, and
// the key as PKCS#8 DER. It can be passed to NewSigningMaterial or
// LoadTLSCertificate, which check that the two halves match.
func LoadPKCS12(data []byte, password string) (KeyPair, error) {
	if len(data) == 0 {
		return KeyPair{}, fmt.Errorf("%w: empty pkcs12 bundle", ErrCredentialFormat)
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: pkcs12: %w", ErrCredentialFormat, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: pkcs12: %w", ErrCredentialFormat, err)
	}

	var certs []byte
	for _, cert := range append([]*x509.Certificate{leaf}, chain...) {
		certs = append(certs, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}

	return KeyPair{Certificate: certs, Key: keyDER}, nil
}
