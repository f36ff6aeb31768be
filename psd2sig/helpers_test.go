package psd2sig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// RSA key generation is slow, so a small set of keys is shared by all
// tests in the package.
var testRSAKeys = sync.OnceValue(func() []*rsa.PrivateKey {
	keys := make([]*rsa.PrivateKey, 3)
	for i := range keys {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}

		keys[i] = key
	}

	return keys
})

var testSubject = pkix.Name{
	Country:      []string{"DE"},
	Organization: []string{"Test Bank"},
	CommonName:   "Test CA",
}

type testCert struct {
	cert    *x509.Certificate
	certDER []byte
	certPEM []byte
	key     crypto.Signer
	keyDER  []byte
	keyPEM  []byte
}

// newTestCert creates a self-signed certificate for key.
func newTestCert(t *testing.T, key crypto.Signer, subject pkix.Name, serial int64) testCert {
	t.Helper()

	return newTestCertSignedBy(t, key, subject, serial, nil)
}

// newTestCertSignedBy creates a certificate for key issued by parent, or a
// self-signed CA certificate when parent is nil.
func newTestCertSignedBy(t *testing.T, key crypto.Signer, subject pkix.Name, serial int64, parent *testCert) testCert {
	t.Helper()

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               subject,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  parent == nil,
	}

	issuer := tmpl
	var issuerKey crypto.Signer = key
	if parent != nil {
		issuer = parent.cert
		issuerKey = parent.key
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer, key.Public(), issuerKey)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return testCert{
		cert:    cert,
		certDER: der,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		key:     key,
		keyDER:  keyDER,
		keyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	}
}

func newTestECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	return key
}

// newTestMaterial creates signing material from the first shared RSA key.
func newTestMaterial(t *testing.T) (*SigningMaterial, testCert) {
	t.Helper()

	tc := newTestCert(t, testRSAKeys()[0], testSubject, 0x0A1B)

	material, err := NewSigningMaterial(tc.certPEM, tc.keyPEM)
	require.NoError(t, err)

	return material, tc
}
