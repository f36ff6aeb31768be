package psd2client

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitalvas/psd2/psd2sig"
)

var testKeys = sync.OnceValue(func() []*rsa.PrivateKey {
	keys := make([]*rsa.PrivateKey, 2)
	for i := range keys {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}

		keys[i] = key
	}

	return keys
})

type testPair struct {
	cert    *x509.Certificate
	certPEM []byte
	keyPEM  []byte
	certHex string
	keyHex  string
}

// newTestPair creates a self-signed certificate usable both as a signing
// certificate and as a TLS client certificate.
func newTestPair(t *testing.T, keyIndex int, cn string) testPair {
	t.Helper()

	key := testKeys()[keyIndex]

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(int64(0x1000 + keyIndex)),
		Subject:               pkix.Name{Country: []string{"LT"}, Organization: []string{"Test TPP"}, CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	keyDER := x509.MarshalPKCS1PrivateKey(key)

	return testPair{
		cert:    cert,
		certPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		keyPEM:  pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyDER}),
		certHex: hex.EncodeToString(der),
		keyHex:  hex.EncodeToString(keyDER),
	}
}

// capturedRequest is what the test server saw.
type capturedRequest struct {
	Method    string
	Path      string
	Header    http.Header
	Body      []byte
	VerifyErr error
}

// newVerifyingServer starts a server that verifies every request signature
// and records the request on the returned channel.
func newVerifyingServer(t *testing.T, status int) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()

	captured := make(chan capturedRequest, 16)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifyErr := psd2sig.VerifyRequest(r, psd2sig.VerifyConfig{
			Resolver: psd2sig.CertificateResolver(nil),
		})

		body, _ := io.ReadAll(r.Body)

		captured <- capturedRequest{
			Method:    r.Method,
			Path:      r.URL.RequestURI(),
			Header:    r.Header.Clone(),
			Body:      body,
			VerifyErr: verifyErr,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"transactionStatus":"RCVD"}`))
	}))
	t.Cleanup(server.Close)

	return server, captured
}
