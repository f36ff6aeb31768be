package psd2sig

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }
func (errReader) Close() error             { return nil }

func TestComputeDigest(t *testing.T) {
	t.Run("empty and nil body share a digest", func(t *testing.T) {
		want := "SHA-256=47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU="
		assert.Equal(t, want, ComputeDigest(nil))
		assert.Equal(t, want, ComputeDigest([]byte{}))
	})

	t.Run("body digest", func(t *testing.T) {
		sum := sha256.Sum256([]byte("{}"))
		want := "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])

		assert.Equal(t, want, ComputeDigest([]byte("{}")))
	})
}

func TestVerifyDigest(t *testing.T) {
	t.Run("matching digest", func(t *testing.T) {
		body := `{"amount":"10.00"}`
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader(body))
		req.Header.Set("Digest", ComputeDigest([]byte(body)))

		require.NoError(t, VerifyDigest(req))

		// Body should still be readable.
		restored, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(restored))
	})

	t.Run("lowercase algorithm name", func(t *testing.T) {
		sum := sha256.Sum256([]byte("x"))
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader("x"))
		req.Header.Set("Digest", "sha-256="+base64.StdEncoding.EncodeToString(sum[:]))

		assert.NoError(t, VerifyDigest(req))
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("GET", "https://example.com/", nil)
		req.Header.Set("Digest", ComputeDigest(nil))

		assert.NoError(t, VerifyDigest(req))
	})

	t.Run("mismatch", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader("tampered"))
		req.Header.Set("Digest", ComputeDigest([]byte("original")))

		assert.ErrorIs(t, VerifyDigest(req), ErrDigestMismatch)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader("x"))

		assert.ErrorIs(t, VerifyDigest(req), ErrDigestNotFound)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader("x"))
		req.Header.Set("Digest", "SHA-512=abc")

		assert.ErrorIs(t, VerifyDigest(req), ErrUnsupportedDigest)
	})

	t.Run("invalid base64", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/", strings.NewReader("x"))
		req.Header.Set("Digest", "SHA-256=!!!")

		assert.ErrorIs(t, VerifyDigest(req), ErrMalformedHeader)
	})

	t.Run("broken body reader", func(t *testing.T) {
		req := httptest.NewRequest("POST", "https://example.com/", errReader{})
		req.Header.Set("Digest", ComputeDigest(nil))

		assert.Error(t, VerifyDigest(req))
	})
}
