package psd2sig

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	material, _ := newTestMaterial(t)

	var seenKeyID string
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenKeyID, _ = KeyIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	newMiddleware := func(t *testing.T) func(http.Handler) http.Handler {
		t.Helper()

		mw, err := Middleware(MiddlewareConfig{
			Verify: VerifyConfig{Resolver: CertificateResolver(nil)},
		})
		require.NoError(t, err)

		return mw
	}

	t.Run("nil resolver returns error", func(t *testing.T) {
		_, err := Middleware(MiddlewareConfig{})
		assert.ErrorIs(t, err, ErrNoResolver)
	})

	t.Run("valid signed request passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/consents", strings.NewReader("{}"))
		require.NoError(t, SignRequest(req, SignConfig{Material: material}))

		w := httptest.NewRecorder()
		newMiddleware(t)(okHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, material.Identity().KeyID, seenKeyID)
	})

	t.Run("unsigned request is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)

		w := httptest.NewRecorder()
		newMiddleware(t)(okHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"tppMessages":[{"category":"ERROR","code":"SIGNATURE_MISSING"}]}`, w.Body.String())
	})

	t.Run("malformed signature is a format error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
		req.Header.Set("Signature", "nonsense")

		w := httptest.NewRecorder()
		newMiddleware(t)(okHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeFormatError)
	})

	t.Run("custom error handler", func(t *testing.T) {
		var gotErr error

		mw, err := Middleware(MiddlewareConfig{
			Verify: VerifyConfig{Resolver: CertificateResolver(nil)},
			OnError: func(w http.ResponseWriter, _ *http.Request, err error) {
				gotErr = err
				w.WriteHeader(http.StatusForbidden)
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)

		w := httptest.NewRecorder()
		mw(okHandler).ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.ErrorIs(t, gotErr, ErrSignatureNotFound)
	})
}

func TestKeyIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := KeyIDFromContext(req.Context())
	assert.False(t, ok)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{err: ErrSignatureNotFound, code: CodeSignatureMissing, status: http.StatusUnauthorized},
		{err: fmt.Errorf("%w: keyId does not match", ErrUnknownKey), code: CodeCertificateInvalid, status: http.StatusUnauthorized},
		{err: ErrMalformedHeader, code: CodeFormatError, status: http.StatusBadRequest},
		{err: ErrMissingHeader, code: CodeFormatError, status: http.StatusBadRequest},
		{err: ErrDigestNotFound, code: CodeFormatError, status: http.StatusBadRequest},
		{err: ErrUnsupportedDigest, code: CodeFormatError, status: http.StatusBadRequest},
		{err: ErrDigestMismatch, code: CodeSignatureInvalid, status: http.StatusUnauthorized},
		{err: ErrSignatureInvalid, code: CodeSignatureInvalid, status: http.StatusUnauthorized},
		{err: errors.New("other"), code: CodeSignatureInvalid, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			code, status := ErrorCode(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("status and body follow the error code", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("%w: bad quoting", ErrMalformedHeader))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, `{"tppMessages":[{"category":"ERROR","code":"FORMAT_ERROR"}]}`, w.Body.String())
	})

	t.Run("digest mismatch", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, httptest.NewRequest(http.MethodPost, "/", nil), ErrDigestMismatch)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, `{"tppMessages":[{"category":"ERROR","code":"SIGNATURE_INVALID"}]}`, w.Body.String())
	})
}
