package psd2sig

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// MiddlewareConfig configures the server-side signature verification
// middleware.
type MiddlewareConfig struct {
	// Verify configures how signatures are verified.
	Verify VerifyConfig

	// OnError is called when verification fails. When nil, a NextGenPSD2
	// error body is written (see WriteError).
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

type keyIDContextKey struct{}

// KeyIDFromContext returns the keyId of the signature accepted by
// Middleware for the current request.
func KeyIDFromContext(ctx context.Context) (string, bool) {
	keyID, ok := ctx.Value(keyIDContextKey{}).(string)
	return keyID, ok
}

// Middleware returns a handler wrapper that rejects requests without a
// valid PSD2 signature. Handlers behind it can read the signer keyId with
// KeyIDFromContext.
//
// It returns ErrNoResolver if VerifyConfig.Resolver is nil.
func Middleware(cfg MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	if cfg.Verify.Resolver == nil {
		return nil, ErrNoResolver
	}

	onError := cfg.OnError
	if onError == nil {
		onError = WriteError
	}

	verifyCfg := cfg.Verify

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, err := verifyRequest(r, verifyCfg)
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), keyIDContextKey{}, keyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// NextGenPSD2 message codes for signature failures.
const (
	CodeFormatError        = "FORMAT_ERROR"
	CodeSignatureMissing   = "SIGNATURE_MISSING"
	CodeSignatureInvalid   = "SIGNATURE_INVALID"
	CodeCertificateInvalid = "CERTIFICATE_INVALID"
)

type tppMessage struct {
	Category string `json:"category"`
	Code     string `json:"code"`
}

type errorBody struct {
	TPPMessages []tppMessage `json:"tppMessages"`
}

// ErrorCode maps a verification error to its NextGenPSD2 message code and
// HTTP status.
func ErrorCode(err error) (string, int) {
	switch {
	case errors.Is(err, ErrSignatureNotFound):
		return CodeSignatureMissing, http.StatusUnauthorized
	case errors.Is(err, ErrUnknownKey):
		return CodeCertificateInvalid, http.StatusUnauthorized
	case errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrMissingHeader),
		errors.Is(err, ErrDigestNotFound),
		errors.Is(err, ErrUnsupportedDigest):
		return CodeFormatError, http.StatusBadRequest
	default:
		return CodeSignatureInvalid, http.StatusUnauthorized
	}
}

// WriteError writes a NextGenPSD2 tppMessages body for a verification
// error.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	code, status := ErrorCode(err)

	body, mErr := json.Marshal(errorBody{
		TPPMessages: []tppMessage{{Category: "ERROR", Code: code}},
	})
	if mErr != nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
