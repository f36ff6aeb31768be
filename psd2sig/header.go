package psd2sig

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// Header names used by PSD2 request signing.
const (
	HeaderDigest               = "Digest"
	HeaderRequestID            = "X-Request-Id"
	HeaderSignatureCertificate = "TPP-Signature-Certificate"
	HeaderSignature            = "Signature"
	HeaderPSUID                = "PSU-ID"
	HeaderPSUCorporateID       = "PSU-Corporate-ID"
	HeaderTPPRedirectURI       = "TPP-Redirect-URI"
)

// reservedHeaders are always computed by the signer and never taken from
// the caller.
var reservedHeaders = []string{"digest", "x-request-id", "tpp-signature-certificate", "signature"}

// signableHeaders are the only headers that take part in the signature.
var signableHeaders = []string{"digest", "x-request-id", "psu-id", "psu-corporate-id", "tpp-redirect-uri"}

// IsReserved reports whether name is one of the headers the signer
// computes. The comparison is case-insensitive.
func IsReserved(name string) bool {
	return slices.Contains(reservedHeaders, strings.ToLower(name))
}

// IsSignable reports whether a header named name is covered by the
// signature. The comparison is case-insensitive.
func IsSignable(name string) bool {
	return slices.Contains(signableHeaders, strings.ToLower(name))
}

// Sanitize returns a new header set holding the caller headers that may be
// sent. Entries are dropped when the name is reserved (see IsReserved) or
// the value is not a string, boolean or number. Names keep the caller's
// casing. The input is never modified.
func Sanitize(headers map[string]any) http.Header {
	out := make(http.Header, len(headers)+4)

	for name, value := range headers {
		if name == "" || IsReserved(name) {
			continue
		}

		v, ok := primitiveString(value)
		if !ok {
			continue
		}

		out[name] = []string{v}
	}

	return out
}

// primitiveString renders string, boolean and numeric values. Everything
// else is reported as not primitive.
func primitiveString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.FormatInt(int64(val), 10), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

// FromHTTPHeader converts an http.Header to the map form accepted by
// Sanitize. Multi-value headers are joined with ", ".
func FromHTTPHeader(h http.Header) map[string]any {
	out := make(map[string]any, len(h))

	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}

	return out
}

// lookupHeader returns the first value of name, matching case-insensitively
// so that headers stored with non-canonical keys are found.
func lookupHeader(h http.Header, name string) (string, bool) {
	if values, ok := h[http.CanonicalHeaderKey(name)]; ok && len(values) > 0 {
		return values[0], true
	}

	for key, values := range h {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0], true
		}
	}

	return "", false
}
