package psd2sig

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// signatureParams holds the parameters of a Signature header.
type signatureParams struct {
	keyID     string
	alg       Algorithm
	headers   []string
	signature []byte
}

// buildSigningString selects the signable headers of h and renders the
// canonical signing string: one "<lowercased-name>: <value>" line per
// header value, sorted lexicographically and joined with "\n". It also
// returns the lowercased names of the signed headers, sorted.
func buildSigningString(h http.Header) (string, []string) {
	var lines, names []string

	for name, values := range h {
		if !IsSignable(name) {
			continue
		}

		lname := strings.ToLower(name)
		for _, v := range values {
			lines = append(lines, lname+": "+v)
			names = append(names, lname)
		}
	}

	slices.Sort(lines)
	slices.Sort(names)

	return strings.Join(lines, "\n"), names
}

// rebuildSigningString renders the canonical signing string for the header
// names listed in a received Signature header. Every listed header must be
// present in h.
func rebuildSigningString(h http.Header, names []string) (string, error) {
	var lines []string

	for _, lname := range slices.Compact(slices.Sorted(slices.Values(names))) {
		found := false

		for name, values := range h {
			if !strings.EqualFold(name, lname) {
				continue
			}

			for _, v := range values {
				lines = append(lines, lname+": "+v)
				found = true
			}
		}

		if !found {
			return "", fmt.Errorf("%w: %s", ErrMissingHeader, lname)
		}
	}

	slices.Sort(lines)

	return strings.Join(lines, "\n"), nil
}

// serializeSignature produces the Signature header value:
//
//	keyId="<id>",algorithm="sha-256",headers="<names>",signature="<base64>"
func serializeSignature(params signatureParams) string {
	var b strings.Builder

	b.WriteString(`keyId="`)
	b.WriteString(params.keyID)
	b.WriteString(`",algorithm="`)
	b.WriteString(params.alg.String())
	b.WriteString(`",headers="`)
	b.WriteString(strings.Join(params.headers, " "))
	b.WriteString(`",signature="`)
	b.WriteString(base64.StdEncoding.EncodeToString(params.signature))
	b.WriteByte('"')

	return b.String()
}

// parseSignature parses a Signature header value as produced by
// serializeSignature. Parameter order is not significant. Quoted values
// are taken verbatim, since keyId may carry RFC 4514 escapes.
func parseSignature(raw string) (signatureParams, error) {
	var params signatureParams

	var haveHeaders, haveSignature bool

	for _, part := range splitQuoteAware(raw, ',') {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return params, fmt.Errorf("%w: parameter without value", ErrMalformedHeader)
		}

		value = strings.TrimSpace(value)
		if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
			return params, fmt.Errorf("%w: parameter %q is not quoted", ErrMalformedHeader, key)
		}

		value = value[1 : len(value)-1]

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "keyid":
			params.keyID = value

		case "algorithm":
			params.alg = Algorithm(strings.ToLower(value))

		case "headers":
			params.headers = strings.Fields(strings.ToLower(value))
			haveHeaders = true

		case "signature":
			sig, err := base64.StdEncoding.DecodeString(value)
			if err != nil {
				return params, fmt.Errorf("%w: invalid base64 in signature", ErrMalformedHeader)
			}

			params.signature = sig
			haveSignature = true
		}
	}

	switch {
	case params.keyID == "":
		return params, fmt.Errorf("%w: missing keyId parameter", ErrMalformedHeader)
	case params.alg == "":
		return params, fmt.Errorf("%w: missing algorithm parameter", ErrMalformedHeader)
	case !haveHeaders || len(params.headers) == 0:
		return params, fmt.Errorf("%w: missing headers parameter", ErrMalformedHeader)
	case !haveSignature:
		return params, fmt.Errorf("%w: missing signature parameter", ErrMalformedHeader)
	}

	return params, nil
}

// splitQuoteAware splits s on delim while respecting "..." quoted regions.
// Backslash-escaped quotes (\") inside quoted strings are handled. Each
// resulting part is trimmed of whitespace and empty parts are skipped.
func splitQuoteAware(s string, delim byte) []string {
	var result []string
	var part strings.Builder
	inQuote := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if inQuote {
			if ch == '\\' && i+1 < len(s) {
				part.WriteByte(ch)
				i++
				part.WriteByte(s[i])
				continue
			}

			if ch == '"' {
				inQuote = false
			}

			part.WriteByte(ch)
			continue
		}

		if ch == '"' {
			inQuote = true
			part.WriteByte(ch)
			continue
		}

		if ch == delim {
			if p := strings.TrimSpace(part.String()); p != "" {
				result = append(result, p)
			}

			part.Reset()
			continue
		}

		part.WriteByte(ch)
	}

	if p := strings.TrimSpace(part.String()); p != "" {
		result = append(result, p)
	}

	return result
}
