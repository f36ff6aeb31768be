package psd2sig

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DigestAlgorithm identifies the hash algorithm of the Digest header.
type DigestAlgorithm string

// DigestSHA256 is the only digest algorithm PSD2 signing uses.
const DigestSHA256 DigestAlgorithm = "SHA-256"

// ComputeDigest returns the Digest header value for body:
// "SHA-256=<base64 of sha256(body)>". A nil body digests as empty.
func ComputeDigest(body []byte) string {
	sum := sha256.Sum256(body)

	return string(DigestSHA256) + "=" + base64.StdEncoding.EncodeToString(sum[:])
}

// VerifyDigest checks the Digest header of r against its body. The body
// is restored so downstream handlers can read it again.
func VerifyDigest(r *http.Request) error {
	header, ok := lookupHeader(r.Header, HeaderDigest)
	if !ok || header == "" {
		return ErrDigestNotFound
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	return verifyDigestValue(header, body)
}

// verifyDigestValue checks a Digest header value, which may list several
// comma-separated "alg=value" entries, against body. The first supported
// entry decides.
func verifyDigestValue(header string, body []byte) error {
	for entry := range strings.SplitSeq(header, ",") {
		alg, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(alg), string(DigestSHA256)) {
			continue
		}

		actual, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: invalid base64 in digest", ErrMalformedHeader)
		}

		expected := sha256.Sum256(body)
		if subtle.ConstantTimeCompare(expected[:], actual) != 1 {
			return ErrDigestMismatch
		}

		return nil
	}

	return ErrUnsupportedDigest
}

// readAndRestoreBody reads the entire request body and replaces it with a
// new reader so the body can be consumed again.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
