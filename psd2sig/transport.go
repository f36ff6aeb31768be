package psd2sig

import (
	"bytes"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that adds the PSD2 signature headers to
// every outgoing request.
type Transport struct {
	base http.RoundTripper
	sign SignConfig
}

// NewTransport wraps base with request signing. When base is nil, a clone
// of http.DefaultTransport is used.
//
// The signing pair and the mutual-TLS pair are independent; the latter is
// configured on base:
//
//	cert, err := psd2sig.LoadTLSCertificate(qwac)
//	base := &http.Transport{
//	    TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{*cert}},
//	}
//	client := &http.Client{Transport: psd2sig.NewTransport(base, psd2sig.SignConfig{Material: qseal})}
func NewTransport(base *http.Transport, cfg SignConfig) *Transport {
	t := &Transport{sign: cfg}

	if base != nil {
		t.base = base
	} else {
		t.base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return t
}

// RoundTrip buffers the body, signs a copy of req and sends the copy.
// Caller headers on req are left untouched.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, err := drainBody(req)
	if err != nil {
		return nil, err
	}

	signed, err := Sign(FromHTTPHeader(req.Header), body, t.sign)
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Header = signed.Header

	if body != nil {
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.ContentLength = int64(len(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	return t.base.RoundTrip(out)
}

// drainBody reads and closes the request body. A request without a body
// yields nil.
func drainBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	return io.ReadAll(req.Body)
}
