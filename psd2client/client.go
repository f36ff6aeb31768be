package psd2client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/vitalvas/psd2/psd2sig"
	"golang.org/x/net/http/httpguts"
)

// allowedMethods are the HTTP methods Send accepts.
var allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}

// Client sends signed PSD2 requests. It is safe for concurrent use.
type Client struct {
	material   *psd2sig.SigningMaterial
	transport  *http.Transport
	httpClient *http.Client
	baseURL    *url.URL
	timeout    time.Duration
	logger     *slog.Logger
	requestID  func() string
}

// Response is the result of Send. Every HTTP status is returned as a
// Response; only transport failures produce an error.
type Response struct {
	// RequestID is the X-Request-Id sent with the request.
	RequestID string

	// Status is the HTTP status code.
	Status int

	// Header holds the response headers.
	Header http.Header

	// Body is the full response body.
	Body []byte
}

// New validates the signing certificate and key and, when configured, the
// mutual-TLS pair, then creates a Client. Certificates and keys are raw
// bytes (PEM or DER) or hex strings.
//
// Any credential error is returned as is (psd2sig.ErrCredentialFormat,
// psd2sig.ErrCredentialMismatch, psd2sig.ErrIncompleteCredential) and no
// client is created.
func New(signingCertificate, signingKey any, cfg Config) (*Client, error) {
	material, err := psd2sig.NewSigningMaterial(signingCertificate, signingKey)
	if err != nil {
		return nil, err
	}

	tlsCert, err := psd2sig.LoadTLSCertificate(cfg.MutualTLS)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	switch {
	case timeout < 0:
		return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	case timeout == 0:
		timeout = DefaultTimeout
	}

	var baseURL *url.URL
	if cfg.BaseURL != "" {
		baseURL, err = url.Parse(cfg.BaseURL)
		if err != nil || !baseURL.IsAbs() {
			return nil, fmt.Errorf("%w: base url %q must be absolute", ErrInvalidConfig, cfg.BaseURL)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	requestID := cfg.RequestID
	if requestID == nil {
		requestID = psd2sig.GenerateRequestID
	}

	transport := newTransport(cfg.Transport, tlsCert, cfg)

	return &Client{
		material:   material,
		transport:  transport,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logger,
		requestID:  requestID,
	}, nil
}

// newTransport clones base and applies the client certificate and root
// CAs. base itself is never modified.
func newTransport(base *http.Transport, cert *tls.Certificate, cfg Config) *http.Transport {
	var t *http.Transport
	if base != nil {
		t = base.Clone()
	} else {
		t = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cert == nil && cfg.RootCAs == nil {
		return t
	}

	tlsConfig := &tls.Config{}
	if t.TLSClientConfig != nil {
		tlsConfig = t.TLSClientConfig.Clone()
	}

	if tlsConfig.MinVersion < tls.VersionTLS12 {
		tlsConfig.MinVersion = tls.VersionTLS12
	}

	if cert != nil {
		tlsConfig.Certificates = append(tlsConfig.Certificates, *cert)
	}

	if cfg.RootCAs != nil {
		tlsConfig.RootCAs = cfg.RootCAs
	}

	t.TLSClientConfig = tlsConfig

	return t
}

// Identity returns the signer identity of the client.
func (c *Client) Identity() psd2sig.Identity {
	return c.material.Identity()
}

// HTTPClient returns an http.Client sharing the client's TLS settings and
// timeout whose requests are signed by psd2sig.Transport.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{
		Transport: psd2sig.NewTransport(c.transport, psd2sig.SignConfig{
			Material:  c.material,
			RequestID: c.requestID,
		}),
		Timeout: c.timeout,
	}
}

// Send encodes body, signs the request and sends it.
//
// method is one of GET, POST, PUT or DELETE in any case. path is an
// absolute URL or a reference resolved against Config.BaseURL. headers
// follow the rules of psd2sig.Sanitize; the map is not modified. body may
// be nil, []byte (sent as-is, application/octet-stream unless headers set
// a Content-Type) or a value serialized with enc, which defaults to JSON.
func (c *Client) Send(ctx context.Context, method, path string, headers map[string]any, body any, enc Encoding) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !slices.Contains(allowedMethods, method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	encoded, err := encodeBody(body, enc)
	if err != nil {
		return nil, err
	}

	reqHeaders := maps.Clone(headers)
	if reqHeaders == nil {
		reqHeaders = make(map[string]any)
	}

	var data []byte
	if encoded != nil {
		data = encoded.data
		applyContentType(reqHeaders, encoded)
	}

	signed, err := psd2sig.Sign(reqHeaders, data, psd2sig.SignConfig{
		Material:  c.material,
		RequestID: c.requestID,
	})
	if err != nil {
		return nil, err
	}

	if err := validateHeader(signed.Header); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	req.Header = signed.Header

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("psd2 request failed",
			slog.String("request_id", signed.RequestID),
			slog.String("method", method),
			slog.String("url", target),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrTransport, err)
	}

	c.logger.Debug("psd2 request sent",
		slog.String("request_id", signed.RequestID),
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	return &Response{
		RequestID: signed.RequestID,
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      respBody,
	}, nil
}

// resolve turns path into an absolute URL.
func (c *Client) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	if ref.IsAbs() {
		return ref.String(), nil
	}

	if c.baseURL == nil {
		return "", fmt.Errorf("%w: relative path %q without base url", ErrInvalidPath, path)
	}

	return c.baseURL.ResolveReference(ref).String(), nil
}

// applyContentType sets the Content-Type of an encoded body. Binary bodies
// keep a caller supplied string Content-Type; serialized bodies always
// replace it.
func applyContentType(headers map[string]any, body *encodedBody) {
	for name, value := range headers {
		if !strings.EqualFold(name, "Content-Type") {
			continue
		}

		if _, ok := value.(string); ok && body.binary {
			return
		}

		delete(headers, name)
	}

	headers["Content-Type"] = body.contentType
}

// validateHeader rejects header names and values that net/http would
// refuse to write.
func validateHeader(h http.Header) error {
	for name, values := range h {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, name)
		}

		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return fmt.Errorf("%w: value of %q", ErrInvalidHeader, name)
			}
		}
	}

	return nil
}
