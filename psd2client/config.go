package psd2client

import (
	"bytes"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vitalvas/psd2/psd2sig"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds every request when Config.Timeout is zero.
const DefaultTimeout = 16 * time.Second

// Config configures a Client.
type Config struct {
	// MutualTLS is an optional certificate/key pair presented during the
	// TLS handshake. It is independent of the signing pair and never takes
	// part in request signatures. Both halves or neither must be set.
	MutualTLS psd2sig.KeyPair

	// Timeout bounds each request including reading the response body.
	// Defaults to DefaultTimeout. Per-call deadlines are set through the
	// context passed to Send.
	Timeout time.Duration

	// BaseURL, when set, is used to resolve relative request paths.
	BaseURL string

	// RootCAs overrides the system roots used to verify the server.
	RootCAs *x509.CertPool

	// Transport is the base transport for proxy, pooling and TLS settings.
	// It is cloned, never modified. When nil, a clone of
	// http.DefaultTransport is used.
	Transport *http.Transport

	// Logger receives one debug record per request. When nil, nothing is
	// logged.
	Logger *slog.Logger

	// RequestID overrides the X-Request-Id generator.
	RequestID func() string
}

// SigningSection points at the signing credentials: either a certificate
// and key file pair or a PKCS#12 bundle.
type SigningSection struct {
	CertificateFile string `yaml:"certificate_file"`
	KeyFile         string `yaml:"key_file"`
	PKCS12File      string `yaml:"pkcs12_file"`
	Password        string `yaml:"password"`
}

// TLSSection points at the optional mutual-TLS credentials and an optional
// CA bundle for server verification.
type TLSSection struct {
	CertificateFile string `yaml:"certificate_file"`
	KeyFile         string `yaml:"key_file"`
	PKCS12File      string `yaml:"pkcs12_file"`
	Password        string `yaml:"password"`
	CAFile          string `yaml:"ca_file"`
}

// FileConfig is the YAML configuration of a client process.
//
//	version: 1
//	base_url: https://api.bank.example/psd2/v1/
//	timeout: 16s
//	signing:
//	  certificate_file: /etc/psd2/qseal.pem
//	  key_file: /etc/psd2/qseal.key
//	tls:
//	  certificate_file: /etc/psd2/qwac.pem
//	  key_file: /etc/psd2/qwac.key
//
// Credential files may hold PEM, DER or hex text. A section may instead
// name a pkcs12_file with its password.
type FileConfig struct {
	Version int            `yaml:"version,omitempty"`
	BaseURL string         `yaml:"base_url"`
	Timeout string         `yaml:"timeout"`
	Signing SigningSection `yaml:"signing"`
	TLS     TLSSection     `yaml:"tls"`
}

// LoadConfig reads and parses a YAML client configuration file.
func LoadConfig(path string) (FileConfig, error) {
	var cfg FileConfig

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks that the required fields are set and well formed.
func (fc FileConfig) Validate() error {
	if err := validateSection("signing", fc.Signing.CertificateFile, fc.Signing.KeyFile, fc.Signing.PKCS12File); err != nil {
		return err
	}

	if fc.Signing.CertificateFile == "" && fc.Signing.PKCS12File == "" {
		return fmt.Errorf("%w: signing.certificate_file or signing.pkcs12_file must be set", ErrInvalidConfig)
	}

	if err := validateSection("tls", fc.TLS.CertificateFile, fc.TLS.KeyFile, fc.TLS.PKCS12File); err != nil {
		return err
	}

	if _, err := parseTimeout(fc.Timeout); err != nil {
		return err
	}

	return nil
}

// Build reads the referenced credential files and creates a Client.
func (fc FileConfig) Build(logger *slog.Logger) (*Client, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	timeout, _ := parseTimeout(fc.Timeout)

	signing, err := loadSection(fc.Signing.CertificateFile, fc.Signing.KeyFile, fc.Signing.PKCS12File, fc.Signing.Password)
	if err != nil {
		return nil, err
	}

	mutualTLS, err := loadSection(fc.TLS.CertificateFile, fc.TLS.KeyFile, fc.TLS.PKCS12File, fc.TLS.Password)
	if err != nil {
		return nil, err
	}

	cfg := Config{
		MutualTLS: mutualTLS,
		Timeout:   timeout,
		BaseURL:   fc.BaseURL,
		Logger:    logger,
	}

	if fc.TLS.CAFile != "" {
		pem, err := os.ReadFile(filepath.Clean(fc.TLS.CAFile))
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, fc.TLS.CAFile)
		}

		cfg.RootCAs = pool
	}

	return New(signing.Certificate, signing.Key, cfg)
}

func validateSection(name, certFile, keyFile, pkcs12File string) error {
	if pkcs12File != "" && (certFile != "" || keyFile != "") {
		return fmt.Errorf("%w: %s.pkcs12_file excludes %s.certificate_file and %s.key_file", ErrInvalidConfig, name, name, name)
	}

	if (certFile == "") != (keyFile == "") {
		return fmt.Errorf("%w: %s.certificate_file and %s.key_file must be set together", ErrInvalidConfig, name, name)
	}

	return nil
}

// loadSection reads the credentials of one config section. An empty
// section yields a zero KeyPair.
func loadSection(certFile, keyFile, pkcs12File, password string) (psd2sig.KeyPair, error) {
	if pkcs12File != "" {
		data, err := os.ReadFile(filepath.Clean(pkcs12File))
		if err != nil {
			return psd2sig.KeyPair{}, fmt.Errorf("failed to read credential file: %w", err)
		}

		return psd2sig.LoadPKCS12(data, password)
	}

	if certFile == "" {
		return psd2sig.KeyPair{}, nil
	}

	cert, err := readCredentialFile(certFile)
	if err != nil {
		return psd2sig.KeyPair{}, err
	}

	key, err := readCredentialFile(keyFile)
	if err != nil {
		return psd2sig.KeyPair{}, err
	}

	return psd2sig.KeyPair{Certificate: cert, Key: key}, nil
}

// parseTimeout accepts a Go duration ("16s") or a bare number of
// milliseconds ("16000"). Empty means zero.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
		}

		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid timeout %q", ErrInvalidConfig, s)
	}

	if d < 0 {
		return 0, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	return d, nil
}

// readCredentialFile returns file content as a hex string when the file
// holds hex text, and as raw bytes otherwise.
func readCredentialFile(path string) (any, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && len(trimmed)%2 == 0 {
		if _, err := hex.DecodeString(string(trimmed)); err == nil {
			return string(trimmed), nil
		}
	}

	return data, nil
}
