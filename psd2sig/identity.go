package psd2sig

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"strings"
)

// Identity is the signer identity derived from a signing certificate.
type Identity struct {
	// SerialNumber is the certificate serial as uppercase hex.
	SerialNumber string

	// Issuer is the issuer distinguished name with its attributes in
	// certificate order, separated by commas (C=..,O=..,CN=..).
	Issuer string

	// KeyID is "SN=<SerialNumber>,CA=<Issuer>", the keyId of every
	// Signature header produced with this identity.
	KeyID string
}

// NewIdentity derives the signer identity from a certificate.
func NewIdentity(cert *x509.Certificate) Identity {
	id := Identity{
		SerialNumber: serialHex(cert),
		Issuer:       issuerName(cert),
	}
	id.KeyID = "SN=" + id.SerialNumber + ",CA=" + id.Issuer

	return id
}

// serialHex renders the serial number as uppercase hex over its big-endian
// bytes, always an even number of digits.
func serialHex(cert *x509.Certificate) string {
	if cert.SerialNumber == nil {
		return "00"
	}

	b := cert.SerialNumber.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}

	s := strings.ToUpper(hex.EncodeToString(b))
	if cert.SerialNumber.Sign() < 0 {
		s = "-" + s
	}

	return s
}

// Short names for the attribute types found in TPP certificates.
var attributeNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.4":                    "SN",
	"2.5.4.5":                    "serialNumber",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "street",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.12":                   "title",
	"2.5.4.17":                   "postalCode",
	"2.5.4.42":                   "GN",
	"2.5.4.97":                   "organizationIdentifier",
	"0.9.2342.19200300.100.1.1":  "UID",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "emailAddress",
}

// issuerName renders the issuer in the order the attributes appear in the
// certificate. Multi-valued RDNs are joined with "+".
func issuerName(cert *x509.Certificate) string {
	var rdns pkix.RDNSequence
	if rest, err := asn1.Unmarshal(cert.RawIssuer, &rdns); err != nil || len(rest) > 0 {
		rdns = cert.Issuer.ToRDNSequence()
	}

	parts := make([]string, 0, len(rdns))

	for _, rdn := range rdns {
		values := make([]string, 0, len(rdn))

		for _, atv := range rdn {
			values = append(values, attributeName(atv.Type)+"="+attributeValue(atv.Value))
		}

		parts = append(parts, strings.Join(values, "+"))
	}

	return strings.Join(parts, ",")
}

func attributeName(oid asn1.ObjectIdentifier) string {
	if name, ok := attributeNames[oid.String()]; ok {
		return name
	}

	return oid.String()
}

// attributeValue escapes a value per RFC 4514. Non-string values are
// emitted as "#" followed by the hex of their DER encoding.
func attributeValue(v any) string {
	s, ok := v.(string)
	if !ok {
		der, err := asn1.Marshal(v)
		if err != nil {
			return ""
		}

		return "#" + hex.EncodeToString(der)
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch {
		case ch == ',' || ch == '+' || ch == '"' || ch == '\\' || ch == '<' || ch == '>' || ch == ';':
			b.WriteByte('\\')
		case i == 0 && (ch == ' ' || ch == '#'):
			b.WriteByte('\\')
		case i == len(s)-1 && ch == ' ':
			b.WriteByte('\\')
		}

		b.WriteByte(ch)
	}

	return b.String()
}
