// Package psd2client sends PSD2 / Open Banking requests signed with a TPP
// signing certificate, optionally over mutual TLS.
//
// # Creating a Client
//
//	client, err := psd2client.New(signingCertPEM, signingKeyPEM, psd2client.Config{
//	    BaseURL: "https://api.bank.example/psd2/v1/",
//	    MutualTLS: psd2sig.KeyPair{
//	        Certificate: qwacCertPEM,
//	        Key:         qwacKeyPEM,
//	    },
//	})
//
// Certificates and keys are []byte (PEM or DER) or hex strings. Construction
// fails when a key does not match its certificate or when only one half of
// the mutual-TLS pair is given.
//
// # Sending Requests
//
//	resp, err := client.Send(ctx, "POST", "payments/sepa-credit-transfers",
//	    map[string]any{"PSU-ID": "user-1", "TPP-Redirect-URI": "https://tpp.example/cb"},
//	    payment, psd2client.EncodingJSON)
//
// Non-2xx responses are returned as a Response. Errors are returned for
// invalid input (ErrInvalidMethod, ErrInvalidPath, ErrUnsupportedEncoding)
// and transport failures (ErrTransport).
//
// # File Configuration
//
// LoadConfig reads a YAML file describing the credential files and
// endpoint; FileConfig.Build creates the Client from it.
package psd2client
