package psd2client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Encoding selects how a structured body is serialized.
type Encoding string

const (
	// EncodingJSON serializes the body as JSON. It is the default.
	EncodingJSON Encoding = "json"

	// EncodingURLEncoded serializes the body as form-encoded text.
	EncodingURLEncoded Encoding = "urlencoded"
)

// Content types set by body encoding.
const (
	ContentTypeOctetStream = "application/octet-stream"
	ContentTypeJSON        = "application/json"
	ContentTypeURLEncoded  = "x-www-form-urlencoded"
)

// validate rejects unknown encodings. The empty encoding means JSON.
func (e Encoding) validate() error {
	switch e {
	case "", EncodingJSON, EncodingURLEncoded:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEncoding, string(e))
	}
}

// encodedBody is a serialized request body.
type encodedBody struct {
	data        []byte
	contentType string

	// binary bodies keep a caller supplied Content-Type.
	binary bool
}

// encodeBody serializes body according to enc. A nil body produces no
// body at all. []byte bodies are used as-is regardless of enc.
func encodeBody(body any, enc Encoding) (*encodedBody, error) {
	if err := enc.validate(); err != nil {
		return nil, err
	}

	switch b := body.(type) {
	case nil:
		return nil, nil

	case []byte:
		if b == nil {
			return nil, nil
		}

		return &encodedBody{data: b, contentType: ContentTypeOctetStream, binary: true}, nil
	}

	switch enc {
	case EncodingURLEncoded:
		values, err := formValues(body)
		if err != nil {
			return nil, err
		}

		return &encodedBody{data: []byte(values.Encode()), contentType: ContentTypeURLEncoded}, nil

	default:
		data, err := marshalJSON(body)
		if err != nil {
			return nil, err
		}

		return &encodedBody{data: data, contentType: ContentTypeJSON}, nil
	}
}

// marshalJSON encodes v without HTML escaping and without a trailing
// newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// formValues converts body to form values. Nested objects are flattened
// with bracket notation (a[b]=c), array items are indexed (a[0]=1&a[1]=2)
// and null values are sent as the literal "null". Structs are converted
// through their JSON form.
func formValues(body any) (url.Values, error) {
	switch b := body.(type) {
	case url.Values:
		return b, nil

	case map[string]string:
		values := make(url.Values, len(b))
		for k, v := range b {
			values.Set(k, v)
		}

		return values, nil

	case map[string][]string:
		return url.Values(b), nil

	case string:
		values, err := url.ParseQuery(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
		}

		return values, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: urlencoded body must be an object, got %T", ErrEncoding, body)
	}

	values := make(url.Values)
	flattenForm(values, "", obj)

	return values, nil
}

func flattenForm(values url.Values, prefix string, v any) {
	switch val := v.(type) {
	case nil:
		values.Add(prefix, "null")

	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		slices.Sort(keys)

		for _, k := range keys {
			key := k
			if prefix != "" {
				key = prefix + "[" + k + "]"
			}

			flattenForm(values, key, val[k])
		}

	case []any:
		for i, item := range val {
			flattenForm(values, prefix+"["+strconv.Itoa(i)+"]", item)
		}

	case string:
		values.Add(prefix, val)

	case bool:
		values.Add(prefix, strconv.FormatBool(val))

	case json.Number:
		values.Add(prefix, val.String())

	default:
		values.Add(prefix, strings.TrimSpace(fmt.Sprint(val)))
	}
}
