package psd2client

import (
	"encoding/json"
	"fmt"
)

// DecodeJSON unmarshals the response body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("psd2client: decoding response %s: %w", r.RequestID, err)
	}

	return nil
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
