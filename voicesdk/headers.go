/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package voicesdk

import "encoding/json"

// Header is one application-defined name/value pair passed through
// signaling messages. The engine treats headers as opaque.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered sequence of custom headers. Order and name casing
// are preserved through serialization. A nil Headers value serializes as an
// empty array, never as null or an absent field, to keep the wire shape
// stable for consumers.
type Headers []Header

// MarshalJSON implements json.Marshaler, mapping nil to [].
func (h Headers) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Header(h))
}

// HeadersFromPairs builds a Headers sequence from name/value pairs, in the
// order given. Used by callers that assemble headers positionally.
func HeadersFromPairs(pairs ...[2]string) Headers {
	headers := make(Headers, 0, len(pairs))
	for _, p := range pairs {
		headers = append(headers, Header{Name: p[0], Value: p[1]})
	}
	return headers
}
