/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Telnyx LLC
 */

package channel

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Message is the JSON-RPC 2.0 envelope used for every frame on the channel:
// a request {id, method, params}, a reply {id, result} or {id, error}, or a
// server-initiated event shaped like a request but unsolicited.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a failed reply.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewRequest builds a request message with a fresh globally unique id.
// Ids must never repeat across the channel's lifetime: the transaction map
// tracks exactly one pending transaction per id.
func NewRequest(method string, params interface{}) (*Message, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	return &Message{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  raw,
	}, nil
}

// NewReply builds a success reply correlated to the given request id.
func NewReply(id string, result interface{}) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reply result: %w", err)
	}
	return &Message{
		JSONRPC: "2.0",
		ID:      id,
		Result:  raw,
	}, nil
}

// IsReply reports whether the message is a reply rather than a request
// or server event.
func (m *Message) IsReply() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// UnmarshalParams decodes the params member into v.
func (m *Message) UnmarshalParams(v interface{}) error {
	if m.Params == nil {
		return fmt.Errorf("message %s has no params", m.Method)
	}
	return json.Unmarshal(m.Params, v)
}

// UnmarshalResult decodes the result member into v.
func (m *Message) UnmarshalResult(v interface{}) error {
	if m.Result == nil {
		return fmt.Errorf("reply %s has no result", m.ID)
	}
	return json.Unmarshal(m.Result, v)
}
