package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nerrad567/fedimint-http/internal/handler"
)

// Version is the only accepted "jsonrpc" value.
const Version = "2.0"

// CodeInvalidRequest answers frames that are not valid requests.
const CodeInvalidRequest = -32600

// KindInvalidRequest is the error kind sent with CodeInvalidRequest.
const KindInvalidRequest = "invalid_request"

// defaultID is used when no id can be recovered from a frame.
var defaultID = json.RawMessage("0")

// Request is an inbound frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Response is an outbound frame. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// ErrorObject describes a failed request.
type ErrorObject struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ParseRequest decodes a frame. Members other than jsonrpc, method, params
// and id are ignored. Any failure wraps ErrInvalidRequest; the returned id is
// the one recovered from data, or 0.
func ParseRequest(data []byte) (Request, json.RawMessage, error) {
	id := recoverID(data)

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, id, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	switch {
	case req.JSONRPC != Version:
		return Request{}, id, fmt.Errorf("%w: jsonrpc must be %q", ErrInvalidRequest, Version)
	case req.Method == "":
		return Request{}, id, fmt.Errorf("%w: method is required", ErrInvalidRequest)
	case !validID(req.ID):
		return Request{}, id, fmt.Errorf("%w: id must be an unsigned integer", ErrInvalidRequest)
	}
	return req, bytes.TrimSpace(req.ID), nil
}

// recoverID extracts a usable id from a frame that may be malformed.
func recoverID(data []byte) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return defaultID
	}
	if id, ok := fields["id"]; ok && validID(id) {
		return bytes.TrimSpace(id)
	}
	return defaultID
}

// validID reports whether id is a decimal integer in the uint64 range.
func validID(id json.RawMessage) bool {
	id = bytes.TrimSpace(id)
	if len(id) == 0 || id[0] < '0' || id[0] > '9' {
		return false
	}
	_, err := strconv.ParseUint(string(id), 10, 64)
	return err == nil
}

// resultFrame encodes a successful response.
func resultFrame(id json.RawMessage, v any) ([]byte, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return json.Marshal(Response{JSONRPC: Version, Result: result, ID: id})
}

// errorFrame encodes a failed response. Handler errors keep their kind;
// protocol errors use CodeInvalidRequest.
func errorFrame(id json.RawMessage, err error) []byte {
	data, mErr := json.Marshal(Response{JSONRPC: Version, Error: errorObject(err), ID: id})
	if mErr != nil {
		// Only reachable with an unencodable id, which ParseRequest rejects.
		return []byte(`{"jsonrpc":"2.0","error":{"code":500,"kind":"internal_error","message":"encoding error"},"id":0}`)
	}
	return data
}

// errorObject maps err onto the wire error shape.
func errorObject(err error) *ErrorObject {
	if isProtocolError(err) {
		return &ErrorObject{Code: CodeInvalidRequest, Kind: KindInvalidRequest, Message: err.Error()}
	}
	he := handler.Classify(err)
	return &ErrorObject{Code: he.Kind.Status(), Kind: he.Kind.String(), Message: he.Error()}
}
