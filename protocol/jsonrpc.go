// Package protocol defines the wire envelopes and domain messages for the
// camera-management service, based on the JSON-RPC 2.0 specification.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Version is the protocol marker every envelope must carry.
const Version = "2.0"

// ErrorPayload defines the structure of the 'error' object within an error
// response, aligning with the JSON-RPC 2.0 specification.
type ErrorPayload struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Request represents an outgoing call envelope. The client never sends
// notifications, so every request carries a correlation id.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response represents a response envelope. Exactly one of Result and Error is
// populated. The ID matches the originating request.
type Response struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

// Notification represents a server-pushed event envelope. Notifications carry
// no id; they are delivered outside any request/response pair.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewRequest creates a new request envelope.
func NewRequest(id int64, method string, params interface{}) *Request {
	return &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// EncodeRequest serializes a request envelope for the wire.
func EncodeRequest(req *Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request %q: %w", req.Method, err)
	}
	return data, nil
}

// envelopeProbe is used for initial parsing to determine the frame kind.
// A *int64 id distinguishes "id": null from a missing id field; the raw
// result and error fields distinguish an absent field from "result": null,
// which is a valid success value for void methods.
type envelopeProbe struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// Decode classifies an incoming frame as a response or a notification.
// Exactly one of the return values is non-nil on success. A frame that is not
// parseable as either shape, or that declares an unknown protocol version,
// yields a MalformedFrameError; the caller logs and drops it.
func Decode(data []byte) (*Response, *Notification, error) {
	var probe envelopeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, &MalformedFrameError{Reason: "not a valid envelope", Cause: err}
	}
	if probe.JSONRPC != Version {
		return nil, nil, &MalformedFrameError{Reason: fmt.Sprintf("unsupported protocol version %q", probe.JSONRPC)}
	}

	if probe.ID != nil {
		if len(probe.Result) == 0 && len(probe.Error) == 0 {
			return nil, nil, &MalformedFrameError{Reason: "response carries neither result nor error"}
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, nil, &MalformedFrameError{Reason: "invalid response envelope", Cause: err}
		}
		return &resp, nil, nil
	}

	if probe.Method == "" {
		return nil, nil, &MalformedFrameError{Reason: "frame carries neither id nor method"}
	}
	var noti Notification
	if err := json.Unmarshal(data, &noti); err != nil {
		return nil, nil, &MalformedFrameError{Reason: "invalid notification envelope", Cause: err}
	}
	return nil, &noti, nil
}

// DecodePayload decodes a result or params payload (decoded from JSON as
// map[string]interface{}) into the typed struct pointed to by target, using
// the struct's json tags.
func DecodePayload(payload interface{}, target interface{}) error {
	if payload == nil {
		return fmt.Errorf("payload is nil, cannot decode")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("failed to create payload decoder: %w", err)
	}
	if err := decoder.Decode(payload); err != nil {
		return fmt.Errorf("failed to decode payload into %T: %w", target, err)
	}
	return nil
}
