// Package wire defines the JSON payload shapes exchanged with the shadow
// service and the helpers to encode/decode them.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewRequestID returns a fresh UUID v4 request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// UpdateRequest is the outbound payload for baidu/iot/shadow/<device>/update.
type UpdateRequest struct {
	Reported  json.RawMessage `json:"reported"`
	RequestID string          `json:"requestId"`
}

// GetRequest is the outbound payload for .../get and .../delete.
type GetRequest struct {
	RequestID string `json:"requestId"`
}

// RejectedBody is both the inbound */rejected payload and the outbound
// delta/rejected payload.
type RejectedBody struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// DeltaBody is the inbound delta payload.
type DeltaBody struct {
	RequestID string          `json:"requestId"`
	Desired   json.RawMessage `json:"desired"`
}

// AcceptedDocument is the inbound */accepted payload. The document shape is
// server-defined, so only the correlating requestId is typed explicitly;
// everything else travels as raw JSON for the caller to interpret.
type AcceptedDocument struct {
	RequestID string          `json:"requestId"`
	Raw       json.RawMessage `json:"-"`
}

// EncodeUpdate builds the wire payload for update(reported).
func EncodeUpdate(reported json.RawMessage, requestID string) ([]byte, error) {
	if len(reported) == 0 {
		reported = json.RawMessage("{}")
	}
	return json.Marshal(UpdateRequest{Reported: reported, RequestID: requestID})
}

// EncodeRequestID builds the wire payload for get()/delete(), which carry
// only a requestId.
func EncodeRequestID(requestID string) ([]byte, error) {
	return json.Marshal(GetRequest{RequestID: requestID})
}

// EncodeRejected builds the outbound delta/rejected payload.
func EncodeRejected(requestID, code, message string) ([]byte, error) {
	return json.Marshal(RejectedBody{RequestID: requestID, Code: code, Message: message})
}

// DecodeAccepted parses an inbound */accepted payload, keeping the raw
// document around for callback delivery while extracting the requestId.
func DecodeAccepted(payload []byte) (AcceptedDocument, error) {
	var envelope struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return AcceptedDocument{}, fmt.Errorf("decode accepted: %w", err)
	}
	return AcceptedDocument{RequestID: envelope.RequestID, Raw: payload}, nil
}

// DecodeRejected parses an inbound */rejected payload.
func DecodeRejected(payload []byte) (RejectedBody, error) {
	var body RejectedBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return RejectedBody{}, fmt.Errorf("decode rejected: %w", err)
	}
	return body, nil
}

// DecodeDelta parses an inbound delta payload.
func DecodeDelta(payload []byte) (DeltaBody, error) {
	var body DeltaBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return DeltaBody{}, fmt.Errorf("decode delta: %w", err)
	}
	return body, nil
}
