package wire

import (
	"encoding/json"
	"testing"
)

func TestEncodeUpdateDefaultsEmptyReported(t *testing.T) {
	payload, err := EncodeUpdate(nil, "req-1")
	if err != nil {
		t.Fatalf("EncodeUpdate: %v", err)
	}

	var got UpdateRequest
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", got.RequestID)
	}
	if string(got.Reported) != "{}" {
		t.Errorf("Reported = %s, want {}", got.Reported)
	}
}

func TestDecodeAcceptedKeepsRawDocument(t *testing.T) {
	payload := []byte(`{"requestId":"req-1","power":"on"}`)
	doc, err := DecodeAccepted(payload)
	if err != nil {
		t.Fatalf("DecodeAccepted: %v", err)
	}
	if doc.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", doc.RequestID)
	}
	if string(doc.Raw) != string(payload) {
		t.Errorf("Raw = %s, want the original payload", doc.Raw)
	}
}

func TestDecodeRejected(t *testing.T) {
	body, err := DecodeRejected([]byte(`{"requestId":"req-1","code":"E_NOT_FOUND","message":"no shadow"}`))
	if err != nil {
		t.Fatalf("DecodeRejected: %v", err)
	}
	if body.Code != "E_NOT_FOUND" || body.Message != "no shadow" {
		t.Errorf("body = %+v", body)
	}
}

func TestDecodeDelta(t *testing.T) {
	body, err := DecodeDelta([]byte(`{"requestId":"req-1","desired":{"brightness":80}}`))
	if err != nil {
		t.Fatalf("DecodeDelta: %v", err)
	}
	if body.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", body.RequestID)
	}
	if string(body.Desired) != `{"brightness":80}` {
		t.Errorf("Desired = %s", body.Desired)
	}
}

func TestDecodeRejectedPropagatesJSONError(t *testing.T) {
	if _, err := DecodeRejected([]byte("not json")); err == nil {
		t.Error("DecodeRejected() with malformed JSON returned nil error")
	}
}

func TestNewRequestIDIsUnique(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Error("NewRequestID() produced the same id twice in a row")
	}
}
