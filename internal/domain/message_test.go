package domain

import (
	"encoding/json"
	"testing"
)

func TestAttachmentUnmarshal(t *testing.T) {
	var att Attachment
	err := json.Unmarshal([]byte(`{"type": "photo", "photo": "file-1", "caption": "hi"}`), &att)
	if err != nil {
		t.Fatal(err)
	}
	if att.Kind != "photo" {
		t.Errorf("kind = %q", att.Kind)
	}
	if att.Fields["photo"] != "file-1" || att.Fields["caption"] != "hi" {
		t.Errorf("fields = %v", att.Fields)
	}
	if _, ok := att.Fields["type"]; ok {
		t.Error("type key must not remain in fields")
	}
}

func TestAttachmentMarshal(t *testing.T) {
	att := Attachment{Kind: "document", Fields: map[string]any{"document": "file-2"}}
	data, err := json.Marshal(att)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != "document" || m["document"] != "file-2" {
		t.Errorf("wire form = %v, want a flat object with a type key", m)
	}
}

func TestNormalizedMessageWireForm(t *testing.T) {
	msg := NormalizedMessage{
		MessageID: "m-1",
		Content:   "hello",
		FromAddr:  "123",
		FromType:  AddrTelegramID,
		ToAddr:    "@bot",
		ToType:    AddrTelegramUsername,
		Transport: TransportMeta{
			Type:    TypeCallbackQuery,
			Reply:   "data",
			Details: &QueryDetails{CallbackQueryID: "cbq-1"},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"message_id", "content", "from_addr", "from_addr_type", "to_addr", "to_addr_type", "transport_metadata", "helper_metadata"} {
		if _, ok := m[key]; !ok {
			t.Errorf("wire form missing %q", key)
		}
	}
	tm, _ := m["transport_metadata"].(map[string]any)
	if tm["type"] != TypeCallbackQuery {
		t.Errorf("transport type = %v", tm["type"])
	}
	details, _ := tm["details"].(map[string]any)
	if details["callback_query_id"] != "cbq-1" {
		t.Errorf("details = %v", details)
	}
	// A zero timestamp stays off the wire.
	if _, ok := m["timestamp"]; ok {
		t.Error("zero timestamp should be omitted")
	}
}
