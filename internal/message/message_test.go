package message

import (
	"encoding/json"
	"testing"
)

func TestRoleRoundTrip(t *testing.T) {
	msg := UserMessage("open the settings app")
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Role != RoleUser {
		t.Errorf("expected role USER, got %q", decoded.Role)
	}
	if decoded.Content != "open the settings app" {
		t.Errorf("content mismatch: %q", decoded.Content)
	}
}

func TestUnknownRoleRejected(t *testing.T) {
	raw := `{"id":"x","role":"system","content":"hi","timestamp":1}`
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		t.Fatal("expected unmarshal error for unknown role, got nil")
	}
}

func TestFirstUserContent(t *testing.T) {
	msgs := []Message{
		AssistantMessage("thinking about it", "", "", ""),
		UserMessage("turn on wifi"),
		UserMessage("second request"),
	}
	if got := FirstUserContent(msgs); got != "turn on wifi" {
		t.Errorf("expected first user content, got %q", got)
	}
	if got := FirstUserContent(nil); got != "" {
		t.Errorf("expected empty content for nil slice, got %q", got)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
