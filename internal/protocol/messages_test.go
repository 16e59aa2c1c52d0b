package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseControl(t *testing.T) {
	c, err := ParseControl([]byte(`{"type":"set_languages","source":"en","target":"de"}`))
	if err != nil {
		t.Fatalf("ParseControl() error = %v", err)
	}
	if c.Type != ControlSetLanguages || c.Source != "en" || c.Target != "de" {
		t.Errorf("ParseControl() = %+v, want set_languages en→de", c)
	}
}

func TestParseControlRejectsMalformed(t *testing.T) {
	if _, err := ParseControl([]byte(`{not json`)); err == nil {
		t.Error("ParseControl() accepted malformed JSON")
	}
	if _, err := ParseControl([]byte(`{"source":"en"}`)); err == nil {
		t.Error("ParseControl() accepted message without type")
	}
}

func TestReadyGreeting(t *testing.T) {
	raw, err := json.Marshal(Ready())
	if err != nil {
		t.Fatalf("Marshal(Ready()) error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if got["type"] != EventConnection || got["status"] != "connected" || got["message"] != "TalkFlow ready" {
		t.Errorf("greeting = %v, want connection/connected/TalkFlow ready", got)
	}
}

func TestErrorEventHidesDetail(t *testing.T) {
	raw, _ := json.Marshal(ProcessingError())
	want := `{"type":"error","message":"Failed to process audio"}`
	if string(raw) != want {
		t.Errorf("error event = %s, want %s", raw, want)
	}
}
