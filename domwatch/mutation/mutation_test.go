package mutation

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestArtifactName(t *testing.T) {
	tests := []struct {
		url, filename, want string
	}{
		{"http://example.com", "", "http://example.com" + DefaultFileSuffix + ".json"},
		{"http://example.com", "site-42", "site-42" + DefaultFileSuffix + ".json"},
	}
	for _, tt := range tests {
		if got := ArtifactName(tt.url, tt.filename, DefaultFileSuffix); got != tt.want {
			t.Errorf("ArtifactName(%q, %q): got %q, want %q", tt.url, tt.filename, got, tt.want)
		}
	}
}

func TestArtifactEmptyStartTime(t *testing.T) {
	a := NewArtifact("http://a.test", nil, 1708700000000)
	data, err := MarshalArtifact(&a)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"startTime":""`) {
		t.Errorf("empty session must serialise startTime as \"\": %s", s)
	}
	if !strings.Contains(s, `"dommutation":[]`) {
		t.Errorf("empty session must serialise dommutation as []: %s", s)
	}

	got, err := UnmarshalArtifact(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartTime != nil {
		t.Errorf("StartTime: got %d, want nil", *got.StartTime)
	}
}

func TestArtifactStartTimeFromFirstMessage(t *testing.T) {
	msgs := []Message{
		NewEventMessage(Event{Type: KindDOMContentLoaded}, 100),
		NewEventMessage(Event{Type: KindWindowLoaded}, 250),
	}
	a := NewArtifact("http://a.test", msgs, 300)
	if a.StartTime == nil || *a.StartTime != 100 {
		t.Fatalf("StartTime: got %v, want 100", a.StartTime)
	}

	data, err := MarshalArtifact(&a)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["startTime"] != float64(100) || raw["endTime"] != float64(300) {
		t.Errorf("times: got start=%v end=%v", raw["startTime"], raw["endTime"])
	}
}

func TestMessageWireShapes(t *testing.T) {
	hs := NewHandshake("http://a.test/")
	data, _ := MarshalMessage(&hs)
	if string(data) != `{"type":"connected----http://a.test/"}` {
		t.Errorf("handshake: got %s", data)
	}

	sig := NewSignal(SignalFileName, json.RawMessage(`{"filename":"f1"}`))
	data, _ = MarshalMessage(&sig)
	if string(data) != `{"type":"AnticvFileNameEvent","event":{"filename":"f1"}}` {
		t.Errorf("signal: got %s", data)
	}

	ev := NewEventMessage(Event{Type: KindTextChanged, Timestamp: 5}, 5)
	data, _ = MarshalMessage(&ev)
	got, err := UnmarshalMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != MessageEvent || got.Event == nil || got.Event.Type != KindTextChanged || got.Time != 5 {
		t.Errorf("event message roundtrip: got %+v", got)
	}
}

func TestTabEventShape(t *testing.T) {
	m := NewTabEvent(KindTabRemoved, "7", 42)
	data, err := MarshalMessage(&m)
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"onTabRemoved","event":{"tabId":"7"},"time":42}`; string(data) != want {
		t.Errorf("tab event:\ngot  %s\nwant %s", data, want)
	}
	got, err := UnmarshalMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := got.TabID(); !ok || id != "7" || got.Time != 42 {
		t.Errorf("roundtrip: got tab %q (%v) time %d", id, ok, got.Time)
	}
	if _, ok := NewSignal(SignalFileName, json.RawMessage(`{"tabId":"7"}`)).TabID(); ok {
		t.Error("TabID must only read tab events")
	}
}

func TestMessageFileName(t *testing.T) {
	sig := NewSignal(SignalFileName, json.RawMessage(`{"filename":"run-7"}`))
	name, ok := sig.FileName()
	if !ok || name != "run-7" {
		t.Errorf("FileName: got %q, %v", name, ok)
	}

	other := NewSignal("SomethingElse", json.RawMessage(`{"filename":"x"}`))
	if _, ok := other.FileName(); ok {
		t.Error("FileName must only read the filename signal")
	}
}

func TestHandshakeURL(t *testing.T) {
	hs := NewHandshake("https://news.test/a?b=c")
	if !hs.IsHandshake() {
		t.Fatal("IsHandshake: got false")
	}
	if hs.HandshakeURL() != "https://news.test/a?b=c" {
		t.Errorf("HandshakeURL: got %q", hs.HandshakeURL())
	}
}
