package mutation

import (
	"encoding/json"
	"strings"
)

const (
	// MessageEvent is the type tag of every observed event message.
	MessageEvent = "event"

	// HandshakePrefix starts the first message of every page channel.
	HandshakePrefix = "connected----"

	// SignalFileName is the custom signal carrying an output filename.
	SignalFileName = "AnticvFileNameEvent"
)

// Message is the unit carried by a transport channel and buffered by the
// collector. Event messages carry Event and Time; handshakes carry only
// Type; custom signals carry their raw payload in Payload. Tab events are
// typed by their kind and carry {"tabId"} in Payload and a Time.
type Message struct {
	Type    string          `json:"type"`
	Event   *Event          `json:"-"`
	Payload json.RawMessage `json:"-"`
	Time    int64           `json:"-"`
}

type wireMessage struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event,omitempty"`
	Time  *int64          `json:"time,omitempty"`
}

// NewEventMessage wraps ev in an event message stamped with t.
func NewEventMessage(ev Event, t int64) Message {
	return Message{Type: MessageEvent, Event: &ev, Time: t}
}

// NewHandshake returns the channel-open message for pageURL.
func NewHandshake(pageURL string) Message {
	return Message{Type: HandshakePrefix + pageURL}
}

// NewSignal returns a custom signal message.
func NewSignal(name string, payload json.RawMessage) Message {
	return Message{Type: name, Payload: payload}
}

// NewTabEvent returns the collector-side message recording kind for tab
// at t.
func NewTabEvent(kind Kind, tabID string, t int64) Message {
	payload, _ := json.Marshal(struct {
		TabID string `json:"tabId"`
	}{tabID})
	return Message{Type: string(kind), Payload: payload, Time: t}
}

// TabID returns the tab of a tab event.
func (m Message) TabID() (string, bool) {
	if m.Type != string(KindTabActivated) && m.Type != string(KindTabRemoved) {
		return "", false
	}
	var p struct {
		TabID string `json:"tabId"`
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return "", false
	}
	return p.TabID, true
}

// IsHandshake reports whether m opens a channel.
func (m Message) IsHandshake() bool {
	return strings.HasPrefix(m.Type, HandshakePrefix)
}

// HandshakeURL returns the page URL announced by a handshake.
func (m Message) HandshakeURL() string {
	return strings.TrimPrefix(m.Type, HandshakePrefix)
}

// FileName extracts the filename from a SignalFileName payload.
func (m Message) FileName() (string, bool) {
	if m.Type != SignalFileName || len(m.Payload) == 0 {
		return "", false
	}
	var p struct {
		FileName string `json:"filename"`
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return "", false
	}
	return p.FileName, true
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{Type: m.Type}
	switch {
	case m.Event != nil:
		data, err := json.Marshal(m.Event)
		if err != nil {
			return nil, err
		}
		w.Event = data
		t := m.Time
		w.Time = &t
	case len(m.Payload) > 0:
		w.Event = m.Payload
		if m.Time != 0 {
			t := m.Time
			w.Time = &t
		}
	}
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{Type: w.Type}
	if w.Time != nil {
		m.Time = *w.Time
	}
	if len(w.Event) == 0 || string(w.Event) == "null" {
		return nil
	}
	if w.Type != MessageEvent {
		m.Payload = append(json.RawMessage(nil), w.Event...)
		return nil
	}
	var ev Event
	if err := json.Unmarshal(w.Event, &ev); err != nil {
		return err
	}
	m.Event = &ev
	return nil
}
