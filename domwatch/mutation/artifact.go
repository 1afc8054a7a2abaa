package mutation

import "encoding/json"

// DefaultFileSuffix is appended to every artifact name before ".json".
const DefaultFileSuffix = "--cvdommutationvanilla"

// Artifact is one flushed session: every message buffered for a URL
// between two navigations.
type Artifact struct {
	URL         string    `json:"url"`
	DOMMutation []Message `json:"dommutation"`
	// StartTime is the time of the first buffered message, or nil when the
	// session recorded nothing (serialised as "").
	StartTime *int64 `json:"-"`
	EndTime   int64  `json:"endTime"`
}

// ArtifactName derives the export name for a session: the override
// filename when set, else the URL, plus suffix and ".json".
func ArtifactName(url, filename, suffix string) string {
	base := filename
	if base == "" {
		base = url
	}
	return base + suffix + ".json"
}

// NewArtifact builds the artifact of a session replaced at endTime.
func NewArtifact(url string, messages []Message, endTime int64) Artifact {
	a := Artifact{URL: url, DOMMutation: messages, EndTime: endTime}
	if a.DOMMutation == nil {
		a.DOMMutation = []Message{}
	}
	if len(messages) > 0 {
		t := messages[0].Time
		a.StartTime = &t
	}
	return a
}

type wireArtifact struct {
	URL         string          `json:"url"`
	DOMMutation []Message       `json:"dommutation"`
	StartTime   json.RawMessage `json:"startTime"`
	EndTime     int64           `json:"endTime"`
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	w := wireArtifact{URL: a.URL, DOMMutation: a.DOMMutation, EndTime: a.EndTime}
	if w.DOMMutation == nil {
		w.DOMMutation = []Message{}
	}
	if a.StartTime != nil {
		data, err := json.Marshal(*a.StartTime)
		if err != nil {
			return nil, err
		}
		w.StartTime = data
	} else {
		w.StartTime = json.RawMessage(`""`)
	}
	return json.Marshal(w)
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var w wireArtifact
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Artifact{URL: w.URL, DOMMutation: w.DOMMutation, EndTime: w.EndTime}
	var t int64
	if len(w.StartTime) > 0 && json.Unmarshal(w.StartTime, &t) == nil {
		a.StartTime = &t
	}
	return nil
}
