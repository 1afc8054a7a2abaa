package mutation

import "encoding/json"

// MarshalMessage serialises a Message to JSON.
func MarshalMessage(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalMessage deserialises a Message from JSON.
func UnmarshalMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarshalArtifact serialises an Artifact to JSON.
func MarshalArtifact(a *Artifact) ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalArtifact deserialises an Artifact from JSON.
func UnmarshalArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
