package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DocumentID accepts the two shapes Origin's webhook payload has been
// observed sending: a bare number, or {"native": <number>}.
type DocumentID struct {
	Value int
	Set   bool
}

// UnmarshalJSON accepts a JSON number or an object with a "native" field.
func (d *DocumentID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*d = DocumentID{}
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var native struct {
			Native int `json:"native"`
		}
		if err := json.Unmarshal(trimmed, &native); err != nil {
			return fmt.Errorf("documentId object: %w", err)
		}
		*d = DocumentID{Value: native.Native, Set: true}
		return nil
	}

	// Bare scalar: accept both JSON-number and JSON-string forms, since
	// API-Gateway re-encoding has been seen to stringify numeric fields.
	var n int
	if err := json.Unmarshal(trimmed, &n); err == nil {
		*d = DocumentID{Value: n, Set: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("documentId scalar: %w", err)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("documentId string %q is not numeric: %w", s, err)
	}
	*d = DocumentID{Value: n, Set: true}
	return nil
}

// Event is the inbound webhook payload, after any API-Gateway envelope has
// been unwrapped.
type Event struct {
	EventType        string     `json:"eventType"`
	ProjectID        int        `json:"projectId"`
	DocumentID       DocumentID `json:"documentId"`
	BackgroundSync   bool       `json:"__background_sync"`
	FolderID         string     `json:"folderId"`
	FolderPath       string     `json:"folderPath"`
	DocumentFilename string     `json:"filename"`
}

// envelope is the nested API-Gateway shape: the real event JSON arrives
// string-encoded inside a "body" field.
type envelope struct {
	Body string `json:"body"`
}

// parseEvent unwraps an optional API-Gateway envelope and decodes the event.
func parseEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Body != "" {
		raw = []byte(env.Body)
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return event, nil
}
