package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    DocumentID
		wantErr bool
	}{
		{name: "bare number", json: `12345678`, want: DocumentID{Value: 12345678, Set: true}},
		{name: "native object", json: `{"native":12345678}`, want: DocumentID{Value: 12345678, Set: true}},
		{name: "stringified number", json: `"12345678"`, want: DocumentID{Value: 12345678, Set: true}},
		{name: "null", json: `null`, want: DocumentID{}},
		{name: "non-numeric string", json: `"abc"`, wantErr: true},
		{name: "object missing native", json: `{"foo":1}`, want: DocumentID{Value: 0, Set: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d DocumentID
			err := d.UnmarshalJSON([]byte(tt.json))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestParseEvent_Envelope(t *testing.T) {
	raw := `{"body":"{\"eventType\":\"DocumentUpdated\",\"projectId\":2370300}"}`
	event, err := parseEvent([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "DocumentUpdated", event.EventType)
	assert.Equal(t, 2370300, event.ProjectID)
}

func TestParseEvent_Direct(t *testing.T) {
	raw := `{"eventType":"DocumentDeleted","projectId":2370300,"documentId":{"native":12345678}}`
	event, err := parseEvent([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "DocumentDeleted", event.EventType)
	assert.True(t, event.DocumentID.Set)
	assert.Equal(t, 12345678, event.DocumentID.Value)
}

func TestParseEvent_BackgroundSync(t *testing.T) {
	raw := `{"__background_sync":true,"projectId":2370300}`
	event, err := parseEvent([]byte(raw))
	require.NoError(t, err)
	assert.True(t, event.BackgroundSync)
}
