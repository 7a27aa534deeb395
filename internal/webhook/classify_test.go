package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  Classification
	}{
		{
			name:  "background sync wins over everything",
			event: Event{BackgroundSync: true, EventType: "DocumentCreated"},
			want:  FullSync,
		},
		{
			name:  "delete event case insensitive",
			event: Event{EventType: "DocumentDeleted"},
			want:  DocumentDelete,
		},
		{
			name:  "delete lowercase",
			event: Event{EventType: "deleted"},
			want:  DocumentDelete,
		},
		{
			name:  "create event",
			event: Event{EventType: "DocumentCreated"},
			want:  DocumentCreateOrUpdate,
		},
		{
			name:  "update event",
			event: Event{EventType: "DocumentUpdated"},
			want:  DocumentCreateOrUpdate,
		},
		{
			name:  "no event type but documentId present",
			event: Event{DocumentID: DocumentID{Value: 42, Set: true}},
			want:  ProbeThenDecide,
		},
		{
			name:  "no event type and no documentId falls back to full sync",
			event: Event{ProjectID: 2370300},
			want:  FullSync,
		},
		{
			name:  "unrecognized event type falls back to full sync",
			event: Event{EventType: "SomethingElse"},
			want:  FullSync,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.event))
		})
	}
}
