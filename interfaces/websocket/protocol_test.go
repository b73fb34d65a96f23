package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "broadcast with payload",
			data: `{"type":"broadcast","payload":{"shapes":[{"id":"s1","type":"rectangle","bounds":{"x":0,"y":0,"width":100,"height":60}}],"senderParticipant":{"id":"alice"}}}`,
		},
		{
			name: "new participant",
			data: `{"type":"new-participant","participant":{"id":"alice","name":"Alice"}}`,
		},
		{
			name: "participant set changed",
			data: `{"type":"participant-set-changed","participantIds":["alice","bob"]}`,
		},
		{
			name:    "broadcast without payload",
			data:    `{"type":"broadcast"}`,
			wantErr: true,
		},
		{
			// The relay stamps the sender after decode; inbound broadcasts
			// need not carry one.
			name: "broadcast payload without sender",
			data: `{"type":"broadcast","payload":{"shapes":[]}}`,
		},
		{
			name:    "unknown type",
			data:    `{"type":"eviction-notice"}`,
			wantErr: true,
		},
		{
			name:    "missing type",
			data:    `{"payload":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `<xml/>`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, msg.Type)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &Message{
		Type: TypeBroadcast,
		Payload: &ports.SnapshotPayload{
			Shapes: []*entities.Shape{{ID: "s1", Type: entities.ShapeRectangle, Text: "Billing"}},
			Sender: ports.Participant{ID: "alice", Name: "Alice"},
		},
	}

	data, err := EncodeMessage(original)
	require.NoError(t, err)
	decoded, err := DecodeMessage(data)
	require.NoError(t, err)

	assert.Equal(t, TypeBroadcast, decoded.Type)
	require.NotNil(t, decoded.Payload)
	require.Len(t, decoded.Payload.Shapes, 1)
	assert.Equal(t, "Billing", decoded.Payload.Shapes[0].Text)
	assert.Equal(t, "alice", decoded.Payload.Sender.ID)
}
