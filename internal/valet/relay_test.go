package valet_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"eventpilot/internal/kafka"
	"eventpilot/internal/models"
	"eventpilot/internal/sse"
	"eventpilot/internal/valet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamRelay(t *testing.T) {
	hub := sse.NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, valet.StreamTopic("s1"))
	relay := valet.StreamRelay(hub)

	payload, err := json.Marshal(valet.StatusEvent{RecordID: "r1", SessionID: "s1", From: models.ValetParked, To: models.ValetRequested})
	require.NoError(t, err)
	require.NoError(t, relay(ctx, kafka.Envelope{ID: "e1", Payload: payload}))

	select {
	case ev := <-ch:
		assert.Equal(t, valet.EventStatusChanged, ev.Type)
		got := ev.Data.(valet.StatusEvent)
		assert.Equal(t, "r1", got.RecordID)
		assert.Equal(t, models.ValetRequested, got.To)
	case <-time.After(time.Second):
		t.Fatal("relayed event never reached the stream")
	}

	assert.Error(t, relay(ctx, kafka.Envelope{ID: "e2", Payload: []byte(`{}`)}))
	assert.Error(t, relay(ctx, kafka.Envelope{ID: "e3", Payload: []byte(`not json`)}))
}
