package valet

import (
	"context"
	"encoding/json"
	"fmt"

	"eventpilot/internal/kafka"
	"eventpilot/internal/sse"
)

// StreamRelay feeds valet status events read from Kafka into the local
// hub. With Kafka enabled every instance runs one, so a car parked on one
// node shows up on the queue screens connected to any other.
func StreamRelay(hub *sse.Hub) kafka.Handler {
	return func(_ context.Context, env kafka.Envelope) error {
		var ev StatusEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return fmt.Errorf("decode valet event %s: %w", env.ID, err)
		}
		if ev.SessionID == "" {
			return fmt.Errorf("valet event %s has no session", env.ID)
		}
		hub.Emit(StreamTopic(ev.SessionID), sse.Event{Type: EventStatusChanged, Data: ev})
		return nil
	}
}
