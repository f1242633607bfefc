package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event types exported to the bus.
const (
	TypeLapRecorded   = "lap.recorded"
	TypeCtfStarted    = "ctf.started"
	TypeCtfStopped    = "ctf.stopped"
	TypeCtfCapture    = "ctf.capture"
	TypeConfigChanged = "config.changed"
	TypeNodeJoined    = "node.joined"
)

// Event is the envelope published for every accepted timing event.
type Event struct {
	ID        uuid.UUID       `json:"eventId"`
	Type      string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope stamped at now.
func NewEvent(eventType string, now time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: now,
		Payload:   data,
	}, nil
}

// Publisher exports events. Implementations must not block on the network.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops events; used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	log.Debug().Str("event_type", event.Type).Str("event_id", event.ID.String()).Msg("event not exported")
	return nil
}
