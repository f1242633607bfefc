package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNATSPublisherEnvelope(t *testing.T) {
	conn := &fakeConn{}
	p := NewNATSPublisher(conn, "gatetimer")

	now := time.UnixMilli(1700000000000).UTC()
	ev, err := NewEvent(TypeLapRecorded, now, map[string]any{"ipv4": "10.0.0.5", "id": 3})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, conn.subjects, 1)
	assert.Equal(t, "gatetimer.lap.recorded", conn.subjects[0])

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.payloads[0], &got))
	assert.Equal(t, ev.ID.String(), got["eventId"])
	assert.Equal(t, TypeLapRecorded, got["eventType"])
	assert.Equal(t, map[string]any{"ipv4": "10.0.0.5", "id": float64(3)}, got["payload"])
}

func TestNATSPublisherPropagatesErrors(t *testing.T) {
	p := NewNATSPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "x")
	ev, err := NewEvent(TypeCtfStopped, time.Now(), struct{}{})
	require.NoError(t, err)

	assert.Error(t, p.Publish(context.Background(), ev))
}

func TestNewEventRejectsUnencodablePayload(t *testing.T) {
	_, err := NewEvent(TypeCtfCapture, time.Now(), make(chan int))
	assert.Error(t, err)
}
