package statusserver

import (
	"context"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// Sink fans matches into a Hub's broadcast channel, so every connected /ws
// client sees the same stream the other sinks emit. A full broadcast
// buffer never blocks the pipeline: the record is dropped for websocket
// viewers only.
type Sink struct {
	hub *Hub
}

// NewSink wraps hub as a sink.Sink.
func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

func (s *Sink) Emit(_ context.Context, rec model.MatchRecord) error {
	select {
	case s.hub.Broadcast <- rec:
	default:
	}

	return nil
}

func (s *Sink) Flush(context.Context) error { return nil }
