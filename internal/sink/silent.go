package sink

import (
	"context"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// Silent discards every record. Useful when a run wants matches recorded
// only via metrics/stats, not any sink output.
type Silent struct{}

func NewSilent() *Silent { return &Silent{} }

func (*Silent) Emit(context.Context, model.MatchRecord) error { return nil }
func (*Silent) Flush(context.Context) error                   { return nil }
