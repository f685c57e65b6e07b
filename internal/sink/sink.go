// Package sink dispatches MatchRecords to one or more output destinations,
// isolating each destination's failure from the others.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ct-watchtower/watchtower/internal/model"
)

// Sink is the capability set every output destination implements.
type Sink interface {
	Emit(ctx context.Context, rec model.MatchRecord) error
	Flush(ctx context.Context) error
}

// Fanout dispatches to every registered sink in registration order,
// isolating each sink's failure. Emit returns an error only when every
// sink failed.
type Fanout struct {
	sinks []Sink
	log   *logrus.Logger
}

// NewFanout creates a Fanout over sinks, in the given order.
func NewFanout(log *logrus.Logger, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

func (f *Fanout) Emit(ctx context.Context, rec model.MatchRecord) error {
	if len(f.sinks) == 0 {
		return nil
	}

	failures := 0

	for i, s := range f.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			failures++

			if f.log != nil {
				f.log.WithError(err).WithField("sink_index", i).Warn("sink emit failed")
			}
		}
	}

	if failures == len(f.sinks) {
		return fmt.Errorf("sink: all %d sinks failed", failures)
	}

	return nil
}

func (f *Fanout) Flush(ctx context.Context) error {
	var errs []error

	for _, s := range f.sinks {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
