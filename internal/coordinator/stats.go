package coordinator

import "sync/atomic"

// Stats holds the run-lifetime counters the consumer loop updates.
type Stats struct {
	processed int64
	matches   int64
	dropped   int64
}

func (s *Stats) incProcessed() { atomic.AddInt64(&s.processed, 1) }
func (s *Stats) incMatches()   { atomic.AddInt64(&s.matches, 1) }
func (s *Stats) incDropped()   { atomic.AddInt64(&s.dropped, 1) }

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	Processed int64
	Matches   int64
	Dropped   int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Processed: atomic.LoadInt64(&s.processed),
		Matches:   atomic.LoadInt64(&s.matches),
		Dropped:   atomic.LoadInt64(&s.dropped),
	}
}
