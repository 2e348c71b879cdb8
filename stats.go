package di

import "sync/atomic"

// Stats counts the work done by the container's extension hooks.
type Stats struct {
	UnregisteredRequests atomic.Int64
	MatchAttempts        atomic.Int64
	Matches              atomic.Int64
	Misses               atomic.Int64
	ClosedRegistrations  atomic.Int64 // descriptors added at runtime, both closed service and implementation
	Interceptions        atomic.Int64
	ConstantFolds        atomic.Int64
	ProxiesCreated       atomic.Int64
}

type StatsSnapshot struct {
	UnregisteredRequests int64
	MatchAttempts        int64
	Matches              int64
	Misses               int64
	ClosedRegistrations  int64
	Interceptions        int64
	ConstantFolds        int64
	ProxiesCreated       int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		UnregisteredRequests: s.UnregisteredRequests.Load(),
		MatchAttempts:        s.MatchAttempts.Load(),
		Matches:              s.Matches.Load(),
		Misses:               s.Misses.Load(),
		ClosedRegistrations:  s.ClosedRegistrations.Load(),
		Interceptions:        s.Interceptions.Load(),
		ConstantFolds:        s.ConstantFolds.Load(),
		ProxiesCreated:       s.ProxiesCreated.Load(),
	}
}

type statsProvider interface {
	Stats() *Stats
}

// StatsOf returns the statistics of the container c, or false if c was not
// built by this package.
func StatsOf(c Container) (StatsSnapshot, bool) {
	if p, ok := c.(statsProvider); ok {
		return p.Stats().Snapshot(), true
	}
	return StatsSnapshot{}, false
}
