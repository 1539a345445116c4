package vm

import "time"

// CollectStats holds statistics from a single collection.
type CollectStats struct {
	Marked     int
	Freed      int
	Live       int
	BytesFreed uint64
	BytesLive  uint64
	Duration   time.Duration
	Timestamp  time.Time
}

// CollectCount returns the total number of collections performed.
func (gc *GC) CollectCount() uint64 {
	return gc.collectCount
}

// LastStats returns statistics from the most recent collection, or nil if
// no collection has run yet.
func (gc *GC) LastStats() *CollectStats {
	return gc.lastStats
}
