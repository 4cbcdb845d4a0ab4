package domain

import "time"

// SnapshotStaleAfter is the default staleness threshold for a stored
// snapshot. A stale snapshot is still a valid fallback read, just not a
// substitute for the authoritative fetch.
const SnapshotStaleAfter = 5 * time.Second

// StoredSnapshot is a timestamped full copy of the domain list held in the
// local cache for warm starts and offline fallback. Never the system of
// record.
type StoredSnapshot struct {
	Domains   []Domain
	Timestamp time.Time
}

// Stale reports whether the snapshot is older than threshold at the given
// instant.
func (s StoredSnapshot) Stale(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.Timestamp) > threshold
}
