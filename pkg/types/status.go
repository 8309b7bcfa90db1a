package types

import "time"

// SyncState is the per-identity status reported to the presentation layer.
type SyncState int

const (
	StateUnknown SyncState = iota
	StateIdle
	StateSynchronizing
	StatePublishing
)

var syncStateNames = map[SyncState]string{
	StateUnknown:       "unknown",
	StateIdle:          "idle",
	StateSynchronizing: "synchronizing",
	StatePublishing:    "publishing",
}

func (s SyncState) String() string {
	if n, ok := syncStateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Status is a point-in-time view of one identity's synchronization.
type Status struct {
	IdentityID string     `json:"identity_id"`
	State      SyncState  `json:"-"`
	StateName  string     `json:"state"`
	Modified   bool       `json:"modified"`
	Edition    int64      `json:"edition"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
	StaleSince *time.Time `json:"stale_since,omitempty"`

	LastPublishFailed bool `json:"last_publish_failed"`
}
