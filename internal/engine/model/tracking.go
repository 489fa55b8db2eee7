package model

import "time"

// ScanEvent is a single carrier scan in a shipment's history.
type ScanEvent struct {
	Time        time.Time `json:"time"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// TrackingSnapshot is the normalized shipment view for one tracking id.
// Call-scoped and never cached by the engine; caching, if any, belongs to the
// provider adapter.
type TrackingSnapshot struct {
	TrackingID   string      `json:"tracking_id"`
	Carrier      string      `json:"carrier,omitempty"`
	Status       string      `json:"status,omitempty"`
	ETA          *time.Time  `json:"eta,omitempty"`
	LastEvent    string      `json:"last_event,omitempty"`
	LastLocation string      `json:"last_location,omitempty"`
	Scans        []ScanEvent `json:"scans,omitempty"`
}

// RecentScans returns at most n scans, newest first.
func (s *TrackingSnapshot) RecentScans(n int) []ScanEvent {
	if s == nil || n <= 0 || len(s.Scans) == 0 {
		return nil
	}
	scans := make([]ScanEvent, len(s.Scans))
	copy(scans, s.Scans)
	// providers deliver scans oldest first
	for i, j := 0, len(scans)-1; i < j; i, j = i+1, j-1 {
		scans[i], scans[j] = scans[j], scans[i]
	}
	if len(scans) > n {
		scans = scans[:n]
	}
	return scans
}
