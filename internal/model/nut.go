package model

import "time"

// NutRecord is the persisted side of an issued nut. The counter doubles as the
// primary key and as the replay guard.
type NutRecord struct {
	Counter    uint32
	Correlator string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Consumed   bool
}
