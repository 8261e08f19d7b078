package model

import (
	"context"
	"time"
)

// AuditEvent is the outcome of a single back-channel transaction.
type AuditEvent struct {
	Correlator string    `json:"correlator"`
	Command    string    `json:"cmd"`
	Idk        string    `json:"idk,omitempty"`
	Tif        int       `json:"tif"`
	Outcome    string    `json:"outcome"`
	RemoteIP   string    `json:"remote_ip"`
	Time       time.Time `json:"time"`
	// Button is the ask button the client answered with, if any.
	Button *int `json:"btn,omitempty"`
}

// AuditSink persists audit events.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}
