// Package mail renders account emails and delivers them through a pluggable
// transport on background workers.
package mail

import "context"

// Message is a single outbound HTML email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	// Kind tags the message for logs and metrics (verification, reset).
	Kind string `json:"kind"`
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}
