// Package messages defines the gateway ↔ core message envelope from
// spec.md §6. Everything outside the core speaks these two shapes only.
package messages

import "time"

// IncomingMessage is one inbound message handed to the core entry point.
type IncomingMessage struct {
	ID        string
	Source    string // rest | cli | discord | websocket | ...
	Content   string
	Sender    string
	Channel   string
	Timestamp time.Time
	Metadata  map[string]any
}

// OutgoingMessage is one reply produced by a reasoning-loop invocation.
type OutgoingMessage struct {
	Content  string
	Target   string // channel(id) | dm(user) | broadcast
	ReplyTo  string
	Metadata map[string]any
}
