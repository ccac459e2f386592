// Package notifications delivers export outcomes to ntfy.
//
// NewService returns a no-op service when no topic is configured, so callers
// never need to check whether notifications are enabled. Sink adapts a
// Service to the bridge session so one message is sent when an export ends.
package notifications
