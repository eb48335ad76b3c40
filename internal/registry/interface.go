package registry

import "context"

// Registry records which instance currently serves a conversation's live
// channels, so operational tooling (and a future cross-instance dispatcher)
// can locate them. Entries expire unless refreshed by the heartbeat.
type Registry interface {
	Register(ctx context.Context, conversationID string) error
	Deregister(ctx context.Context, conversationID string) error
	// Lookup returns the address of the instance serving the conversation's
	// live channels, or "" when none are online.
	Lookup(ctx context.Context, conversationID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
