package registry

import "context"

// Registry records which relay instance owns the room of a session.
type Registry interface {
	Register(ctx context.Context, sessionID string) error
	Deregister(ctx context.Context, sessionID string) error
	// Lookup returns the owning address, or "" when no instance owns the session.
	Lookup(ctx context.Context, sessionID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// NopRegistry is used when the registry is disabled. Every session is
// reported as unowned.
type NopRegistry struct{}

func (NopRegistry) Register(context.Context, string) error         { return nil }
func (NopRegistry) Deregister(context.Context, string) error       { return nil }
func (NopRegistry) Lookup(context.Context, string) (string, error) { return "", nil }
func (NopRegistry) StartHeartbeat(context.Context) error           { return nil }
func (NopRegistry) StopHeartbeat()                                 {}
func (NopRegistry) Close() error                                   { return nil }
