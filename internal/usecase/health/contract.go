package health

import "context"

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
