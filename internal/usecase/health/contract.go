package health

import "context"

// DBPinger checks session store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CheckFunc is an additional named health probe.
type CheckFunc func(ctx context.Context) error
