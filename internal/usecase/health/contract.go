package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BrokerChecker checks event broker availability.
type BrokerChecker interface {
	HealthCheck(ctx context.Context) error
}
