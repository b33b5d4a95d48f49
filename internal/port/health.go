package port

import "context"

// HealthChecker is implemented by long-lived clients that can verify, and if
// needed re-establish, their connection.
type HealthChecker interface {
	Check(ctx context.Context) error
}
