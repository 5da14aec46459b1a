package inventory

import "context"

// IntegrationHandler receives committed ledger movements for downstream consumers.
type IntegrationHandler interface {
	HandleMovementPosted(ctx context.Context, evt MovementPostedEvent) error
}
