// Package notify delivers alerts to an external messaging channel.
package notify

import "context"

// Messenger sends a single rendered alert message. Implementations
// return ErrNonRetryable (wrapped) when a failure is permanent and
// retrying the same message cannot succeed.
type Messenger interface {
	Send(ctx context.Context, text string) error
}
