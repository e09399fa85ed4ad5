package exchange

import "context"

// Notifier delivers a message to a user after their reward has been
// credited. Delivery is fire-and-forget: the completion transaction
// has already committed by the time Send runs, and a delivery
// failure must never surface as a completion failure. The engine
// ignores the returned error; implementations log it.
type Notifier interface {
	Send(ctx context.Context, userID uint64, message string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, userID uint64, message string) error

func (f NotifierFunc) Send(ctx context.Context, userID uint64, message string) error {
	return f(ctx, userID, message)
}
