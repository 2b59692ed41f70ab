package realtime

import "context"

// Message is the frame written to realtime subscribers.
type Message struct {
	Destination string `json:"destination"`
	Event       string `json:"event"`
	Data        any    `json:"data,omitempty"`
}

// Publisher delivers a message to the sessions addressed by a route.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, route Route, message Message) error
}

// SubscriptionAuthorizer decides whether a user may subscribe to a topic
// destination. It is consulted for group topics only.
type SubscriptionAuthorizer interface {
	AuthorizeSubscription(ctx context.Context, userID, destination string) error
}

// AuthorizerFunc adapts a function to SubscriptionAuthorizer.
type AuthorizerFunc func(ctx context.Context, userID, destination string) error

// AuthorizeSubscription implements SubscriptionAuthorizer.
func (f AuthorizerFunc) AuthorizeSubscription(ctx context.Context, userID, destination string) error {
	return f(ctx, userID, destination)
}
