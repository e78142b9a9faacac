package identity

import "context"

// Client is the identity provider as seen by one browser session.
type Client struct {
	svc *Service
	key string
}

func (c *Client) Key() string {
	return c.key
}

// OnAuthStateChange registers fn for events on this session key.
func (c *Client) OnAuthStateChange(fn Listener) *Subscription {
	return c.svc.hub.Subscribe(c.key, fn)
}

func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	return c.svc.GetSession(ctx, c.key)
}

func (c *Client) SignOut(ctx context.Context) error {
	return c.svc.SignOut(ctx, c.key)
}
