// internal/bus/nats.go
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the publishing half of Client.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

type Client struct {
	nc      *nats.Conn
	timeout time.Duration
}

func Connect(url string, opts ...nats.Option) (*Client, error) {
	opts = append([]nats.Option{
		nats.Name("simple-image-optimizer"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{nc: nc, timeout: 30 * time.Second}, nil
}

// SetHandlerTimeout bounds the context handed to subscription handlers.
func (c *Client) SetHandlerTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

func (c *Client) Close() {
	if c.nc != nil {
		_ = c.nc.Drain()
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// QueueSubscribeJSON delivers each message to one member of queue.
func (c *Client) QueueSubscribeJSON(subject, queue string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.QueueSubscribe(subject, queue, c.wrap(handler))
}

func (c *Client) wrap(handler func(ctx context.Context, data []byte)) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		handler(ctx, msg.Data)
	}
}
