package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize = 64
	writeTimeout     = 10 * time.Second
	maxFrameSize     = 64 << 10
)

// Client is a Subscriber backed by a websocket connection. Outbound events
// are queued and written by a single goroutine, so events reach the peer in
// the order they were sent.
type Client struct {
	id    string
	role  Role
	conn  *websocket.Conn
	queue chan Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an accepted connection.
func NewClient(conn *websocket.Conn, role Role, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	conn.SetReadLimit(maxFrameSize)
	return &Client{
		id:    uuid.NewString(),
		role:  role,
		conn:  conn,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Role() Role { return c.role }

// Send queues ev without blocking. It returns false when the queue is full
// or the client has closed.
func (c *Client) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.queue <- ev:
		return true
	default:
		return false
	}
}

// Run pumps events in both directions until the peer disconnects or ctx is
// cancelled. Each decoded inbound frame is passed to handle; frames that are
// not valid JSON envelopes are answered with an error event.
func (c *Client) Run(ctx context.Context, handle func(ctx context.Context, env Envelope)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		c.writePump(ctx)
	}()

	err := c.readLoop(ctx, handle)
	cancel()
	wg.Wait()
	c.Close(websocket.StatusNormalClosure, "bye")
	return err
}

func (c *Client) readLoop(ctx context.Context, handle func(ctx context.Context, env Envelope)) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			c.Send(NewError("", "binary frames are not supported"))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.Send(NewError("", "invalid event envelope"))
			continue
		}
		handle(ctx, env)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.queue:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("event", ev.Name).Msg("failed to encode event")
				continue
			}

			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("client", c.id).Msg("websocket write failed")
				return
			}
		}
	}
}

// Close closes the connection once.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(code, reason); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("failed to close websocket")
		}
	})
}
