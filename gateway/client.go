package gateway

import (
	"context"
	"sync"
	"time"

	"roulette/auth"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

const (
	sendBufferSize = 64
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// Client is one websocket connection. Guests have a zero account id.
type Client struct {
	id       uuid.UUID
	identity auth.Identity
	send     chan []byte

	closeOnce sync.Once
	closeSlow func()
}

func newClient(identity auth.Identity, closeSlow func()) *Client {
	return &Client{
		id:        uuid.New(),
		identity:  identity,
		send:      make(chan []byte, sendBufferSize),
		closeSlow: closeSlow,
	}
}

// ID is the connection id used in logs
func (c *Client) ID() string {
	return c.id.String()
}

// AccountID is zero for guests
func (c *Client) AccountID() int64 {
	return c.identity.AccountID
}

// Authenticated reports whether the connection carries an identity
func (c *Client) Authenticated() bool {
	return c.identity.AccountID != 0
}

// Enqueue queues a message without blocking. A connection whose buffer is
// full is closed instead of stalling the sender.
func (c *Client) Enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.closeOnce.Do(func() {
			log.WithFields(log.Fields{
				"connectionID": c.ID(),
				"accountID":    c.AccountID(),
			}).Warn("Dropping slow connection")
			if c.closeSlow != nil {
				go c.closeSlow()
			}
		})
	}
}

// writePump drains the send buffer into the connection until ctx ends
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.send:
			if err := writeWithTimeout(ctx, conn, msg); err != nil {
				return err
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func writeWithTimeout(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
