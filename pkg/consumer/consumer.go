// Package consumer maintains a live replica of the authority's path
// mapping by following the update stream.
//
// The client dials the authority, announces the last sequence number its
// replica applied, and folds every received update into the replica. On a
// sequence gap it reconnects announcing zero, forcing the server to lead
// with a full image that resets the replica.
package consumer

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/internal/protocol/stream"
	"github.com/karstio/pathsync/pkg/replica"
	"github.com/karstio/pathsync/pkg/update"
)

// reconnectDelay paces redial attempts after a broken connection.
const reconnectDelay = 2 * time.Second

// Client follows one authority's update stream.
type Client struct {
	addr    string
	replica *replica.Replica

	// forceResync makes the next hello announce zero so the server sends
	// a full image. Set after a detected gap.
	forceResync bool
}

// New creates a client with a fresh, unprimed replica.
func New(addr string) *Client {
	return &Client{
		addr:    addr,
		replica: replica.New(),
	}
}

// Replica exposes the accumulated state. Safe to read concurrently with a
// running client.
func (c *Client) Replica() *replica.Replica {
	return c.replica
}

// Run follows the stream until the context is cancelled, reconnecting on
// any connection failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.follow(ctx); err != nil {
			logger.Debug("Stream connection to %s ended: %v", c.addr, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// follow runs one connection: dial, hello, apply until it breaks.
func (c *Client) follow(ctx context.Context) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The watcher must not outlive this connection attempt: the reconnect
	// loop calls follow repeatedly, and a watcher blocked on ctx.Done()
	// alone would pile up one goroutine per attempt.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	hello := c.replica.SeqNum()
	if c.forceResync || !c.replica.Primed() {
		hello = 0
	}
	if err := stream.WriteHello(conn, hello); err != nil {
		return err
	}
	logger.Info("Following update stream from %s after seq=%d", c.addr, hello)

	for {
		payload, err := stream.ReadMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		u, err := update.Decode(payload)
		if err != nil {
			// A decode failure poisons the framing; resync from scratch.
			c.forceResync = true
			return err
		}

		if err := c.apply(u); err != nil {
			return err
		}
	}
}

func (c *Client) apply(u *update.PathsUpdate) error {
	err := c.replica.Apply(u)
	if err == nil {
		c.forceResync = false
		logger.Debug("Applied %s", u)
		return nil
	}

	var gap *replica.SequenceGapError
	if errors.As(err, &gap) {
		// Replica may be stale; a full image on the next connection
		// replaces it wholesale.
		logger.Warn("Sequence gap detected (%v), forcing full resync", gap)
		c.forceResync = true
	}
	return err
}
