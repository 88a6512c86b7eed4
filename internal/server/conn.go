package server

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/internal/protocol/stream"
	"github.com/karstio/pathsync/pkg/store/changelog"
	"github.com/karstio/pathsync/pkg/update"
)

type conn struct {
	server *StreamServer
	conn   net.Conn

	// id names the consumer session in logs and the subscription table
	id string

	// lastSent suppresses duplicates across the catch-up/live boundary:
	// an update can arrive on the live queue while it is also still part
	// of the changelog range being replayed.
	lastSent uint64
}

func (c *conn) serve(ctx context.Context) {
	defer c.conn.Close()

	c.id = uuid.NewString()
	logger.Debug("Consumer %s connected from %s", c.id, c.conn.RemoteAddr())

	c.server.metrics.ConsumerConnected()
	defer c.server.metrics.ConsumerDisconnected()

	clientSeq, err := stream.ReadHello(c.conn)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Debug("Consumer %s handshake failed: %v", c.id, err)
		}
		return
	}
	logger.Debug("Consumer %s resuming after seq=%d", c.id, clientSeq)

	// Subscribe before replaying the backlog so no update committed during
	// the replay can be missed; lastSent filters the overlap.
	live := c.server.subscribe(c.id)
	defer c.server.unsubscribe(c.id)

	if err := c.catchUp(ctx, clientSeq); err != nil {
		logger.Debug("Consumer %s catch-up failed: %v", c.id, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-live:
			if !ok {
				// Dropped by Publish for falling behind
				return
			}
			if err := c.send(u); err != nil {
				logger.Debug("Consumer %s send failed: %v", c.id, err)
				return
			}
		}
	}
}

// catchUp replays the changelog from the consumer's position, leading with
// a full image when plain delta replay cannot anchor: a fresh replica
// (hello zero) has no state for a delta to extend, and a consumer whose
// next update was trimmed away cannot cover the gap. The image resets the
// replica, so replay resumes from its sequence number.
func (c *conn) catchUp(ctx context.Context, clientSeq uint64) error {
	log := c.server.log

	resumeFrom := clientSeq
	if log.LastSeq() > clientSeq && c.needsFullImage(clientSeq) {
		full, err := c.latestFullImage(ctx)
		if err != nil {
			return err
		}
		// A nil image means neither the changelog nor the snapshot store
		// has one yet; stream whatever the log holds.
		if full != nil && full.SeqNum() > clientSeq {
			if err := c.send(full); err != nil {
				return err
			}
			resumeFrom = full.SeqNum()
		}
	}

	for {
		batch, err := c.server.log.After(resumeFrom, subscriberBuffer)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		for _, u := range batch {
			if err := c.send(u); err != nil {
				return err
			}
		}
		resumeFrom = batch[len(batch)-1].SeqNum()
	}
}

// needsFullImage reports whether delta replay alone cannot bring this
// consumer up to date.
func (c *conn) needsFullImage(clientSeq uint64) bool {
	if clientSeq == 0 {
		// A fresh or resyncing replica rejects any delta until it has a
		// full image, even when the log still holds every update.
		return true
	}
	_, err := c.server.log.Get(clientSeq + 1)
	return errors.Is(err, changelog.ErrNotFound)
}

// latestFullImage fetches the newest full image, preferring the changelog
// and falling back to the snapshot store. Returns nil, nil when neither
// has one.
func (c *conn) latestFullImage(ctx context.Context) (*update.PathsUpdate, error) {
	full, err := c.server.log.LatestFullImage()
	if err == nil {
		return full, nil
	}
	if !errors.Is(err, changelog.ErrNotFound) {
		return nil, err
	}
	if c.server.snapshots == nil {
		return nil, nil
	}
	return c.server.snapshots.Latest(ctx)
}

// send encodes and frames one update, skipping anything already delivered.
func (c *conn) send(u *update.PathsUpdate) error {
	if u.SeqNum() <= c.lastSent {
		return nil
	}

	data, err := u.Encode()
	if err != nil {
		return err
	}
	if err := stream.WriteMessage(c.conn, data); err != nil {
		return err
	}

	c.lastSent = u.SeqNum()
	c.server.metrics.UpdateStreamed()
	return nil
}
