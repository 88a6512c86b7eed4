// Package server streams committed path updates to downstream consumers
// over TCP.
//
// The wire protocol is deliberately small: length-prefixed frames carrying
// XDR-encoded updates. A consumer opens a connection, announces the last
// sequence number it applied, and the server replays the backlog from the
// changelog before switching the connection to live fan-out. A consumer
// whose backlog has been trimmed away gets the latest full image first;
// applying it resets the replica, so nothing older is needed.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/internal/ratelimiter"
	"github.com/karstio/pathsync/pkg/metrics"
	"github.com/karstio/pathsync/pkg/store/changelog"
	"github.com/karstio/pathsync/pkg/update"
)

// subscriberBuffer bounds the per-consumer fan-out queue. A consumer that
// stalls past it is disconnected and resumes via the changelog on
// reconnect.
const subscriberBuffer = 64

// SnapshotSource serves the newest stored full image, nil when none exists.
// The S3 snapshot store implements it; the server falls back to it when the
// changelog itself holds no full image a consumer could bootstrap from.
type SnapshotSource interface {
	Latest(ctx context.Context) (*update.PathsUpdate, error)
}

// Config wires a StreamServer's collaborators.
type Config struct {
	// Addr is the TCP listen address (required)
	Addr string

	// Log is the persistent change stream (required)
	Log *changelog.Log

	// Snapshots serves full images the changelog no longer has (optional)
	Snapshots SnapshotSource

	// Metrics observes consumer sessions (optional, nil = no-op)
	Metrics *metrics.SyncMetrics

	// AcceptRate bounds incoming connections per second, zero = unlimited
	AcceptRate uint
}

// StreamServer accepts consumer connections and fans out committed updates.
type StreamServer struct {
	addr      string
	log       *changelog.Log
	snapshots SnapshotSource
	metrics   *metrics.SyncMetrics
	limiter   *ratelimiter.RateLimiter
	listener  net.Listener

	mu   sync.Mutex
	subs map[string]chan *update.PathsUpdate
}

// New creates a stream server over the given changelog.
func New(cfg Config) *StreamServer {
	return &StreamServer{
		addr:      cfg.Addr,
		log:       cfg.Log,
		snapshots: cfg.Snapshots,
		metrics:   cfg.Metrics,
		limiter:   ratelimiter.New(cfg.AcceptRate, cfg.AcceptRate),
		subs:      make(map[string]chan *update.PathsUpdate),
	}
}

// Publish hands a freshly committed update to every connected consumer.
// Implements authority.Publisher. Never blocks the authority: a consumer
// whose queue is full is dropped and will resync from the changelog.
func (s *StreamServer) Publish(u *update.PathsUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- u:
		default:
			logger.Warn("Consumer %s too slow, dropping subscription", id)
			close(ch)
			delete(s.subs, id)
		}
	}
}

// Serve accepts connections until the context is cancelled.
func (s *StreamServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	logger.Info("Update stream server listening on %s", listener.Addr())

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logger.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		if !s.limiter.Allow() {
			logger.Warn("Connection from %s rejected, accept rate exceeded", tcpConn.RemoteAddr())
			tcpConn.Close()
			continue
		}

		conn := s.newConn(tcpConn)
		go conn.serve(ctx)
	}
}

func (s *StreamServer) newConn(tcpConn net.Conn) *conn {
	return &conn{
		server: s,
		conn:   tcpConn,
	}
}

// Addr returns the bound listener address, empty until Serve has started
// listening. Useful when listening on an ephemeral port.
func (s *StreamServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener.
func (s *StreamServer) Stop() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		return listener.Close()
	}
	return nil
}

// subscribe registers a fan-out queue under the session id.
func (s *StreamServer) subscribe(id string) chan *update.PathsUpdate {
	ch := make(chan *update.PathsUpdate, subscriberBuffer)
	s.mu.Lock()
	s.subs[id] = ch
	s.mu.Unlock()
	return ch
}

// unsubscribe drops the session's queue if it is still registered (Publish
// may already have dropped a stalled consumer).
func (s *StreamServer) unsubscribe(id string) {
	s.mu.Lock()
	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
}
