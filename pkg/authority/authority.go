// Package authority builds and publishes path updates on behalf of the
// directory-authorization metadata authority.
//
// It is the producer half of the sync pipeline: callers hand it raw path
// strings grouped by authorizable object, it normalizes them, folds them
// into an update, commits the update to the changelog (which assigns the
// sequence number) and fans it out to connected consumers.
package authority

import (
	"context"
	"sync"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/pkg/metrics"
	"github.com/karstio/pathsync/pkg/paths"
	"github.com/karstio/pathsync/pkg/store/changelog"
	s3snap "github.com/karstio/pathsync/pkg/store/snapshot/s3"
	"github.com/karstio/pathsync/pkg/update"
)

// Publisher fans a committed update out to connected consumers.
// The stream server implements it; a nil publisher drops nothing on the
// floor except delivery, which consumers recover via the changelog.
type Publisher interface {
	Publish(*update.PathsUpdate)
}

// Config wires an Authority's collaborators.
type Config struct {
	// DefaultScheme resolves scheme-less raw paths, taken from the
	// configured default filesystem URI (required)
	DefaultScheme string

	// Log is the persistent change stream (required)
	Log *changelog.Log

	// Snapshots stores full images for consumer bootstrap (optional)
	Snapshots *s3snap.Store

	// Publisher delivers committed updates to live consumers (optional)
	Publisher Publisher

	// Metrics observes the pipeline (optional, nil = no-op)
	Metrics *metrics.SyncMetrics
}

// Authority normalizes raw paths and turns them into the ordered update
// stream consumers replicate.
//
// Updates are built and committed one at a time; concurrent callers are
// serialized by the changelog's append lock.
type Authority struct {
	defaultScheme string
	interner      *paths.Interner
	log           *changelog.Log
	snapshots     *s3snap.Store
	publisher     Publisher
	metrics       *metrics.SyncMetrics

	// mu holds append and fan-out together so concurrent publishers
	// cannot deliver updates to live consumers out of sequence order
	mu sync.Mutex
}

// New creates an Authority with its own component interning table.
func New(cfg Config) *Authority {
	return &Authority{
		defaultScheme: cfg.DefaultScheme,
		interner:      paths.NewInterner(),
		log:           cfg.Log,
		snapshots:     cfg.Snapshots,
		publisher:     cfg.Publisher,
		metrics:       cfg.Metrics,
	}
}

// PathDelta is one object's raw-path delta as reported by the metadata
// source, before normalization.
type PathDelta struct {
	// AuthzObj identifies the authorizable object, or update.AllPaths
	AuthzObj string

	// Added and Removed are raw path strings in any accepted form
	Added   []string
	Removed []string
}

// PublishDelta builds an incremental update from the given deltas, commits
// it and fans it out. Raw paths under foreign schemes are skipped silently;
// a malformed path fails the whole publish with *paths.MalformedPathError
// and nothing is committed.
func (a *Authority) PublishDelta(ctx context.Context, deltas []PathDelta) (*update.PathsUpdate, error) {
	return a.publish(ctx, update.New(0, false), deltas)
}

// PublishFullImage builds a full-image update: a complete replacement of
// consumer replica state. The update is also written to the snapshot store
// when one is configured, so late joiners can bootstrap without replaying
// the changelog from the beginning.
func (a *Authority) PublishFullImage(ctx context.Context, deltas []PathDelta) (*update.PathsUpdate, error) {
	return a.publish(ctx, update.New(0, true), deltas)
}

func (a *Authority) publish(ctx context.Context, u *update.PathsUpdate, deltas []PathDelta) (*update.PathsUpdate, error) {
	for _, delta := range deltas {
		change := u.NewPathChange(delta.AuthzObj)
		for _, raw := range delta.Added {
			p, ok, err := a.normalize(raw)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			change.AddPath(p)
		}
		for _, raw := range delta.Removed {
			p, ok, err := a.normalize(raw)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			change.RemovePath(p)
		}
	}

	seq, err := a.commit(u)
	if err != nil {
		return nil, err
	}

	if u.HasFullImage() && a.snapshots != nil {
		// The update is already durable in the changelog; a snapshot
		// upload failure costs bootstrap convenience, not correctness.
		if err := a.snapshots.Put(ctx, u); err != nil {
			logger.Warn("Snapshot upload failed for seq=%d: %v", seq, err)
		}
	}
	return u, nil
}

// commit appends the update and fans it out under one lock. Sequence
// numbers are assigned inside Append; fanning out inside the same critical
// section keeps live delivery in that order when publishers run
// concurrently.
func (a *Authority) commit(u *update.PathsUpdate) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seq, err := a.log.Append(u)
	if err != nil {
		return 0, err
	}
	a.metrics.UpdateAppended(u.HasFullImage(), seq)
	logger.Debug("Committed %s", u)

	if a.publisher != nil {
		a.publisher.Publish(u)
	}
	return seq, nil
}

// normalize canonicalizes one raw path, recording the outcome.
func (a *Authority) normalize(raw string) (paths.CanonicalPath, bool, error) {
	p, ok, err := paths.Normalize(raw, a.defaultScheme, a.interner)
	switch {
	case err != nil:
		a.metrics.PathNormalized("malformed")
	case !ok:
		a.metrics.PathNormalized("skipped")
		logger.Debug("Skipping out-of-scope path %q", raw)
	default:
		a.metrics.PathNormalized("ok")
	}
	return p, ok, err
}

// LastSeq returns the changelog's highest assigned sequence number.
func (a *Authority) LastSeq() uint64 {
	return a.log.LastSeq()
}
