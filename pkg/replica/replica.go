// Package replica maintains a consumer-side copy of the authority's
// object-to-path mapping by applying updates in sequence order.
//
// A replica starts empty and unprimed: it accepts only a full image until it
// has one, then applies deltas with strictly contiguous sequence numbers.
// Any gap makes the replica possibly stale; the applier reports it instead
// of drifting silently, and the caller is expected to request a fresh full
// image from the authority.
package replica

import (
	"sort"
	"strings"
	"sync"

	"github.com/karstio/pathsync/pkg/paths"
	"github.com/karstio/pathsync/pkg/update"
)

// Replica is the accumulated path state for one consumer.
//
// Safe for concurrent use: Apply takes the write lock, readers take the
// read lock.
type Replica struct {
	mu sync.RWMutex

	// seq is the sequence number of the last applied update
	seq uint64

	// primed is set once a full image has been applied. Deltas received
	// before that cannot be anchored to any state and are rejected.
	primed bool

	// objects maps authorizable object id to its path set. The
	// update.AllPaths sentinel keys the replica-wide set published by
	// full images.
	objects map[string]map[string]paths.CanonicalPath
}

// New creates an empty, unprimed replica.
func New() *Replica {
	return &Replica{
		objects: make(map[string]map[string]paths.CanonicalPath),
	}
}

// SeqNum returns the sequence number of the last applied update, zero if
// nothing has been applied yet.
func (r *Replica) SeqNum() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seq
}

// Primed reports whether a full image has been applied.
func (r *Replica) Primed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primed
}

// Apply folds one update into the replica.
//
// A full image discards all prior state for the replica and replaces it with
// exactly the update's contents, regardless of the replica's current
// sequence number. A delta must carry the next contiguous sequence number;
// anything else fails with *SequenceGapError and leaves the replica
// untouched, signalling the caller to resync.
func (r *Replica) Apply(u *update.PathsUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.HasFullImage() {
		r.objects = make(map[string]map[string]paths.CanonicalPath)
		r.applyChanges(u)
		r.seq = u.SeqNum()
		r.primed = true
		return nil
	}

	if !r.primed || u.SeqNum() != r.seq+1 {
		return &SequenceGapError{Applied: r.seq, Received: u.SeqNum(), Primed: r.primed}
	}

	r.applyChanges(u)
	r.seq = u.SeqNum()
	return nil
}

// applyChanges folds the update's deltas in insertion order. Order matters:
// a later change may remove a path an earlier change in the same update
// added. Caller holds the write lock.
func (r *Replica) applyChanges(u *update.PathsUpdate) {
	for _, change := range u.PathChanges() {
		set := r.objects[change.AuthzObj]
		if set == nil {
			set = make(map[string]paths.CanonicalPath)
			r.objects[change.AuthzObj] = set
		}
		for _, p := range change.AddedPaths {
			set[pathKey(p)] = paths.CanonicalPath(p)
		}
		for _, p := range change.RemovedPaths {
			delete(set, pathKey(p))
		}
		if len(set) == 0 {
			delete(r.objects, change.AuthzObj)
		}
	}
}

// PathsFor returns the paths associated with one authorizable object,
// sorted for deterministic iteration. The update.AllPaths sentinel returns
// the replica-wide set.
func (r *Replica) PathsFor(authzObj string) []paths.CanonicalPath {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedPaths(r.objects[authzObj])
}

// Paths returns the union of every object's paths, sorted.
func (r *Replica) Paths() []paths.CanonicalPath {
	r.mu.RLock()
	defer r.mu.RUnlock()

	union := make(map[string]paths.CanonicalPath)
	for _, set := range r.objects {
		for key, p := range set {
			union[key] = p
		}
	}
	return sortedPaths(union)
}

// Contains reports whether any object is associated with the given path.
func (r *Replica) Contains(p paths.CanonicalPath) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := pathKey(p)
	for _, set := range r.objects {
		if _, ok := set[key]; ok {
			return true
		}
	}
	return false
}

// Objects returns the known authorizable object ids, sorted. The
// update.AllPaths sentinel is included when a replica-wide set exists.
func (r *Replica) Objects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// pathKey flattens components into a map key. Components cannot contain a
// separator (normalization split on it), so the join is unambiguous.
func pathKey(p []string) string {
	return strings.Join(p, "/")
}

func sortedPaths(set map[string]paths.CanonicalPath) []paths.CanonicalPath {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]paths.CanonicalPath, len(keys))
	for i, key := range keys {
		out[i] = set[key]
	}
	return out
}
