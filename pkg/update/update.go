// Package update defines the unit of change an authorization authority
// publishes to downstream path consumers.
//
// A PathsUpdate carries a monotonically increasing sequence number, a
// full-image flag and an ordered list of per-object path deltas. Consumers
// apply updates in sequence order; a full-image update replaces the whole
// replica instead of augmenting it.
//
// Updates are built on a single goroutine (construct, attach changes, assign
// the sequence number) and treated as immutable once encoded. Encoded updates
// are safe for unsynchronized concurrent reads.
package update

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// AllPaths is the reserved authorizable object id meaning "every object".
// Full-image updates use it to publish a whole-of-replica path set rather
// than a per-object one.
const AllPaths = "__ALL_PATHS__"

// PathChange records the canonical paths added to and removed from a single
// authorizable object within one update.
//
// The same object id may appear in many updates; it is not required to be
// unique within one update either. Paths are ordered component lists with
// scheme and authority already stripped (see pkg/paths).
type PathChange struct {
	// AuthzObj identifies the authorizable object (table, partition, ...)
	// this delta affects. May be AllPaths.
	AuthzObj string

	// AddedPaths are the canonical paths to associate with the object,
	// in insertion order.
	AddedPaths [][]string

	// RemovedPaths are the canonical paths to disassociate, in insertion
	// order.
	RemovedPaths [][]string
}

// AddPath appends a canonical path to the change's added list.
// Returns the change so calls can be chained while building an update.
func (c *PathChange) AddPath(path []string) *PathChange {
	c.AddedPaths = append(c.AddedPaths, path)
	return c
}

// RemovePath appends a canonical path to the change's removed list.
func (c *PathChange) RemovePath(path []string) *PathChange {
	c.RemovedPaths = append(c.RemovedPaths, path)
	return c
}

// Equal reports whether two changes are structurally equal: same object id
// and element-wise equal added/removed path sequences, in order.
// A nil path list and an empty one compare equal, so a decoded change
// compares equal to the one that was encoded.
func (c *PathChange) Equal(other *PathChange) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.AuthzObj != other.AuthzObj {
		return false
	}
	return pathListsEqual(c.AddedPaths, other.AddedPaths) &&
		pathListsEqual(c.RemovedPaths, other.RemovedPaths)
}

func pathListsEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}

// PathsUpdate is one unit of change in the authority's global change stream.
//
// The zero sequence number means "not yet assigned": the changelog assigns
// the real number at append time via SetSeqNum.
type PathsUpdate struct {
	seqNum       uint64
	hasFullImage bool
	changes      []*PathChange
}

// New constructs an empty update with no path changes attached.
func New(seqNum uint64, hasFullImage bool) *PathsUpdate {
	return &PathsUpdate{
		seqNum:       seqNum,
		hasFullImage: hasFullImage,
	}
}

// NewPathChange allocates an empty change for authzObj, links it into the
// update's ordered change list and returns it. The returned change is
// already attached; callers only append paths to it, there is no separate
// attach step to forget.
func (u *PathsUpdate) NewPathChange(authzObj string) *PathChange {
	change := &PathChange{AuthzObj: authzObj}
	u.changes = append(u.changes, change)
	return change
}

// SeqNum returns the update's position in the authority's change stream.
func (u *PathsUpdate) SeqNum() uint64 {
	return u.seqNum
}

// SetSeqNum assigns the sequence number. Legal any time before the update
// is encoded or published; typically called when committing to the changelog.
func (u *PathsUpdate) SetSeqNum(seqNum uint64) {
	u.seqNum = seqNum
}

// HasFullImage reports whether this update is a complete replacement of the
// consumer replica rather than an increment.
func (u *PathsUpdate) HasFullImage() bool {
	return u.hasFullImage
}

// PathChanges returns the attached deltas in insertion order. The returned
// slice is the update's own backing store; callers must not mutate it after
// the update has been published.
func (u *PathsUpdate) PathChanges() []*PathChange {
	return u.changes
}

// Equal reports structural equality: same sequence number, same full-image
// flag and element-wise equal change lists, in order.
func (u *PathsUpdate) Equal(other *PathsUpdate) bool {
	if u == nil || other == nil {
		return u == other
	}
	if u.seqNum != other.seqNum || u.hasFullImage != other.hasFullImage {
		return false
	}
	if len(u.changes) != len(other.changes) {
		return false
	}
	for i := range u.changes {
		if !u.changes[i].Equal(other.changes[i]) {
			return false
		}
	}
	return true
}

// String renders the update for logs and debugging.
func (u *PathsUpdate) String() string {
	return fmt.Sprintf("PathsUpdate(seq=%d full=%t changes=%d)",
		u.seqNum, u.hasFullImage, len(u.changes))
}

// wireUpdate is the XDR wire shape. Field order is the wire order and must
// not change: hasFullImage, seqNum, pathChanges.
type wireUpdate struct {
	HasFullImage bool
	SeqNum       uint64
	PathChanges  []wirePathChange
}

type wirePathChange struct {
	AuthzObj     string
	AddedPaths   [][]string
	RemovedPaths [][]string
}

// Encode serializes the update with the XDR codec.
// Fails with a *CodecError when the update cannot be serialized.
func (u *PathsUpdate) Encode() ([]byte, error) {
	wire := wireUpdate{
		HasFullImage: u.hasFullImage,
		SeqNum:       u.seqNum,
		PathChanges:  make([]wirePathChange, len(u.changes)),
	}
	for i, change := range u.changes {
		wire.PathChanges[i] = wirePathChange{
			AuthzObj:     change.AuthzObj,
			AddedPaths:   change.AddedPaths,
			RemovedPaths: change.RemovedPaths,
		}
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &wire); err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// Decode reconstructs an update from its encoded form. The result is
// structurally equal to the update that was encoded.
// Fails with a *CodecError on malformed input.
func Decode(data []byte) (*PathsUpdate, error) {
	var wire wireUpdate
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &wire); err != nil {
		return nil, &CodecError{Op: "decode", Err: err}
	}

	u := New(wire.SeqNum, wire.HasFullImage)
	for _, wc := range wire.PathChanges {
		change := u.NewPathChange(wc.AuthzObj)
		change.AddedPaths = wc.AddedPaths
		change.RemovedPaths = wc.RemovedPaths
	}
	return u, nil
}
