package replica

import "fmt"

// SequenceGapError reports an update that cannot be anchored to the
// replica's current state: a non-contiguous sequence number, or a delta
// arriving before any full image. The replica is left unchanged; the caller
// must request a fresh full image from the authority.
type SequenceGapError struct {
	// Applied is the sequence number of the last applied update
	Applied uint64

	// Received is the sequence number of the rejected update
	Received uint64

	// Primed reports whether the replica had a full image at all
	Primed bool
}

// Error implements the error interface.
func (e *SequenceGapError) Error() string {
	if !e.Primed {
		return fmt.Sprintf("replica has no full image yet, cannot apply delta seq=%d", e.Received)
	}
	return fmt.Sprintf("sequence gap: last applied seq=%d, received seq=%d", e.Applied, e.Received)
}
