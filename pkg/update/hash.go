package update

import (
	"encoding/binary"
	"hash/fnv"
)

// Hash returns a stable 64-bit hash consistent with Equal: structurally
// equal updates hash identically, including an update that went through an
// encode/decode round trip.
//
// The hash folds a length-prefixed canonical stream so component boundaries
// stay unambiguous ("ab","c" never collides with "a","bc").
func (u *PathsUpdate) Hash() uint64 {
	h := fnv.New64a()
	var scratch [8]byte

	binary.BigEndian.PutUint64(scratch[:], u.seqNum)
	h.Write(scratch[:])
	if u.hasFullImage {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	writeString := func(s string) {
		binary.BigEndian.PutUint64(scratch[:], uint64(len(s)))
		h.Write(scratch[:])
		h.Write([]byte(s))
	}
	writePathList := func(paths [][]string) {
		binary.BigEndian.PutUint64(scratch[:], uint64(len(paths)))
		h.Write(scratch[:])
		for _, path := range paths {
			binary.BigEndian.PutUint64(scratch[:], uint64(len(path)))
			h.Write(scratch[:])
			for _, component := range path {
				writeString(component)
			}
		}
	}

	for _, change := range u.changes {
		writeString(change.AuthzObj)
		writePathList(change.AddedPaths)
		writePathList(change.RemovedPaths)
	}
	return h.Sum64()
}
