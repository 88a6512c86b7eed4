package changelog

import "encoding/binary"

// Database Key Namespace Design
// =============================
//
// BadgerDB is a key-value store, so the changelog uses prefixed keys to keep
// its record types apart and its scans cheap:
//
// Data Type            Prefix  Key Format       Value Type
// =====================================================================
// Encoded updates      "u:"    u:<seq:8 BE>     XDR-encoded PathsUpdate
// Latest full image    "m:"    m:lastfull       seq (8 bytes, big-endian)
//
// Sequence numbers are stored big-endian so lexicographic key order equals
// numeric order: range scans walk the change stream in sequence order and a
// reverse iterator lands on the newest update first.
var (
	updatePrefix       = []byte("u:")
	latestFullImageKey = []byte("m:lastfull")
)

// updateKey builds the storage key for one sequence number.
func updateKey(seq uint64) []byte {
	key := make([]byte, len(updatePrefix)+8)
	copy(key, updatePrefix)
	binary.BigEndian.PutUint64(key[len(updatePrefix):], seq)
	return key
}

// seqFromKey recovers the sequence number from a storage key.
func seqFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(updatePrefix):])
}

func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
