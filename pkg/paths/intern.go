package paths

import "sync"

// Interner is a process-owned canonicalization table for path components.
//
// Large snapshots repeat the same segment names (database names, partition
// keys) across millions of paths. Interning guarantees structurally equal
// components share one backing string, bounding memory for high-cardinality
// trees built from normalized paths.
//
// Safe for concurrent use.
type Interner struct {
	mu    sync.RWMutex
	table map[string]string
}

// NewInterner creates an empty canonicalization table.
func NewInterner() *Interner {
	return &Interner{table: make(map[string]string)}
}

// Intern returns the canonical instance of s, registering it on first use.
// The returned string is equal to s; repeated calls with equal values return
// the same instance.
func (in *Interner) Intern(s string) string {
	in.mu.RLock()
	canonical, ok := in.table[s]
	in.mu.RUnlock()
	if ok {
		return canonical
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if canonical, ok := in.table[s]; ok {
		return canonical
	}
	in.table[s] = s
	return s
}

// Len returns the number of distinct components in the table.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.table)
}
