// Package changelog persists the authority's ordered change stream in
// BadgerDB.
//
// The changelog owns sequence number assignment: Append stamps each update
// with the next number at commit time, so numbers are unique, contiguous
// and totally ordered per authority even across restarts. Consumers that
// fall behind resume with After; consumers whose gap reaches past the
// retention horizon bootstrap from the latest full image.
package changelog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/pkg/update"
)

// ErrNotFound indicates the requested sequence number is not in the log,
// either because it was never assigned or because it was trimmed.
var ErrNotFound = errors.New("changelog: sequence number not found")

// Log is a persistent, ordered record of every update the authority has
// published.
//
// Appends are serialized by a mutex; reads run on Badger's MVCC snapshots
// and need no locking against appenders.
type Log struct {
	db *badger.DB

	// mu serializes sequence number assignment across appenders
	mu sync.Mutex

	// lastSeq is the highest assigned sequence number, recovered from the
	// store at open time
	lastSeq uint64
}

// Open opens (or creates) a changelog in dir.
func Open(dir string) (*Log, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open changelog at %s: %w", dir, err)
	}

	log := &Log{db: db}
	if err := log.recoverLastSeq(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Changelog opened at %s, last seq=%d", dir, log.lastSeq)
	return log, nil
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.db.Close()
}

// recoverLastSeq walks the update namespace backwards to find the newest
// assigned sequence number.
func (l *Log) recoverLastSeq() error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek to the largest possible update key; the reverse iterator
		// lands on the newest assigned one, if any exist.
		for it.Seek(updateKey(^uint64(0))); it.ValidForPrefix(updatePrefix); it.Next() {
			l.lastSeq = seqFromKey(it.Item().Key())
			return nil
		}
		return nil
	})
}

// Append assigns the next sequence number to u, encodes it and commits it
// to the log. Returns the assigned number. The update must not be mutated
// after a successful append.
func (l *Log) Append(u *update.PathsUpdate) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The candidate number is only assigned if the commit succeeds; on
	// failure the update keeps its previous number so the caller never
	// holds a sequence number the log did not hand out.
	prev := u.SeqNum()
	seq := l.lastSeq + 1
	u.SetSeqNum(seq)

	data, err := u.Encode()
	if err != nil {
		u.SetSeqNum(prev)
		return 0, err
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(updateKey(seq), data); err != nil {
			return err
		}
		if u.HasFullImage() {
			return txn.Set(latestFullImageKey, encodeSeq(seq))
		}
		return nil
	})
	if err != nil {
		u.SetSeqNum(prev)
		return 0, fmt.Errorf("append seq=%d: %w", seq, err)
	}

	l.lastSeq = seq
	return seq, nil
}

// LastSeq returns the highest assigned sequence number, zero for an empty
// log.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Get returns the update stored under seq, or ErrNotFound.
func (l *Log) Get(seq uint64) (*update.PathsUpdate, error) {
	var u *update.PathsUpdate
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(updateKey(seq))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			u, err = update.Decode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// After returns up to limit updates with sequence numbers strictly greater
// than seq, in ascending order. A limit of zero or less means no limit.
func (l *Log) After(seq uint64, limit int) ([]*update.PathsUpdate, error) {
	var updates []*update.PathsUpdate
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(updateKey(seq + 1)); it.ValidForPrefix(updatePrefix); it.Next() {
			if limit > 0 && len(updates) >= limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				u, err := update.Decode(val)
				if err != nil {
					return err
				}
				updates = append(updates, u)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// LatestFullImageSeq returns the sequence number of the newest full-image
// update, or ErrNotFound if none has been appended.
func (l *Log) LatestFullImageSeq() (uint64, error) {
	var seq uint64
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(latestFullImageKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// LatestFullImage returns the newest full-image update, or ErrNotFound.
func (l *Log) LatestFullImage() (*update.PathsUpdate, error) {
	seq, err := l.LatestFullImageSeq()
	if err != nil {
		return nil, err
	}
	return l.Get(seq)
}

// Trim drops every update older than the latest full image. A consumer can
// always bootstrap from that image, so earlier deltas only cost disk.
// Returns the number of updates removed.
func (l *Log) Trim() (int, error) {
	horizon, err := l.LatestFullImageSeq()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var doomed [][]byte
	err = l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(updateKey(0)); it.ValidForPrefix(updatePrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if seqFromKey(key) >= horizon {
				break
			}
			doomed = append(doomed, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := l.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range doomed {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("trim: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("trim: %w", err)
	}

	if len(doomed) > 0 {
		logger.Debug("Trimmed %d updates below full-image seq=%d", len(doomed), horizon)
	}
	return len(doomed), nil
}
