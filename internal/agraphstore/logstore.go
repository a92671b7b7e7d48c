package agraphstore

import (
	"github.com/dgraph-io/badger/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// LogStore is the durable record of every LogEntry this instance has ever
// seen, backed by an embedded Badger database opened with synchronous
// writes so a successful Put has survived an fsync before it returns.
type LogStore[N any, E any, K Key] struct {
	db *badger.DB
}

// OpenLogStore opens (creating if necessary) a Badger database at path. An
// empty path opens an in-memory database, used by tests that don't need
// the data to outlive the process.
func OpenLogStore[N any, E any, K Key](path string) (*LogStore[N, E, K], error) {
	opts := badger.DefaultOptions(path).WithSyncWrites(true).WithLogger(nil)

	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(ErrFileLoadError, err.Error())
	}

	return &LogStore[N, E, K]{db: db}, nil
}

// Close releases the underlying Badger database.
func (s *LogStore[N, E, K]) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(ErrFileSaveError, err.Error())
	}
	return nil
}

// Append inserts entry uncommitted. It fails with ErrWriteLogError if a row
// for entry.Hash already exists — append is a true insert, not an upsert,
// so a second local Propose of an already-proposed hash is caught here
// instead of silently clobbering whatever committed state it already has.
func (s *LogStore[N, E, K]) Append(entry LogEntry[N, E, K]) error {
	entry.Committed = false

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(entry.Hash))
		if err == nil {
			return errors.Wrap(ErrWriteLogError, "hash already present")
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrap(ErrWriteLogError, err.Error())
		}

		encoded, err := cbor.Marshal(entry)
		if err != nil {
			return errors.Wrap(ErrSerde, err.Error())
		}

		return txn.Set([]byte(entry.Hash), encoded)
	})
}

// Commit upserts entry with Committed set to true. If no row exists for
// entry.Hash yet, one is inserted already committed — this is how a
// remote-originated mutation, which never goes through Append, lands. If a
// row already exists, only its Committed flag flips; the mutation payload
// it already carries (identical by construction, since equal hashes always
// carry equal payloads) is left untouched.
func (s *LogStore[N, E, K]) Commit(entry LogEntry[N, E, K]) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entry.Hash))
		if err != nil {
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return errors.Wrap(ErrWriteLogError, err.Error())
			}

			entry.Committed = true

			encoded, err := cbor.Marshal(entry)
			if err != nil {
				return errors.Wrap(ErrSerde, err.Error())
			}

			return txn.Set([]byte(entry.Hash), encoded)
		}

		var existing LogEntry[N, E, K]
		if err := item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &existing)
		}); err != nil {
			return errors.Wrap(ErrSerde, err.Error())
		}

		existing.Committed = true

		encoded, err := cbor.Marshal(existing)
		if err != nil {
			return errors.Wrap(ErrSerde, err.Error())
		}

		return txn.Set([]byte(entry.Hash), encoded)
	})
}

// Get looks up the LogEntry stored at hash. The second return value is
// false if no entry exists for that hash.
func (s *LogStore[N, E, K]) Get(hash string) (LogEntry[N, E, K], bool, error) {
	var entry LogEntry[N, E, K]
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(ErrFileLoadError, err.Error())
		}

		found = true

		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &entry)
		})
	})

	return entry, found, err
}

// All returns every LogEntry currently stored, in undefined order. Callers
// that need a deterministic order (catch-up replay) sort the result
// themselves.
func (s *LogStore[N, E, K]) All() ([]LogEntry[N, E, K], error) {
	var entries []LogEntry[N, E, K]

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var entry LogEntry[N, E, K]
			if err := item.Value(func(val []byte) error {
				return cbor.Unmarshal(val, &entry)
			}); err != nil {
				return errors.Wrap(ErrFileDecodeError, err.Error())
			}

			entries = append(entries, entry)
		}

		return nil
	})

	return entries, err
}
