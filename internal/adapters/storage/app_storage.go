package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/eleven-am/weft/internal/domain"
	"github.com/eleven-am/weft/internal/ports"
)

const (
	versionPrefix       = "v:"
	maxTxnConflictRetry = 5
)

// AppStorage is the badger backed StoragePort. Every value key has a
// sidecar "v:<key>" entry carrying its version.
type AppStorage struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ ports.StoragePort = (*AppStorage)(nil)

func NewAppStorage(db *badger.DB, logger *slog.Logger) *AppStorage {
	if logger == nil {
		logger = slog.Default()
	}

	return &AppStorage{
		db:     db,
		logger: logger.With("component", "app-storage"),
	}
}

func (s *AppStorage) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &domain.StorageError{Type: domain.ErrClosed, Message: "storage is closed"}
	}
	return nil
}

func (s *AppStorage) Get(key string) (value []byte, version int64, exists bool, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, 0, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		value, version, exists, err = readVersioned(txn, key)
		return err
	})

	return value, version, exists, err
}

func (s *AppStorage) Put(key string, value []byte, version int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		return writeVersioned(txn, key, value, version)
	})
}

func (s *AppStorage) Delete(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.update(func(txn *badger.Txn) error {
		return deleteVersioned(txn, key)
	})
}

func (s *AppStorage) Exists(key string) (bool, error) {
	_, _, exists, err := s.Get(key)
	return exists, err
}

func (s *AppStorage) BatchWrite(ops []ports.WriteOp) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	for _, op := range ops {
		if op.Type != ports.OpPut && op.Type != ports.OpDelete {
			return domain.ErrInvalidInput
		}
	}

	return s.update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			switch op.Type {
			case ports.OpPut:
				err = writeVersioned(txn, op.Key, op.Value, op.Version)
			case ports.OpDelete:
				err = deleteVersioned(txn, op.Key)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *AppStorage) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var results []ports.KeyValueVersion

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if isMetadataKey(key) {
				continue
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			version, err := readVersion(txn, key)
			if err != nil {
				return err
			}

			results = append(results, ports.KeyValueVersion{
				Key:     key,
				Value:   value,
				Version: version,
			})
		}

		return nil
	})

	return results, err
}

// ListKeysByPrefix returns keys in ascending order, skipping offset keys and
// returning at most limit (limit <= 0 means no limit).
func (s *AppStorage) ListKeysByPrefix(prefix string, offset, limit int) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if isMetadataKey(key) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			keys = append(keys, key)
			if limit > 0 && len(keys) >= limit {
				break
			}
		}
		return nil
	})

	return keys, err
}

func (s *AppStorage) CountPrefix(prefix string) (count int, err error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if isMetadataKey(string(it.Item().Key())) {
				continue
			}
			count++
		}
		return nil
	})

	return count, err
}

// RunInTransaction runs fn in a read-write transaction, retrying when badger
// reports a conflict with a concurrent writer.
func (s *AppStorage) RunInTransaction(fn func(tx ports.Transaction) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxnConflictRetry; attempt++ {
		err = s.runOnce(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying", "attempt", attempt+1)
	}

	return &domain.StorageError{
		Type:    domain.ErrTransactionConflict,
		Message: fmt.Sprintf("transaction failed after %d attempts", maxTxnConflictRetry),
		Err:     err,
	}
}

func (s *AppStorage) runOnce(fn func(tx ports.Transaction) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&transaction{txn: txn}); err != nil {
		return err
	}

	return txn.Commit()
}

func (s *AppStorage) update(fn func(txn *badger.Txn) error) error {
	err := s.db.Update(fn)
	if err != nil {
		s.logger.Error("badger update failed", "error", err)
	}
	return err
}

func (s *AppStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return &domain.StorageError{Type: domain.ErrClosed, Message: "storage already closed"}
	}

	s.closed = true
	return s.db.Close()
}

type transaction struct {
	txn *badger.Txn
}

func (t *transaction) Get(key string) (value []byte, version int64, exists bool, err error) {
	return readVersioned(t.txn, key)
}

func (t *transaction) Put(key string, value []byte, version int64) error {
	return writeVersioned(t.txn, key, value, version)
}

func (t *transaction) Delete(key string) error {
	return deleteVersioned(t.txn, key)
}

func (t *transaction) Exists(key string) (bool, error) {
	_, err := t.txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func readVersioned(txn *badger.Txn, key string) ([]byte, int64, bool, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, err
	}

	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, 0, false, err
	}

	version, err := readVersion(txn, key)
	if err != nil {
		return nil, 0, false, err
	}

	return value, version, true, nil
}

func readVersion(txn *badger.Txn, key string) (int64, error) {
	item, err := txn.Get([]byte(versionPrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, domain.NewCorruptedError(versionPrefix+key, fmt.Errorf("version has %d bytes", len(raw)))
	}
	return int64(binary.BigEndian.Uint64(raw)), nil
}

func writeVersioned(txn *badger.Txn, key string, value []byte, version int64) error {
	if err := txn.Set([]byte(key), value); err != nil {
		return err
	}

	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(version))
	return txn.Set([]byte(versionPrefix+key), raw)
}

func deleteVersioned(txn *badger.Txn, key string) error {
	if err := txn.Delete([]byte(key)); err != nil {
		return err
	}
	return txn.Delete([]byte(versionPrefix + key))
}

func isMetadataKey(key string) bool {
	return strings.HasPrefix(key, versionPrefix)
}
