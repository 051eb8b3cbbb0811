// Package manifeststore keeps prepared-file manifests in a local badger
// database keyed by fid, so uploads and restores can be driven from the fid
// alone.
package manifeststore

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/sunway910/api-sub001/pkg/logging"
	"github.com/sunway910/api-sub001/pkg/model"
)

// ErrNotFound is returned when no manifest is stored for a fid.
var ErrNotFound = errors.New("manifeststore: manifest not found")

var keyPrefix = []byte("manifest/")

type StoreConfig struct {
	// Path is the badger directory. Empty with InMemory false is invalid.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	Logger   *slog.Logger
}

// Store is a badger-backed manifest index. Values are CBOR documents
// compressed with zstd.
type Store struct {
	db  *badger.DB
	log *slog.Logger
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the database described by config.
func Open(config StoreConfig) (*Store, error) { // AC
	if config.Path == "" && !config.InMemory {
		return nil, model.Invalidf("manifeststore: no path provided")
	}

	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, model.IOError("manifeststore: open badger", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifeststore: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("manifeststore: zstd reader: %w", err)
	}

	return &Store{
		db:  db,
		log: logging.OrDiscard(config.Logger),
		enc: enc,
		dec: dec,
	}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error { // A
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.log.Warn("manifeststore: close zstd writer", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return model.IOError("manifeststore: close badger", err)
	}
	return nil
}

func manifestKey(fid string) []byte {
	return append(append([]byte{}, keyPrefix...), fid...)
}

func (s *Store) encode(m *model.Manifest) ([]byte, error) { // A
	raw, err := cbor.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("manifeststore: cbor encode: %w", err)
	}
	return s.enc.EncodeAll(raw, nil), nil
}

func (s *Store) decode(value []byte) (*model.Manifest, error) { // A
	raw, err := s.dec.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("manifeststore: zstd decode: %w", err)
	}
	var m model.Manifest
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifeststore: cbor decode: %w", err)
	}
	return &m, nil
}

// Put stores m under m.Fid, replacing an earlier manifest for the same fid.
func (s *Store) Put(m *model.Manifest) error { // AC
	if err := m.Validate(); err != nil {
		return err
	}
	value, err := s.encode(m)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(m.Fid), value)
	})
	if err != nil {
		return model.IOError("manifeststore: put "+m.Fid, err)
	}
	s.log.Debug("manifest stored", "fid", m.Fid, "bytes", len(value))
	return nil
}

// Get returns the manifest stored for fid.
func (s *Store) Get(fid string) (*model.Manifest, error) { // A
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(fid))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fid)
	}
	if err != nil {
		return nil, model.IOError("manifeststore: get "+fid, err)
	}
	return s.decode(value)
}

// Has reports whether a manifest exists for fid.
func (s *Store) Has(fid string) (bool, error) { // A
	_, err := s.Get(fid)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes the manifest for fid. A missing manifest is not an error.
func (s *Store) Delete(fid string) error { // A
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(fid))
	})
	if err != nil {
		return model.IOError("manifeststore: delete "+fid, err)
	}
	return nil
}

// List returns the fids of all stored manifests in key order.
func (s *Store) List() ([]string, error) { // A
	var fids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			fids = append(fids, string(bytes.TrimPrefix(k, keyPrefix)))
		}
		return nil
	})
	if err != nil {
		return nil, model.IOError("manifeststore: list", err)
	}
	return fids, nil
}
