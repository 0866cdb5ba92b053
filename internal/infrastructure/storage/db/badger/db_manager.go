package dbbadger

import (
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"
)

// DbManager holds the badgerhold store shared by the repositories.
type DbManager struct {
	store *badgerhold.Store
}

// NewDbManager opens the trade database under the given data directory.
func NewDbManager(datadir string, logger badger.Logger) (*DbManager, error) {
	store, err := createDb(filepath.Join(datadir, "trades"), logger)
	if err != nil {
		return nil, err
	}
	return &DbManager{store: store}, nil
}

// Close gracefully closes the underlying badger store.
func (d *DbManager) Close() error {
	return d.store.Close()
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger
	opts.Compression = options.ZSTD

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
