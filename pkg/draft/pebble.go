package draft

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// keyPrefix namespaces draft entries inside the Pebble keyspace.
const keyPrefix = "draft/"

// PebbleBackend persists drafts in an embedded Pebble database so they
// survive process restarts.
type PebbleBackend struct {
	db *pebble.DB
}

// OpenPebble opens (creating if needed) a Pebble database at dir.
// opts may be nil; tests pass an in-memory vfs.
func OpenPebble(dir string, opts *pebble.Options) (*PebbleBackend, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open draft store at %s: %w", dir, err)
	}
	return &PebbleBackend{db: db}, nil
}

func (p *PebbleBackend) Get(key string) (string, bool, error) {
	value, closer, err := p.db.Get([]byte(keyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer closer.Close()

	// value is only valid until closer.Close.
	return string(value), true, nil
}

func (p *PebbleBackend) Put(key, text string) error {
	return p.db.Set([]byte(keyPrefix+key), []byte(text), pebble.Sync)
}

func (p *PebbleBackend) Delete(key string) error {
	return p.db.Delete([]byte(keyPrefix+key), pebble.Sync)
}

func (p *PebbleBackend) Close() error {
	return p.db.Close()
}
