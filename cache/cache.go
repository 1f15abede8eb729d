// Package cache keeps reachability functions on disk so that repeated runs
// over the same model skip the elimination.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"github.com/rfielding/kripke-regions/model"
	"github.com/rfielding/kripke-regions/ratfunc"
)

var functionBucket = []byte("functions")

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Cache is a bbolt file mapping model keys to zstd-compressed function text.
type Cache struct {
	db  *bbolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the cache file at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(functionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db, enc: enc, dec: dec}, nil
}

// Key identifies the function of sys for target. Systems that marshal to the
// same document share a key.
func Key(sys *model.System, target string) (string, error) {
	doc, err := sys.Marshal()
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(doc)
	h.Write([]byte{0})
	h.Write([]byte(target))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Cache) Get(key string) (ratfunc.Func, bool, error) {
	if c.db == nil {
		return ratfunc.Func{}, false, ErrClosed
	}
	var packed []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(functionBucket).Get([]byte(key)); v != nil {
			packed = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || packed == nil {
		return ratfunc.Func{}, false, err
	}
	text, err := c.dec.DecodeAll(packed, nil)
	if err != nil {
		return ratfunc.Func{}, false, fmt.Errorf("decompressing %s: %w", key, err)
	}
	var f ratfunc.Func
	if err := f.UnmarshalText(text); err != nil {
		return ratfunc.Func{}, false, fmt.Errorf("cached function %s: %w", key, err)
	}
	return f, true, nil
}

func (c *Cache) Put(key string, f ratfunc.Func) error {
	if c.db == nil {
		return ErrClosed
	}
	text, err := f.MarshalText()
	if err != nil {
		return err
	}
	packed := c.enc.EncodeAll(text, nil)
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(functionBucket).Put([]byte(key), packed)
	})
}

// Len returns the number of cached functions.
func (c *Cache) Len() (int, error) {
	if c.db == nil {
		return 0, ErrClosed
	}
	n := 0
	err := c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(functionBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	c.enc.Close()
	c.dec.Close()
	err := c.db.Close()
	c.db = nil
	return err
}
