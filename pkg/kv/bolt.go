package kv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

const indexTreePrefix = "idx:"

// BoltDriver implements Driver using BoltDB. Trees map to buckets.
type BoltDriver struct {
	db *bolt.DB
}

// OpenBolt opens or creates a BoltDB-backed driver at the given directory.
func OpenBolt(dataDir string) (*BoltDriver, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, IOError("failed to create data directory", err)
	}
	dbPath := filepath.Join(dataDir, "gqlite.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, IOError("failed to open database", err)
	}
	return &BoltDriver{db: db}, nil
}

// OpenTree opens or creates a named bucket.
func (d *BoltDriver) OpenTree(name string) (Tree, error) {
	err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, BackendError("failed to create bucket "+name, err)
	}
	return &boltTree{db: d.db, name: []byte(name)}, nil
}

// ListTrees returns the names of all non-index buckets.
func (d *BoltDriver) ListTrees() ([]string, error) {
	var names []string
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if !strings.HasPrefix(string(name), indexTreePrefix) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, BackendError("failed to list buckets", err)
	}
	return names, nil
}

// DropTree removes a bucket and its contents.
func (d *BoltDriver) DropTree(name string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(name))
	})
	if err != nil {
		return BackendError("failed to drop bucket "+name, err)
	}
	return nil
}

// OpenIndexTree opens an index bucket. BoltDB has no per-bucket tuning, so
// the options are accepted and ignored; index buckets are told apart from
// other trees only by the "idx:" name prefix.
func (d *BoltDriver) OpenIndexTree(name string, _ IndexTreeOptions) (Tree, error) {
	return d.OpenTree(indexTreePrefix + name)
}

// ListIndexes returns the names of all index buckets.
func (d *BoltDriver) ListIndexes() ([]string, error) {
	var names []string
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if strings.HasPrefix(string(name), indexTreePrefix) {
				names = append(names, strings.TrimPrefix(string(name), indexTreePrefix))
			}
			return nil
		})
	})
	if err != nil {
		return nil, BackendError("failed to list index buckets", err)
	}
	return names, nil
}

// DropIndex removes an index bucket.
func (d *BoltDriver) DropIndex(name string) error {
	return d.DropTree(indexTreePrefix + name)
}

// TreeStats returns statistics for a bucket.
func (d *BoltDriver) TreeStats(name string) (*TreeStats, error) {
	var stats *TreeStats
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return nil
		}
		bs := b.Stats()
		stats = &TreeStats{
			EntryCount:  uint64(bs.KeyN),
			SizeBytes:   uint64(bs.LeafInuse),
			MemoryBytes: uint64(bs.BranchInuse + bs.LeafInuse),
		}
		return nil
	})
	if err != nil {
		return nil, BackendError("failed to stat bucket "+name, err)
	}
	return stats, nil
}

// Flush syncs the database file.
func (d *BoltDriver) Flush() error {
	if err := d.db.Sync(); err != nil {
		return IOError("failed to sync database", err)
	}
	return nil
}

// Close flushes and closes the database.
func (d *BoltDriver) Close() error {
	if err := d.db.Close(); err != nil {
		return IOError("failed to close database", err)
	}
	return nil
}

// Type returns BackendBolt.
func (d *BoltDriver) Type() BackendType { return BackendBolt }

// boltTree adapts a named bucket to the Tree interface. Each operation runs
// in its own BoltDB transaction.
type boltTree struct {
	db   *bolt.DB
	name []byte
}

func (t *boltTree) bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket(t.name)
	if b == nil {
		return nil, BackendError("bucket "+string(t.name)+" missing", nil)
	}
	return b, nil
}

func (t *boltTree) Insert(key, value []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

func (t *boltTree) Get(key []byte) ([]byte, error) {
	var out []byte
	err := t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		if v := b.Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *boltTree) Remove(key []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		return b.Delete(key)
	})
}

func (t *boltTree) Contains(key []byte) (bool, error) {
	var found bool
	err := t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		found = b.Get(key) != nil
		return nil
	})
	return found, err
}

func (t *boltTree) Clear() error {
	return t.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(t.name); err != nil {
			return err
		}
		_, err := tx.CreateBucket(t.name)
		return err
	})
}

func (t *boltTree) IsEmpty() (bool, error) {
	empty := true
	err := t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		k, _ := b.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty, err
}

func (t *boltTree) Iter(fn func(key, value []byte) error) error {
	return t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		return b.ForEach(fn)
	})
}

func (t *boltTree) ScanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	return t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *boltTree) BatchGet(keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	err := t.db.View(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		for i, key := range keys {
			if v := b.Get(key); v != nil {
				out[i] = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *boltTree) BatchInsert(entries []Entry) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := b.Put(e.Key, e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *boltTree) BatchRemove(keys [][]byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b, err := t.bucket(tx)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *boltTree) Flush() error {
	if err := t.db.Sync(); err != nil {
		return IOError("failed to sync database", err)
	}
	return nil
}
