// Package engine implements the Group Engine (spec §4.1): a thin
// versioned-KV facade over a single bbolt database. Every logical key holds
// a descending chain of (version, content) entries; version is encoded
// inverted so that bbolt's natural ascending byte-order cursor yields
// newest-version-first iteration, generalizing the teacher's
// bucket-per-entity bbolt usage to a composite-key MVCC layout.
package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/sekas/sekas/pkg/sekaserr"
	"github.com/sekas/sekas/pkg/types"
)

var dataBucket = []byte("mvcc")

// Entry is one versioned record for a key.
type Entry struct {
	Version   uint64
	Content   []byte // nil content + Tombstone=true means a delete marker
	Tombstone bool
}

// Engine is the versioned-KV facade described in spec §4.1.
type Engine struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path as a Group
// Engine data store.
func Open(path string) (*Engine, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, sekaserr.Io(fmt.Errorf("open engine file %s: %w", path, err))
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, sekaserr.Io(err)
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying bbolt handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// encodeKey builds the composite (shard_id, user_key, ^version) storage key.
func encodeKey(shard uint64, key []byte, version uint64) []byte {
	buf := make([]byte, 8+len(key)+8)
	binary.BigEndian.PutUint64(buf[0:8], shard)
	copy(buf[8:8+len(key)], key)
	binary.BigEndian.PutUint64(buf[8+len(key):], ^version)
	return buf
}

// keyPrefix builds the (shard_id, user_key) prefix shared by every version
// of a single logical key.
func keyPrefix(shard uint64, key []byte) []byte {
	buf := make([]byte, 8+len(key))
	binary.BigEndian.PutUint64(buf[0:8], shard)
	copy(buf[8:], key)
	return buf
}

func shardPrefix(shard uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, shard)
	return buf
}

func decodeVersion(storageKey []byte) uint64 {
	inv := binary.BigEndian.Uint64(storageKey[len(storageKey)-8:])
	return ^inv
}

func userKeyOf(storageKey []byte) []byte {
	return storageKey[8 : len(storageKey)-8]
}

// encodeRecord builds the on-disk encoding of one version's content: a one-byte
// tombstone marker followed by the raw content bytes.
func encodeRecord(content []byte, tombstone bool) []byte {
	buf := make([]byte, 1+len(content))
	if tombstone {
		buf[0] = 1
	}
	copy(buf[1:], content)
	return buf
}

func decodeRecord(raw []byte) (content []byte, tombstone bool) {
	if len(raw) == 0 {
		return nil, false
	}
	tombstone = raw[0] == 1
	if len(raw) > 1 {
		content = append([]byte(nil), raw[1:]...)
	}
	return content, tombstone
}

// WriteBatch accumulates staged mutations for atomic commit.
type WriteBatch struct {
	puts []batchOp
}

type batchOp struct {
	shard     uint64
	key       []byte
	version   uint64
	content   []byte
	tombstone bool
	delete    bool // remove the record entirely (used to clear an intent)
}

// NewWriteBatch returns an empty batch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// Put stages a value write at version. Fails only on serialization error
// (none possible for this in-memory representation, kept for interface
// parity with spec §4.1).
func (wb *WriteBatch) Put(shard uint64, key, value []byte, version uint64) error {
	wb.puts = append(wb.puts, batchOp{shard: shard, key: append([]byte(nil), key...), version: version, content: append([]byte(nil), value...)})
	return nil
}

// Tombstone stages a delete-marker write at version.
func (wb *WriteBatch) Tombstone(shard uint64, key []byte, version uint64) error {
	wb.puts = append(wb.puts, batchOp{shard: shard, key: append([]byte(nil), key...), version: version, tombstone: true})
	return nil
}

// Delete stages removal of the exact (key, version) record — used to
// remove an intent record on commit/clear.
func (wb *WriteBatch) Delete(shard uint64, key []byte, version uint64) error {
	wb.puts = append(wb.puts, batchOp{shard: shard, key: append([]byte(nil), key...), version: version, delete: true})
	return nil
}

// Empty reports whether the batch has no staged mutations.
func (wb *WriteBatch) Empty() bool { return len(wb.puts) == 0 }

// Op is the exported view of one staged mutation, used by the replication
// layer to serialize a batch onto the raft log.
type Op struct {
	Shard     uint64
	Key       []byte
	Version   uint64
	Content   []byte
	Tombstone bool
	Delete    bool
}

// Ops returns the batch's staged mutations in apply order.
func (wb *WriteBatch) Ops() []Op {
	ops := make([]Op, len(wb.puts))
	for i, op := range wb.puts {
		ops[i] = Op{Shard: op.shard, Key: op.key, Version: op.version, Content: op.content, Tombstone: op.tombstone, Delete: op.delete}
	}
	return ops
}

// Commit atomically applies a write batch. sync is accepted for interface
// parity with spec §4.1 (bbolt transactions are durable on commit
// regardless).
func (e *Engine) Commit(wb *WriteBatch, sync bool) error {
	if wb.Empty() {
		return nil
	}
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(dataBucket)
		for _, op := range wb.puts {
			sk := encodeKey(op.shard, op.key, op.version)
			if op.delete {
				if err := b.Delete(sk); err != nil {
					return sekaserr.Io(err)
				}
				continue
			}
			if err := b.Put(sk, encodeRecord(op.content, op.tombstone)); err != nil {
				return sekaserr.Io(err)
			}
		}
		return nil
	})
}

// Get returns the highest version present for (shard,key), intent included,
// or ok=false if the key has no records at all.
func (e *Engine) Get(shard uint64, key []byte) (entry Entry, ok bool, err error) {
	prefix := keyPrefix(shard, key)
	err = e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		sk, raw := c.Seek(prefix)
		if sk == nil || !bytes.HasPrefix(sk, prefix) {
			return nil
		}
		content, tombstone := decodeRecord(raw)
		entry = Entry{Version: decodeVersion(sk), Content: content, Tombstone: tombstone}
		ok = true
		return nil
	})
	return entry, ok, err
}

// SnapshotMode selects the key range a Snapshot iterates.
type SnapshotMode int

const (
	ModeKey SnapshotMode = iota
	ModeRange
	ModePrefix
)

// KeyChain is one logical key's full descending-version chain.
type KeyChain struct {
	Key     []byte
	Entries []Entry
}

// Snapshot returns, for mode Key/Range/Prefix, the set of key chains
// consistent as of the moment Snapshot is called (bbolt's MVCC read
// transaction provides the single-sequence-number consistency spec §4.1
// requires: a snapshot taken before a commit never observes that commit).
func (e *Engine) Snapshot(shard uint64, mode SnapshotMode, lo, hi []byte) ([]KeyChain, error) {
	var out []KeyChain
	err := e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		var startPrefix, endPrefix []byte
		switch mode {
		case ModeKey:
			startPrefix = keyPrefix(shard, lo)
			endPrefix = startPrefix
		case ModePrefix:
			startPrefix = keyPrefix(shard, lo)
			endPrefix = nil
		case ModeRange:
			startPrefix = keyPrefix(shard, lo)
			if hi != nil {
				endPrefix = keyPrefix(shard, hi)
			}
		}
		sPrefix := shardPrefix(shard)

		var cur *KeyChain
		for sk, raw := c.Seek(startPrefix); sk != nil && bytes.HasPrefix(sk, sPrefix); sk, raw = c.Next() {
			uk := userKeyOf(sk)
			if mode == ModeKey && !bytes.Equal(uk, lo) {
				break
			}
			if mode == ModePrefix && !bytes.HasPrefix(uk, lo) {
				break
			}
			if mode == ModeRange && endPrefix != nil && bytes.Compare(sk, endPrefix) >= 0 {
				break
			}
			content, tombstone := decodeRecord(raw)
			entry := Entry{Version: decodeVersion(sk), Content: content, Tombstone: tombstone}
			if cur == nil || !bytes.Equal(cur.Key, uk) {
				if cur != nil {
					out = append(out, *cur)
				}
				cur = &KeyChain{Key: append([]byte(nil), uk...)}
			}
			cur.Entries = append(cur.Entries, entry)
		}
		if cur != nil {
			out = append(out, *cur)
		}
		return nil
	})
	return out, err
}

// IsIntent reports whether version is the reserved intent marker.
func IsIntent(version uint64) bool { return version == types.TxnIntentVersion }
