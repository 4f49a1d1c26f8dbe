// Package latch implements the Latch Manager (spec §4.3): per-shard,
// per-key mutual exclusion held for the duration of an evaluation, plus the
// resolve/signal bridge the Intent Evaluator uses to deal with a
// conflicting in-flight intent left by another transaction.
//
// Grounded on the teacher's general concurrency idiom (plain
// sync.Mutex-guarded maps and channels, as in
// cuemby-warren/pkg/worker/health_monitor.go's per-container coordination)
// generalized to per-key waiter channels; Go's stdlib is the teacher's own
// tool of choice for this class of primitive, so no third-party
// concurrency library is substituted here (see DESIGN.md).
package latch

import (
	"context"
	"sync"
	"time"

	"github.com/sekas/sekas/internal/eval"
	"github.com/sekas/sekas/pkg/metrics"
)

// TxnState is the terminal (or pending) state of an intent.
type TxnState int

const (
	Pending TxnState = iota
	Committed
	Aborted
)

// Resolver is implemented by whatever can authoritatively answer "did
// start_version commit, abort, or is it still pending" — in Sekas this is
// the replica hosting the shard's commit record, or the root's txn
// bookkeeping. Kept as an interface so the latch manager doesn't need a
// concrete dependency on replica/root wiring.
type Resolver interface {
	// Outcome returns the terminal state of a transaction if known.
	Outcome(shard uint64, startVersion uint64) (TxnState, uint64, bool)
	// ForceAbort is invoked when a pending intent has been held past the
	// configured abort threshold; ResolveTxn then reports the stalled
	// transaction as aborted.
	ForceAbort(shard uint64, key []byte, startVersion uint64) error
}

type waiter struct {
	ch chan resolution
}

type resolution struct {
	state         TxnState
	commitVersion uint64
}

type latchEntry struct {
	holder        uint64 // start_version of the current holder, 0 if free
	waiters       []*waiter
	resolved      bool
	resolution    resolution
}

// Manager owns one key->latchEntry map per shard.
type Manager struct {
	mu            sync.Mutex
	shards        map[uint64]map[string]*latchEntry
	resolver      Resolver
	abortAfter    time.Duration
}

// New creates a Latch Manager. abortAfter is the configured threshold past
// which a pending conflicting intent is force-aborted (spec §4.3).
func New(resolver Resolver, abortAfter time.Duration) *Manager {
	return &Manager{
		shards:     make(map[uint64]map[string]*latchEntry),
		resolver:   resolver,
		abortAfter: abortAfter,
	}
}

func (m *Manager) entryLocked(shard uint64, key []byte) *latchEntry {
	byKey, ok := m.shards[shard]
	if !ok {
		byKey = make(map[string]*latchEntry)
		m.shards[shard] = byKey
	}
	e, ok := byKey[string(key)]
	if !ok {
		e = &latchEntry{}
		byKey[string(key)] = e
	}
	return e
}

// Guard is returned by Acquire. Its Release frees the latch and wakes every
// waiter with Aborted, unless the guard is marked resolved (a re-entry by
// the transaction that already holds the latch), in which case Release
// leaves the latch with its earlier acquisition.
type Guard struct {
	m            *Manager
	shard        uint64
	key          []byte
	startVersion uint64
	resolved     bool
}

// Acquire blocks until the (shard,key) latch is free, then takes it on
// behalf of startVersion.
func (m *Manager) Acquire(ctx context.Context, shard uint64, key []byte, startVersion uint64) (*Guard, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.LatchWaitDuration)

	for {
		m.mu.Lock()
		e := m.entryLocked(shard, key)
		if e.holder == 0 {
			e.holder = startVersion
			e.resolved = false
			m.mu.Unlock()
			return &Guard{m: m, shard: shard, key: key, startVersion: startVersion}, nil
		}
		if e.holder == startVersion {
			// Re-entry by the current holder (an idempotent write_intent
			// replay): the latch stays with the earlier acquisition.
			m.mu.Unlock()
			return &Guard{m: m, shard: shard, key: key, startVersion: startVersion, resolved: true}, nil
		}
		w := &waiter{ch: make(chan resolution, 1)}
		e.waiters = append(e.waiters, w)
		m.mu.Unlock()

		select {
		case <-w.ch:
			// Latch freed; loop to attempt acquisition again.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release frees the latch, records an Aborted resolution and wakes every
// waiter — used when the evaluator completed without needing commit/clear
// semantics at this layer. It does nothing for a resolved (re-entry) guard.
func (g *Guard) Release() {
	if g.resolved {
		return
	}
	g.m.releaseLocked(g.shard, g.key, resolution{state: Aborted})
}

func (m *Manager) releaseLocked(shard uint64, key []byte, res resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey := m.shards[shard]
	if byKey == nil {
		return
	}
	e := byKey[string(key)]
	if e == nil {
		return
	}
	e.holder = 0
	e.resolved = true
	e.resolution = res
	waiters := e.waiters
	e.waiters = nil
	for _, w := range waiters {
		w.ch <- res
	}
}

// SignalAll implements eval.LatchCoordinator: wakes every waiter on
// (shard,key) with the terminal state, in arrival order (the channel
// send/receive pairing above preserves FIFO since waiters are appended and
// drained in slice order).
func (m *Manager) SignalAll(shard uint64, key []byte, committed bool, commitVersion uint64) {
	state := Aborted
	if committed {
		state = Committed
	}
	m.releaseLocked(shard, key, resolution{state: state, commitVersion: commitVersion})
}

// ResolveTxn implements eval.LatchCoordinator: asks the Resolver whether
// otherStartVersion committed, aborted, or is still pending; if pending
// past the abort threshold it force-aborts it.
func (m *Manager) ResolveTxn(shard uint64, key []byte, otherStartVersion uint64) (eval.PrevState, error) {
	deadline := time.Now().Add(m.abortAfter)
	for {
		state, commitVersion, known := m.resolver.Outcome(shard, otherStartVersion)
		if known {
			switch state {
			case Committed:
				return eval.PrevState{Exists: true, Version: commitVersion}, nil
			case Aborted:
				return eval.PrevState{}, nil
			}
		}
		if time.Now().After(deadline) {
			if err := m.resolver.ForceAbort(shard, key, otherStartVersion); err != nil {
				return eval.PrevState{}, err
			}
			return eval.PrevState{}, nil
		}
		time.Sleep(10 * time.Millisecond)
	}
}
