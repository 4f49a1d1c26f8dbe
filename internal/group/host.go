// Package group composes one raft group's Group Engine, Latch Manager, and
// Replica state machine into the single object internal/transport's Node
// service dispatches RPCs against. It is the wiring layer spec.md leaves
// implicit between §4.2 (Intent Evaluator), §4.3 (Latch Manager), and §4.4
// (Replica State Machine): none of those packages depend on each other
// directly, so something has to hold one of each per group and drive
// write_intent/commit_intent/clear_intent through propose.
package group

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/internal/eval"
	"github.com/sekas/sekas/internal/latch"
	"github.com/sekas/sekas/internal/replica"
	"github.com/sekas/sekas/pkg/log"
	"github.com/sekas/sekas/pkg/sekaserr"
)

// txnOutcome is a transaction's terminal state, recorded locally as
// commit_intent/clear_intent apply so a later write_intent touching the
// same key can resolve the conflicting intent without a separate
// coordinator lookup. Cross-shard transactions still coordinate purely via
// the client-held start_version (spec §5); this table only serves latch
// resolution within one group.
type txnOutcome struct {
	committed bool
	version   uint64
}

type txnTable struct {
	mu       sync.Mutex
	outcomes map[uint64]txnOutcome // startVersion -> outcome
}

func newTxnTable() *txnTable {
	return &txnTable{outcomes: make(map[uint64]txnOutcome)}
}

func (t *txnTable) record(startVersion uint64, committed bool, version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcomes[startVersion] = txnOutcome{committed: committed, version: version}
}

// Outcome implements latch.Resolver.
func (t *txnTable) Outcome(shard uint64, startVersion uint64) (latch.TxnState, uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.outcomes[startVersion]
	if !ok {
		return latch.Pending, 0, false
	}
	if o.committed {
		return latch.Committed, o.version, true
	}
	return latch.Aborted, 0, true
}

// ForceAbort implements latch.Resolver: a transaction whose pending intent
// was held past the abort threshold is recorded as aborted. The intent
// record itself is not deleted here.
func (t *txnTable) ForceAbort(shard uint64, key []byte, startVersion uint64) error {
	t.record(startVersion, false, 0)
	return nil
}

// Host is one raft group's evaluator+latch+replica triple.
type Host struct {
	GroupID uint64

	engine  *engine.Engine
	latch   *latch.Manager
	replica *replica.Replica
	outcome *txnTable
	logger  zerolog.Logger
}

// NewHost wires a Group Engine, a Latch Manager (using this host's own
// txnTable as Resolver), and an already-open Replica into one dispatch
// target. abortAfter is the latch manager's pending-intent abort threshold.
func NewHost(groupID uint64, eng *engine.Engine, r *replica.Replica, abortAfter time.Duration) *Host {
	outcome := newTxnTable()
	h := &Host{
		GroupID: groupID,
		engine:  eng,
		replica: r,
		outcome: outcome,
		logger:  log.WithGroupID(groupID),
	}
	h.latch = latch.New(outcome, abortAfter)
	return h
}

// Replica exposes the underlying replica for lease-token queries.
func (h *Host) Replica() *replica.Replica { return h.replica }

// Execute acquires the per-key latch for every write in the request, runs
// write_intent against this host's engine snapshot, and proposes the
// resulting write batch through raft (spec §4.3: the latch is "held for the
// duration of an evaluation"). On success the latches stay held — a pending
// intent's latch is only released later, by the commit_intent/clear_intent
// call that resolves it via SignalAll; on error every latch acquired for
// this call is released immediately as Aborted.
func (h *Host) Execute(ctx context.Context, token replica.LeaseToken, in eval.WriteIntentRequest) (eval.WriteIntentResponse, error) {
	guards := make([]*latch.Guard, 0, len(in.Deletes)+len(in.Puts))
	release := func() {
		for _, g := range guards {
			g.Release()
		}
	}
	for _, w := range in.Deletes {
		g, err := h.latch.Acquire(ctx, in.ShardID, w.Key, in.StartVersion)
		if err != nil {
			release()
			return eval.WriteIntentResponse{}, sekaserr.Io(err)
		}
		guards = append(guards, g)
	}
	for _, w := range in.Puts {
		g, err := h.latch.Acquire(ctx, in.ShardID, w.Key, in.StartVersion)
		if err != nil {
			release()
			return eval.WriteIntentResponse{}, sekaserr.Io(err)
		}
		guards = append(guards, g)
	}

	wb, resp, err := eval.WriteIntent(h.engine, h.latch, in)
	if err != nil {
		release()
		return eval.WriteIntentResponse{}, err
	}
	if wb == nil || wb.Empty() {
		release()
		return resp, nil
	}
	if _, err := h.replica.Propose(token, wb); err != nil {
		release()
		return eval.WriteIntentResponse{}, err
	}
	return resp, nil
}

// Commit runs commit_intent and proposes the resulting batch. eval.CommitIntent
// already signals each resolved key's waiters via the latch coordinator; this
// only additionally records the outcome so a later write_intent's
// ResolveTxn call (which may race the signal) still observes it.
func (h *Host) Commit(token replica.LeaseToken, in eval.CommitIntentRequest) error {
	wb, err := eval.CommitIntent(h.engine, h.latch, in)
	if err != nil {
		return err
	}
	if wb != nil && !wb.Empty() {
		if _, err := h.replica.Propose(token, wb); err != nil {
			return err
		}
	}
	h.outcome.record(in.StartVersion, true, in.CommitVersion)
	return nil
}

// Clear runs clear_intent and proposes the resulting batch, recording the
// abort outcome for a later ResolveTxn call.
func (h *Host) Clear(token replica.LeaseToken, in eval.ClearIntentRequest) error {
	wb, err := eval.ClearIntent(h.engine, h.latch, in)
	if err != nil {
		return err
	}
	if wb != nil && !wb.Empty() {
		if _, err := h.replica.Propose(token, wb); err != nil {
			return err
		}
	}
	h.outcome.record(in.StartVersion, false, 0)
	return nil
}

// Get returns the most recent committed value for key. found is false when
// the newest record is a tombstone or a pending intent.
func (h *Host) Get(shardID uint64, key []byte) (value []byte, version uint64, found bool, err error) {
	entry, ok, err := h.engine.Get(shardID, key)
	if err != nil {
		return nil, 0, false, sekaserr.Io(err)
	}
	if !ok || entry.Tombstone || engine.IsIntent(entry.Version) {
		return nil, 0, false, nil
	}
	return entry.Content, entry.Version, true, nil
}
