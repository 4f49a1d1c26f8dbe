// Package eval implements the Intent Evaluator (spec §4.2): pure functions
// that, given a WriteIntentRequest/CommitIntentRequest/ClearIntentRequest
// plus a group engine snapshot, produce a write batch and a response.
// Grounded method-for-method on
// original_source/src/server/src/replica/eval/cmd_txn.rs.
package eval

import (
	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/pkg/sekaserr"
	"github.com/sekas/sekas/pkg/types"
)

// LatchCoordinator bridges the evaluator to the Latch Manager (spec §4.3):
// resolving another transaction's pending intent, and fanning out the
// terminal state once a commit/clear completes.
type LatchCoordinator interface {
	// ResolveTxn asks whether otherStartVersion committed, aborted, or is
	// still pending (force-aborting it past a threshold); it returns the
	// value that should be treated as "previous" for the caller now that
	// the conflicting intent is resolved one way or another.
	ResolveTxn(shard uint64, key []byte, otherStartVersion uint64) (prev PrevState, err error)
	// SignalAll wakes every waiter on (shard,key) with the terminal state.
	SignalAll(shard uint64, key []byte, committed bool, commitVersion uint64)
}

// Write describes one put or delete within a WriteIntentRequest.
type Write struct {
	Key           []byte
	Value         []byte // put payload, or AddI64 delta
	PutType       PutType
	IsDelete      bool // true: this is a delete (tombstone on commit)
	Conditions    []Condition
	TakePrevValue bool
}

// WriteIntentRequest is the input to WriteIntent.
type WriteIntentRequest struct {
	ShardID      uint64
	StartVersion uint64
	Deletes      []Write
	Puts         []Write
}

// WriteResult carries, per requested write, the optional previous value.
type WriteResult struct {
	HasPrevValue bool
	PrevValue    []byte
}

// WriteIntentResponse mirrors spec §4.2: one WriteResult per write, in
// deletes-then-puts order.
type WriteIntentResponse struct {
	Results []WriteResult
}

// WriteIntent evaluates a WriteIntentRequest against the current engine
// state, returning the write batch to propose (nil if every write was an
// idempotent replay skip) and the response to return to the caller.
//
// On a CasFailed condition mismatch the entire batch is dropped per spec:
// "On failure, return CasFailed... and drop the batch entirely."
func WriteIntent(e *engine.Engine, lc LatchCoordinator, req WriteIntentRequest) (*engine.WriteBatch, WriteIntentResponse, error) {
	wb := engine.NewWriteBatch()
	resp := WriteIntentResponse{}
	any := false

	writes := make([]Write, 0, len(req.Deletes)+len(req.Puts))
	writes = append(writes, req.Deletes...)
	writes = append(writes, req.Puts...)

	for idx, w := range writes {
		prev, skip, err := resolvePrev(e, lc, req.ShardID, w.Key, req.StartVersion)
		if err != nil {
			return nil, WriteIntentResponse{}, err
		}
		if skip {
			// Idempotent replay: do not evaluate conditions, do not stage
			// anything, no previous value reported.
			resp.Results = append(resp.Results, WriteResult{})
			continue
		}

		if condIdx := evalConditions(w.Conditions, prev); condIdx >= 0 {
			var prevBytes []byte
			if prev.Exists {
				prevBytes = prev.Value
			}
			return nil, WriteIntentResponse{}, sekaserr.CasFailed(idx, condIdx, prevBytes, prev.Exists)
		}

		var in Intent
		in.StartVersion = req.StartVersion

		if w.IsDelete {
			in.IsDelete = true
		} else {
			stored, isNop, err := applyPutOp(w.PutType, prev, w.Value)
			if err != nil {
				return nil, WriteIntentResponse{}, err
			}
			in.IsNop = isNop
			in.Value = stored
		}

		if err := wb.Put(req.ShardID, w.Key, encodeIntent(in), types.TxnIntentVersion); err != nil {
			return nil, WriteIntentResponse{}, err
		}
		any = true

		result := WriteResult{}
		if w.TakePrevValue && prev.Exists {
			result.HasPrevValue = true
			result.PrevValue = prev.Value
		}
		resp.Results = append(resp.Results, result)
	}

	if !any {
		return nil, resp, nil
	}
	return wb, resp, nil
}

// resolvePrev reads the current top entry for (shard,key) and resolves it
// into a PrevState, per spec §4.2 steps 1-3. skip=true means the write must
// be treated as an idempotent replay of an in-flight intent from the same
// transaction.
func resolvePrev(e *engine.Engine, lc LatchCoordinator, shard uint64, key []byte, startVersion uint64) (prev PrevState, skip bool, err error) {
	top, ok, err := e.Get(shard, key)
	if err != nil {
		return PrevState{}, false, sekaserr.Io(err)
	}
	if !ok {
		return PrevState{}, false, nil
	}
	if engine.IsIntent(top.Version) {
		existing, err := decodeIntent(top.Content)
		if err != nil {
			return PrevState{}, false, err
		}
		if existing.StartVersion == startVersion {
			return PrevState{}, true, nil
		}
		resolved, err := lc.ResolveTxn(shard, key, existing.StartVersion)
		if err != nil {
			return PrevState{}, false, err
		}
		return resolved, false, nil
	}
	if top.Tombstone {
		return PrevState{Exists: false, Version: top.Version}, false, nil
	}
	return PrevState{Exists: true, Value: top.Content, Version: top.Version}, false, nil
}

// CommitIntentRequest is the input to CommitIntent.
type CommitIntentRequest struct {
	ShardID       uint64
	StartVersion  uint64
	CommitVersion uint64
	Keys          [][]byte
}

// CommitIntent resolves each key's pending intent (matching StartVersion)
// into either a tombstone or a value at CommitVersion, deleting the intent
// record; non-matching keys are skipped for idempotent replay safety.
func CommitIntent(e *engine.Engine, lc LatchCoordinator, req CommitIntentRequest) (*engine.WriteBatch, error) {
	wb := engine.NewWriteBatch()
	any := false

	for _, key := range req.Keys {
		top, ok, err := e.Get(req.ShardID, key)
		if err != nil {
			return nil, sekaserr.Io(err)
		}
		if !ok || !engine.IsIntent(top.Version) {
			continue
		}
		in, err := decodeIntent(top.Content)
		if err != nil {
			return nil, err
		}
		if in.StartVersion != req.StartVersion {
			continue
		}

		if err := wb.Delete(req.ShardID, key, types.TxnIntentVersion); err != nil {
			return nil, err
		}
		if !in.IsNop {
			if in.IsDelete {
				if err := wb.Tombstone(req.ShardID, key, req.CommitVersion); err != nil {
					return nil, err
				}
			} else if err := wb.Put(req.ShardID, key, in.Value, req.CommitVersion); err != nil {
				return nil, err
			}
		}
		any = true
		lc.SignalAll(req.ShardID, key, true, req.CommitVersion)
	}

	if !any {
		return nil, nil
	}
	return wb, nil
}

// ClearIntentRequest is the input to ClearIntent.
type ClearIntentRequest struct {
	ShardID      uint64
	StartVersion uint64
	Keys         [][]byte
}

// ClearIntent deletes each key's pending intent (matching StartVersion)
// without committing a value, and signals waiters Aborted.
func ClearIntent(e *engine.Engine, lc LatchCoordinator, req ClearIntentRequest) (*engine.WriteBatch, error) {
	wb := engine.NewWriteBatch()
	any := false

	for _, key := range req.Keys {
		top, ok, err := e.Get(req.ShardID, key)
		if err != nil {
			return nil, sekaserr.Io(err)
		}
		if !ok || !engine.IsIntent(top.Version) {
			continue
		}
		in, err := decodeIntent(top.Content)
		if err != nil {
			return nil, err
		}
		if in.StartVersion != req.StartVersion {
			continue
		}
		if err := wb.Delete(req.ShardID, key, types.TxnIntentVersion); err != nil {
			return nil, err
		}
		any = true
		lc.SignalAll(req.ShardID, key, false, 0)
	}

	if !any {
		return nil, nil
	}
	return wb, nil
}
