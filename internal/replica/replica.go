// Package replica implements the Replica State Machine (spec §4.4): a
// raft.FSM adapter that applies eval write-batches in log order to the
// Group Engine, and exposes on_leader() lease-token gating so leader-only
// work (proposing new eval results, running the root loop) only proceeds
// while this replica actually holds the lease.
//
// Grounded on cuemby-warren/pkg/manager/fsm.go (WarrenFSM.Apply command
// dispatch, Snapshot/Restore) and manager.go's raft.NewRaft/Apply wiring,
// generalized from one cluster-wide FSM applying Command{Op,Data} CRUD
// envelopes to one FSM per group applying encoded engine.WriteBatch entries.
package replica

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/sekas/sekas/internal/engine"
	"github.com/sekas/sekas/pkg/log"
	"github.com/sekas/sekas/pkg/metrics"
	"github.com/sekas/sekas/pkg/sekaserr"
)

// LogEntry is the JSON envelope proposed to raft: the encoded mutations an
// eval call produced, destined for the Group Engine.
type LogEntry struct {
	Puts []LogPut `json:"puts"`
}

// LogPut is one staged mutation, mirroring engine.WriteBatch's internal
// shape closely enough to rebuild it on Apply.
type LogPut struct {
	Shard     uint64 `json:"shard"`
	Key       []byte `json:"key"`
	Version   uint64 `json:"version"`
	Content   []byte `json:"content,omitempty"`
	Tombstone bool   `json:"tombstone,omitempty"`
	Delete    bool   `json:"delete,omitempty"`
}

// LeaseToken proves current leadership for a group; invalidated on any role
// change (spec glossary).
type LeaseToken struct {
	GroupID uint64
	Epoch   uint64
}

// Replica owns one raft.Raft instance and the Group Engine shards that
// belong to its group.
type Replica struct {
	GroupID uint64

	engine *engine.Engine
	raft   *raft.Raft

	mu         sync.Mutex
	leaseEpoch uint64
	isLeader   bool
	leaseCh    chan struct{} // closed and replaced on every role change
}

// Config configures the raft transport and storage paths for one replica,
// mirroring the tuning cuemby-warren/pkg/manager/manager.go applies to
// raft.Config/raft.NewRaft.
type Config struct {
	GroupID      uint64
	LocalID      raft.ServerID
	DataDir      string
	Transport    raft.Transport
	Bootstrap    bool
	Peers        []raft.Server
}

// Open constructs the raft.Raft instance for one group on top of the
// already-open Group Engine eng.
func Open(cfg Config, eng *engine.Engine) (*Replica, error) {
	r := &Replica{
		GroupID: cfg.GroupID,
		engine:  eng,
		leaseCh: make(chan struct{}),
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = cfg.LocalID
	raftConfig.HeartbeatTimeout = 1 * time.Second
	raftConfig.ElectionTimeout = 1 * time.Second
	raftConfig.LeaderLeaseTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond

	logStore, err := raftboltdb.NewBoltStore(cfg.DataDir + "/raft-log.db")
	if err != nil {
		return nil, sekaserr.Io(fmt.Errorf("open raft log store: %w", err))
	}
	stableStore, err := raftboltdb.NewBoltStore(cfg.DataDir + "/raft-stable.db")
	if err != nil {
		return nil, sekaserr.Io(fmt.Errorf("open raft stable store: %w", err))
	}
	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, nil)
	if err != nil {
		return nil, sekaserr.Io(fmt.Errorf("open raft snapshot store: %w", err))
	}

	fsm := &fsm{replica: r}
	ra, err := raft.NewRaft(raftConfig, fsm, logStore, stableStore, snapshots, cfg.Transport)
	if err != nil {
		return nil, sekaserr.Io(fmt.Errorf("start raft: %w", err))
	}
	r.raft = ra

	if cfg.Bootstrap {
		cfgFuture := raft.Configuration{Servers: cfg.Peers}
		if err := ra.BootstrapCluster(cfgFuture).Error(); err != nil {
			return nil, sekaserr.Io(fmt.Errorf("bootstrap raft group %d: %w", cfg.GroupID, err))
		}
	}

	go r.watchLeadership()

	return r, nil
}

func (r *Replica) watchLeadership() {
	logger := log.WithGroupID(r.GroupID)
	for leader := range r.raft.LeaderCh() {
		r.mu.Lock()
		r.isLeader = leader
		if leader {
			r.leaseEpoch++
		}
		close(r.leaseCh)
		r.leaseCh = make(chan struct{})
		epoch := r.leaseEpoch
		r.mu.Unlock()
		metrics.RaftLeader.WithLabelValues(fmt.Sprint(r.GroupID)).Set(boolToFloat(leader))
		logger.Info().Bool("leader", leader).Uint64("epoch", epoch).Msg("group leadership changed")
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// OnLeader yields the current LeaseToken if this replica holds the leader
// lease for its group, or ok=false otherwise (spec §4.4: "on_leader(name,
// fast) -> Option<LeaseToken>").
func (r *Replica) OnLeader() (LeaseToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isLeader {
		return LeaseToken{}, false
	}
	return LeaseToken{GroupID: r.GroupID, Epoch: r.leaseEpoch}, true
}

// LeaseChanged returns a channel closed the next time this replica's
// leadership role changes, for callers that must stop proposing as soon as
// the lease token they were handed becomes stale.
func (r *Replica) LeaseChanged() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaseCh
}

// Propose submits an eval-produced write batch to raft and blocks until it
// has been applied locally as leader (spec §4.4: "propose(eval_result) ->
// Future<ApplyIndex>"). token must still be the live lease for this group;
// propose refuses a stale token rather than silently no-op'ing.
func (r *Replica) Propose(token LeaseToken, wb *engine.WriteBatch) (uint64, error) {
	r.mu.Lock()
	if !r.isLeader || token.Epoch != r.leaseEpoch {
		r.mu.Unlock()
		return 0, sekaserr.NotLeader(r.GroupID, r.leaseEpoch, string(r.raft.Leader()))
	}
	r.mu.Unlock()

	entry, err := encodeBatch(wb)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return 0, sekaserr.InvalidData("encode log entry: %v", err)
	}

	timer := metrics.NewTimer()
	future := r.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return 0, sekaserr.Io(fmt.Errorf("raft apply: %w", err))
	}
	timer.ObserveDuration(metrics.RaftApplyDuration)

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return 0, err
		}
	}
	return uint64(future.Index()), nil
}

// encodeBatch reaches into the write batch's staged mutations. WriteBatch
// deliberately keeps its internal slice unexported; engine exposes a
// dedicated accessor for replication use.
func encodeBatch(wb *engine.WriteBatch) (LogEntry, error) {
	ops := wb.Ops()
	entry := LogEntry{Puts: make([]LogPut, len(ops))}
	for i, op := range ops {
		entry.Puts[i] = LogPut{
			Shard:     op.Shard,
			Key:       op.Key,
			Version:   op.Version,
			Content:   op.Content,
			Tombstone: op.Tombstone,
			Delete:    op.Delete,
		}
	}
	return entry, nil
}

// fsm adapts Replica to raft.FSM.
type fsm struct {
	replica  *Replica
	appliedI uint64
	mu       sync.Mutex
}

func (f *fsm) Apply(l *raft.Log) interface{} {
	var entry LogEntry
	if err := json.Unmarshal(l.Data, &entry); err != nil {
		return sekaserr.InvalidData("decode log entry at index %d: %v", l.Index, err)
	}

	wb := engine.NewWriteBatch()
	for _, p := range entry.Puts {
		var err error
		switch {
		case p.Delete:
			err = wb.Delete(p.Shard, p.Key, p.Version)
		case p.Tombstone:
			err = wb.Tombstone(p.Shard, p.Key, p.Version)
		default:
			err = wb.Put(p.Shard, p.Key, p.Content, p.Version)
		}
		if err != nil {
			return err
		}
	}

	if err := f.replica.engine.Commit(wb, true); err != nil {
		return err
	}

	f.mu.Lock()
	f.appliedI = l.Index
	f.mu.Unlock()
	metrics.RaftAppliedIndex.WithLabelValues(fmt.Sprint(f.replica.GroupID)).Set(float64(l.Index))
	return nil
}

// Snapshot/Restore are intentionally minimal: the Group Engine persists to
// its own bbolt file, which raft's snapshotting does not need to duplicate
// for this spec's scope (the underlying storage engine is an out-of-scope
// external collaborator per spec §1).
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return noopSnapshot{}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	return rc.Close()
}

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (noopSnapshot) Release()                             {}
