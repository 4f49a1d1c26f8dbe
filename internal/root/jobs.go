package root

import (
	"sync"

	"github.com/sekas/sekas/pkg/log"
)

// JobKind is one of the closed set of durable background job variants
// (spec §4.8).
type JobKind int

const (
	JobCreateCollection JobKind = iota
	JobCreateOneGroup
	JobPurgeCollection
	JobPurgeDatabase
)

// CreateCollectionState is CreateCollection's state machine (spec §4.8).
type CreateCollectionState int

const (
	CreateCollectionCreating CreateCollectionState = iota
	CreateCollectionRollbacking
	CreateCollectionFinished
	CreateCollectionAborted
)

// CreateOneGroupState is CreateOneGroup's state machine (spec §4.8).
type CreateOneGroupState int

const (
	CreateOneGroupInit CreateOneGroupState = iota
	CreateOneGroupAllocating
	CreateOneGroupCreating
	CreateOneGroupRollbacking
	CreateOneGroupFinished
	CreateOneGroupAborted
)

// maxCreateGroupRetries bounds CreateOneGroup's create_retry counter (spec
// §4.8: "create_retry bounded; on exhaustion -> Aborted").
const maxCreateGroupRetries = 5

// Job is a tagged durable background job; exactly one of the Create*/Purge*
// fields is populated, mirroring the original's oneof Job variant.
type Job struct {
	ID uint64

	CreateCollection *CreateCollectionJob
	CreateOneGroup   *CreateOneGroupJob
	PurgeCollection  *PurgeCollectionJob
	PurgeDatabase    *PurgeDatabaseJob
}

// CreateCollectionJob tracks a collection's shard creation/rollback.
type CreateCollectionJob struct {
	DatabaseID     uint64
	CollectionName string
	Status         CreateCollectionState
	WaitCreate     []uint64 // shard ids yet to be created
	WaitCleanup    []uint64 // shard ids to delete on abort
}

// CreateOneGroupJob tracks allocation and creation of one raft group.
type CreateOneGroupJob struct {
	RequestReplicaCount int
	Status              CreateOneGroupState
	WaitCreate          []uint64 // node ids yet to host a replica
	WaitCleanup         []uint64 // node ids to roll back
	CreateRetry         int
	GroupID             uint64
}

// PurgeCollectionJob deletes a collection's schema entry. It does not
// tombstone the collection's shards.
type PurgeCollectionJob struct {
	DatabaseID     uint64
	CollectionID   uint64
	CollectionName string
}

// PurgeDatabaseJob deletes a database's schema entry. It does not purge
// the database's collections or tombstone their shards.
type PurgeDatabaseJob struct {
	DatabaseID uint64
}

// JobStore is the durable backing the Jobs driver reads/writes against,
// kept as an interface so callers can back it with the Group Engine or a
// test double without this package depending on a concrete schema layer.
type JobStore interface {
	ListOngoing() ([]Job, error)
	Save(Job) error
	MoveToHistory(id uint64) error
}

// GroupDriver performs the side effects a job step needs against the
// cluster (create/remove a replica, tombstone a shard, delete schema
// entries), kept as an interface for the same reason as JobStore.
type GroupDriver interface {
	CreateShardReplica(groupID, shardID uint64) error
	TombstoneShard(shardID uint64) error
	AllocateReplicaNode(groupID uint64) (uint64, error)
	CreateGroupReplica(groupID, nodeID uint64) error
	RemoveGroupReplica(groupID, nodeID uint64) error
	DeleteCollectionSchema(collectionID uint64) error
	DeleteDatabaseSchema(databaseID uint64) error
}

// Jobs drives the durable background job list one step at a time (spec
// §4.8), grounded on the teacher's reconciler.go cadence generalized from a
// fixed ticker to an explicit advance/wait-for-signal pair.
type Jobs struct {
	store  JobStore
	driver GroupDriver

	mu       sync.Mutex
	wakeCh   chan struct{}
}

// NewJobs constructs a Jobs driver.
func NewJobs(store JobStore, driver GroupDriver) *Jobs {
	return &Jobs{store: store, driver: driver, wakeCh: make(chan struct{}, 1)}
}

// Submit persists a new job; wake=true nudges an idle AdvanceJobs loop to
// run immediately rather than waiting for its retry timer.
func (j *Jobs) Submit(job Job, wake bool) error {
	if err := j.store.Save(job); err != nil {
		return err
	}
	if wake {
		j.Wake()
	}
	return nil
}

// Wake signals a waiting WaitMoreJobs call to return immediately.
func (j *Jobs) Wake() {
	select {
	case j.wakeCh <- struct{}{}:
	default:
	}
}

// WaitMoreJobs suspends until Wake is called.
func (j *Jobs) WaitMoreJobs() {
	<-j.wakeCh
}

// AdvanceJobs drives every ongoing job forward by exactly one step.
func (j *Jobs) AdvanceJobs() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	logger := log.WithComponent("background-jobs")
	jobs, err := j.store.ListOngoing()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := j.advanceOne(job); err != nil {
			logger.Warn().Uint64("job", job.ID).Err(err).Msg("advance background job step")
		}
	}
	return nil
}

func (j *Jobs) advanceOne(job Job) error {
	switch {
	case job.CreateCollection != nil:
		return j.advanceCreateCollection(job)
	case job.CreateOneGroup != nil:
		return j.advanceCreateOneGroup(job)
	case job.PurgeCollection != nil:
		return j.advancePurgeCollection(job)
	case job.PurgeDatabase != nil:
		return j.advancePurgeDatabase(job)
	}
	return nil
}

func (j *Jobs) advanceCreateCollection(job Job) error {
	c := job.CreateCollection
	switch c.Status {
	case CreateCollectionCreating:
		if len(c.WaitCreate) == 0 {
			c.Status = CreateCollectionFinished
			return j.finish(job)
		}
		remaining := c.WaitCreate[:0]
		for _, shardID := range c.WaitCreate {
			// Idempotent per-shard: re-issue on retry (spec §4.8).
			if err := j.driver.CreateShardReplica(0, shardID); err != nil {
				remaining = append(remaining, shardID)
			}
		}
		c.WaitCreate = remaining
		if len(c.WaitCreate) == 0 {
			c.Status = CreateCollectionFinished
			return j.finish(job)
		}
		return j.store.Save(job)
	case CreateCollectionRollbacking:
		remaining := c.WaitCleanup[:0]
		for _, shardID := range c.WaitCleanup {
			if err := j.driver.TombstoneShard(shardID); err != nil {
				remaining = append(remaining, shardID)
			}
		}
		c.WaitCleanup = remaining
		if len(c.WaitCleanup) == 0 {
			c.Status = CreateCollectionAborted
			return j.finish(job)
		}
		return j.store.Save(job)
	default:
		return j.finish(job)
	}
}

func (j *Jobs) advanceCreateOneGroup(job Job) error {
	g := job.CreateOneGroup
	switch g.Status {
	case CreateOneGroupInit:
		g.Status = CreateOneGroupAllocating
		return j.store.Save(job)
	case CreateOneGroupAllocating:
		for len(g.WaitCreate) < g.RequestReplicaCount {
			nodeID, err := j.driver.AllocateReplicaNode(g.GroupID)
			if err != nil {
				g.CreateRetry++
				if g.CreateRetry >= maxCreateGroupRetries {
					g.Status = CreateOneGroupRollbacking
					g.WaitCleanup = append(g.WaitCleanup, g.WaitCreate...)
					return j.store.Save(job)
				}
				return j.store.Save(job)
			}
			g.WaitCreate = append(g.WaitCreate, nodeID)
		}
		g.Status = CreateOneGroupCreating
		return j.store.Save(job)
	case CreateOneGroupCreating:
		remaining := g.WaitCreate[:0]
		for _, nodeID := range g.WaitCreate {
			if err := j.driver.CreateGroupReplica(g.GroupID, nodeID); err != nil {
				remaining = append(remaining, nodeID)
			}
		}
		g.WaitCreate = remaining
		if len(g.WaitCreate) == 0 {
			g.Status = CreateOneGroupFinished
			return j.finish(job)
		}
		return j.store.Save(job)
	case CreateOneGroupRollbacking:
		remaining := g.WaitCleanup[:0]
		for _, nodeID := range g.WaitCleanup {
			if err := j.driver.RemoveGroupReplica(g.GroupID, nodeID); err != nil {
				remaining = append(remaining, nodeID)
			}
		}
		g.WaitCleanup = remaining
		if len(g.WaitCleanup) == 0 {
			g.Status = CreateOneGroupAborted
			return j.finish(job)
		}
		return j.store.Save(job)
	default:
		return j.finish(job)
	}
}

func (j *Jobs) advancePurgeCollection(job Job) error {
	if err := j.driver.DeleteCollectionSchema(job.PurgeCollection.CollectionID); err != nil {
		return j.store.Save(job)
	}
	return j.finish(job)
}

func (j *Jobs) advancePurgeDatabase(job Job) error {
	if err := j.driver.DeleteDatabaseSchema(job.PurgeDatabase.DatabaseID); err != nil {
		return j.store.Save(job)
	}
	return j.finish(job)
}

func (j *Jobs) finish(job Job) error {
	return j.store.MoveToHistory(job.ID)
}
