package root

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeJobStore struct {
	jobs    map[uint64]Job
	history []uint64
	nextID  uint64
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uint64]Job)}
}

func (s *fakeJobStore) ListOngoing() ([]Job, error) {
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (s *fakeJobStore) Save(j Job) error {
	if j.ID == 0 {
		s.nextID++
		j.ID = s.nextID
	}
	s.jobs[j.ID] = j
	return nil
}

func (s *fakeJobStore) MoveToHistory(id uint64) error {
	delete(s.jobs, id)
	s.history = append(s.history, id)
	return nil
}

type fakeDriver struct {
	failShards map[uint64]bool
	allocFail  bool
}

func (d *fakeDriver) CreateShardReplica(groupID, shardID uint64) error {
	if d.failShards[shardID] {
		return errTest
	}
	return nil
}
func (d *fakeDriver) TombstoneShard(shardID uint64) error { return nil }
func (d *fakeDriver) AllocateReplicaNode(groupID uint64) (uint64, error) {
	if d.allocFail {
		return 0, errTest
	}
	return 100, nil
}
func (d *fakeDriver) CreateGroupReplica(groupID, nodeID uint64) error   { return nil }
func (d *fakeDriver) RemoveGroupReplica(groupID, nodeID uint64) error   { return nil }
func (d *fakeDriver) DeleteCollectionSchema(collectionID uint64) error { return nil }
func (d *fakeDriver) DeleteDatabaseSchema(databaseID uint64) error     { return nil }

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test error" }

func TestCreateCollectionJobFinishesWhenAllShardsCreated(t *testing.T) {
	store := newFakeJobStore()
	driver := &fakeDriver{failShards: map[uint64]bool{}}
	j := NewJobs(store, driver)

	require.NoError(t, j.Submit(Job{CreateCollection: &CreateCollectionJob{
		Status:     CreateCollectionCreating,
		WaitCreate: []uint64{1, 2},
	}}, false))

	require.NoError(t, j.AdvanceJobs())
	require.Len(t, store.history, 1)
	require.Empty(t, store.jobs)
}

func TestCreateCollectionJobRetriesFailedShard(t *testing.T) {
	store := newFakeJobStore()
	driver := &fakeDriver{failShards: map[uint64]bool{2: true}}
	j := NewJobs(store, driver)

	require.NoError(t, j.Submit(Job{CreateCollection: &CreateCollectionJob{
		Status:     CreateCollectionCreating,
		WaitCreate: []uint64{1, 2},
	}}, false))

	require.NoError(t, j.AdvanceJobs())
	require.Empty(t, store.history)
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		require.Equal(t, []uint64{2}, job.CreateCollection.WaitCreate)
	}
}

func TestCreateOneGroupAbortsAfterRetryExhaustion(t *testing.T) {
	store := newFakeJobStore()
	driver := &fakeDriver{allocFail: true}
	j := NewJobs(store, driver)

	require.NoError(t, j.Submit(Job{CreateOneGroup: &CreateOneGroupJob{
		Status:              CreateOneGroupAllocating,
		RequestReplicaCount: 1,
		CreateRetry:         maxCreateGroupRetries - 1,
	}}, false))

	require.NoError(t, j.AdvanceJobs())
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		require.Equal(t, CreateOneGroupRollbacking, job.CreateOneGroup.Status)
	}
}

func TestPurgeDatabaseJobFinishesOnSuccess(t *testing.T) {
	store := newFakeJobStore()
	driver := &fakeDriver{}
	j := NewJobs(store, driver)

	require.NoError(t, j.Submit(Job{PurgeDatabase: &PurgeDatabaseJob{DatabaseID: 5}}, false))
	require.NoError(t, j.AdvanceJobs())
	require.Len(t, store.history, 1)
}

func TestSubmitWakeSignalsWaiter(t *testing.T) {
	store := newFakeJobStore()
	driver := &fakeDriver{}
	j := NewJobs(store, driver)

	done := make(chan struct{})
	go func() {
		j.WaitMoreJobs()
		close(done)
	}()

	require.NoError(t, j.Submit(Job{PurgeDatabase: &PurgeDatabaseJob{DatabaseID: 1}}, true))

	select {
	case <-done:
	default:
		<-done
	}
}
