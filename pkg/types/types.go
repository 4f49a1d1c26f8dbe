// Package types holds the Sekas data-model structs shared across packages:
// shards, groups, replicas, nodes, collections, and databases.
package types

import "time"

// TxnIntentVersion is the reserved version marking a pending write intent.
const TxnIntentVersion uint64 = ^uint64(0)

// FirstUserCollectionID is the smallest collection id that can be created
// (and deleted) by users; ids below it are system collections.
const FirstUserCollectionID uint64 = 1 << 16

// ReplicaRole is a replica's raft membership role.
type ReplicaRole int

const (
	Voter ReplicaRole = iota
	Learner
	IncomingVoter
	DemotingVoter
)

func (r ReplicaRole) String() string {
	switch r {
	case Voter:
		return "Voter"
	case Learner:
		return "Learner"
	case IncomingVoter:
		return "IncomingVoter"
	case DemotingVoter:
		return "DemotingVoter"
	default:
		return "Unknown"
	}
}

// Replica is a single raft member of a Group.
type Replica struct {
	ID     uint64
	NodeID uint64
	Role   ReplicaRole
}

// Shard is a contiguous key range within a collection.
type Shard struct {
	ID           uint64
	CollectionID uint64
	Start        []byte
	End          []byte // exclusive; nil means unbounded
}

// Contains reports whether key falls within [Start, End).
func (s *Shard) Contains(key []byte) bool {
	if len(s.Start) > 0 && compareBytes(key, s.Start) < 0 {
		return false
	}
	if len(s.End) > 0 && compareBytes(key, s.End) >= 0 {
		return false
	}
	return true
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Group is a raft-replicated unit owning a set of shards.
type Group struct {
	ID       uint64
	Epoch    uint64
	Replicas []Replica
	Shards   []uint64
}

// NodeStatus is the node lifecycle state (spec §3, §4.9).
type NodeStatus int

const (
	Active NodeStatus = iota
	Cordoned
	Draining
	Drained
	Decommissioned
)

func (s NodeStatus) String() string {
	switch s {
	case Active:
		return "Active"
	case Cordoned:
		return "Cordoned"
	case Draining:
		return "Draining"
	case Drained:
		return "Drained"
	case Decommissioned:
		return "Decommissioned"
	default:
		return "Unknown"
	}
}

// Node is a storage node in the cluster.
type Node struct {
	ID            uint64
	Addr          string
	Capacity      uint32 // advertised cpu_nums
	Status        NodeStatus
	LastHeartbeat time.Time
}

// Collection is a named, numerically-identified group of shards.
type Collection struct {
	ID         uint64
	DatabaseID uint64
	Name       string
}

// Database is a named, numerically-identified collection of collections.
type Database struct {
	ID   uint64
	Name string
}

// NodeIdent is persisted once per data directory and determines
// bootstrap-vs-join behavior on startup.
type NodeIdent struct {
	ClusterID []byte
	NodeID    uint64
}
