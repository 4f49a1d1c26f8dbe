/*
Package types defines the core data structures shared across Sekas:
nodes, groups, shards, replicas, collections, and databases.

# Architecture

The cluster's metadata forms a small hierarchy:

  - Database: a named collection of Collections.
  - Collection: a named, numerically-identified group of Shards.
  - Shard: a contiguous key range ([Start, End)) within a Collection,
    owned by exactly one Group at a time.
  - Group: a raft-replicated unit that owns a set of Shards and is
    itself made up of Replicas.
  - Replica: one raft member of a Group, hosted on a Node.
  - Node: a physical (or virtual) machine that hosts Replicas.

# Usage

Checking whether a key falls in a shard's range:

	shard := &types.Shard{Start: []byte("a"), End: []byte("m")}
	if shard.Contains(key) {
		// route to this shard's group
	}

Describing a node's lifecycle:

	node := types.Node{
		ID:       7,
		Addr:     "10.0.0.7:7070",
		Capacity: 4,
		Status:   types.Active,
	}
*/
package types
