/*
Package log provides structured logging for Sekas using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

Sekas's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("root")                    │          │
	│  │  - WithGroupID(groupID)                     │          │
	│  │  - WithShardID(shardID)                     │          │
	│  │  - WithReplicaID(replicaID)                 │          │
	│  │  - WithTxnID(startVersion)                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "root",                     │          │
	│  │    "group_id": 1,                           │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "step root leader"            │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF step root leader component=root group_id=1 │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all Sekas packages

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Context Loggers:
  - WithComponent: tag logs with a subsystem name (root, replica, latch, ...)
  - WithGroupID/WithShardID/WithReplicaID: identify which raft group, shard,
    or replica a log line is about
  - WithTxnID: tag logs with the transaction's start_version

# Usage

Initializing the Logger:

	import "github.com/sekas/sekas/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("cluster initialized successfully")
	log.Debug("checking node status")
	log.Warn("heartbeat queue backing off")
	log.Error("failed to propose write batch")
	log.Fatal("cannot start without a data directory") // exits process

Component and Entity Loggers:

	rootLog := log.WithComponent("root")
	rootLog.Info().Msg("became root leader")

	groupLog := log.WithGroupID(groupID)
	groupLog.Warn().Uint64("shard_id", shardID).Msg("shard not yet replicated")

	txnLog := log.WithTxnID(startVersion)
	txnLog.Error().Err(err).Msg("commit_intent failed")

# Integration Points

This package is used by:

  - internal/root: logs root-leader lifecycle, job advancement, scheduling
  - internal/replica: logs leadership changes and FSM apply errors
  - internal/group: logs per-group evaluator/latch/replica wiring
  - internal/transport: logs RPC-level failures before converting to a
    gRPC status

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component/entity-specific loggers instead of the bare global one
  - Log errors with .Err() so the error is a structured field, not a string

Don't:
  - Log secrets, tokens, or raw key/value payloads
  - Use Debug level in production
  - Concatenate strings into the message (use typed fields)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
