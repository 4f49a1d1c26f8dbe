// Package node implements a joining node's cluster-admission handshake:
// retrying the Root service's Join RPC against a candidate address list
// until one succeeds, with exponential backoff.
//
// Grounded on the original implementation's bootstrap.rs try_join_cluster,
// which retries with backoff doubling from 1s up to a 120s cap. The
// original uses a blocking std::thread::sleep between attempts; per
// spec.md's own open question about that call, this uses a cooperative
// time.NewTimer inside a select against ctx.Done() instead, so a shutdown
// signal during join doesn't have to wait out the sleep.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/sekas/sekas/internal/transport"
	"github.com/sekas/sekas/pkg/log"
)

// MaxJoinBackoff is the retry interval ceiling for TryJoinCluster.
const MaxJoinBackoff = 120 * time.Second

const initialJoinBackoff = time.Second

type joinAttempter func(addr string) (transport.JoinNodeResponse, error)

// TryJoinCluster asks the addresses in joinList, in order, to admit
// localAddr into the cluster, retrying with exponential backoff until one
// succeeds or ctx is canceled.
func TryJoinCluster(ctx context.Context, localAddr string, joinList []string, cpuNums uint32) (transport.JoinNodeResponse, error) {
	filtered := filterSelf(localAddr, joinList)
	if len(filtered) == 0 {
		return transport.JoinNodeResponse{}, fmt.Errorf("the filtered join list is empty")
	}
	return retryJoin(ctx, filtered, func(addr string) (transport.JoinNodeResponse, error) {
		c, err := transport.Dial(addr)
		if err != nil {
			return transport.JoinNodeResponse{}, err
		}
		defer c.Close()
		return c.Join(localAddr, cpuNums)
	}, initialJoinBackoff, MaxJoinBackoff)
}

func filterSelf(localAddr string, joinList []string) []string {
	out := make([]string, 0, len(joinList))
	for _, addr := range joinList {
		if addr != localAddr {
			out = append(out, addr)
		}
	}
	return out
}

func retryJoin(ctx context.Context, addrs []string, attempt joinAttempter, initialBackoff, maxBackoff time.Duration) (transport.JoinNodeResponse, error) {
	logger := log.WithComponent("node")
	backoff := initialBackoff
	for try := 1; ; try++ {
		for _, addr := range addrs {
			resp, err := attempt(addr)
			if err == nil {
				return resp, nil
			}
			logger.Warn().Err(err).Str("addr", addr).Int("attempt", try).Msg("failed to join cluster")
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return transport.JoinNodeResponse{}, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
