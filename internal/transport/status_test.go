package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sekas/sekas/pkg/sekaserr"
)

func TestToStatusMapsErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"invalid-argument", sekaserr.InvalidArgument("bad %s", "request"), codes.InvalidArgument},
		{"cas-failed", sekaserr.CasFailed(0, 0, nil, false), codes.Aborted},
		{"not-leader", sekaserr.NotLeader(1, 2, "node2"), codes.Unavailable},
		{"not-root-leader", sekaserr.NotRootLeader(1, "node2"), codes.Unavailable},
		{"group-not-found", sekaserr.GroupNotFound(7), codes.NotFound},
		{"database-not-found", sekaserr.DatabaseNotFound("db"), codes.NotFound},
		{"collection-not-found", sekaserr.CollectionNotFound("coll"), codes.NotFound},
		{"resource-exhausted", sekaserr.ResourceExhausted("full"), codes.ResourceExhausted},
		{"invalid-data", sekaserr.InvalidData("corrupt"), codes.DataLoss},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			st, ok := status.FromError(toStatus(c.err))
			require.True(t, ok)
			require.Equal(t, c.code, st.Code())
		})
	}
}

func TestToStatusNilIsNil(t *testing.T) {
	require.NoError(t, toStatus(nil))
}
