package transport

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sekas/sekas/pkg/sekaserr"
)

// toStatus translates the closed sekaserr taxonomy (spec §7) into gRPC
// status codes at the RPC edge, the same role cuemby-warren/pkg/api/server.go
// plays with its fmt.Errorf-wrapped returns, but with an explicit code
// instead of leaving every error as codes.Unknown.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	var invalidArg *sekaserr.InvalidArgumentError
	var casFailed *sekaserr.CasFailedError
	var notLeader *sekaserr.NotLeaderError
	var notRootLeader *sekaserr.NotRootLeaderError
	var groupNotFound *sekaserr.GroupNotFoundError
	var dbNotFound *sekaserr.DatabaseNotFoundError
	var collNotFound *sekaserr.CollectionNotFoundError
	var resourceExhausted *sekaserr.ResourceExhaustedError
	var invalidData *sekaserr.InvalidDataError
	var ioErr *sekaserr.IoError

	switch {
	case errors.As(err, &invalidArg):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &casFailed):
		return status.Error(codes.Aborted, err.Error())
	case errors.As(err, &notLeader):
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &notRootLeader):
		return status.Error(codes.Unavailable, err.Error())
	case errors.As(err, &groupNotFound), errors.As(err, &dbNotFound), errors.As(err, &collNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &resourceExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.As(err, &invalidData):
		return status.Error(codes.DataLoss, err.Error())
	case errors.As(err, &ioErr):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
