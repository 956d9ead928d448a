package grpc

import (
	"errors"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/mutation"
	"github.com/litetable/litetable-filter/internal/scan"
	"github.com/litetable/litetable-filter/internal/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type table struct {
	store    storage.RowStore
	executor *scan.Executor
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, filter.ErrInvalidFilter),
		errors.Is(err, mutation.ErrInvalidMutation),
		errors.Is(err, storage.ErrInvalidRange):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrFamilyNotAllowed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, storage.ErrDataUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
