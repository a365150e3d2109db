package server

import (
	"context"
	"errors"

	errorsmod "cosmossdk.io/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"VaultLedger/internal/query"
	"VaultLedger/internal/types"
)

var reasonCodes = []struct {
	err  *errorsmod.Error
	code codes.Code
}{
	{types.ErrUnauthorized, codes.PermissionDenied},
	{types.ErrSlippageExceeded, codes.Aborted},
	{types.ErrBelowThreshold, codes.FailedPrecondition},
	{types.ErrPoolNotFound, codes.NotFound},
	{types.ErrPositionNotFound, codes.NotFound},
	{types.ErrUnknownComponent, codes.NotFound},
	{types.ErrInvalidPair, codes.InvalidArgument},
	{types.ErrInvalidArgument, codes.InvalidArgument},
	{types.ErrInsufficientFunds, codes.FailedPrecondition},
	{types.ErrInsufficientLiquidity, codes.FailedPrecondition},
	{types.ErrReentrantCall, codes.Aborted},
	{types.ErrInvariantViolation, codes.Internal},
}

// toStatus maps a domain error to a gRPC status. The message starts with
// the taxonomy reason so clients can branch on it.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, rc := range reasonCodes {
		if errors.Is(err, rc.err) {
			return status.Errorf(rc.code, "%s: %v", types.Reason(err), err)
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, query.ErrNoDatabase):
		return status.Error(codes.Unavailable, err.Error())
	}
	// registered errors report Unknown through GRPCStatus
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Err()
	}
	return status.Errorf(codes.Internal, "internal: %v", err)
}
