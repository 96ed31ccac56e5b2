package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/DRSN-tech/taste-backend/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func GRPCErrorResponse(err error) error {
	switch {
	case errors.Is(err, e.ErrInvalidUserID),
		errors.Is(err, e.ErrInvalidLimit),
		errors.Is(err, e.ErrStatusBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrUserNotFound):
		return status.Error(codes.NotFound, e.ErrUserNotFound.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}

// intField читает целое число из поля запроса. required=false допускает отсутствие поля (возвращается 0).
func intField(req *structpb.Struct, name string, required bool) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: missing field %s", e.ErrStatusBadRequest, name)
		}
		return 0, nil
	}

	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: field %s must be a number", e.ErrStatusBadRequest, name)
	}
	f := num.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("%w: field %s must be an integer", e.ErrStatusBadRequest, name)
	}

	return int64(f), nil
}

func userIDField(req *structpb.Struct, name string) (int64, error) {
	id, err := intField(req, name, true)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, e.Wrap(name, e.ErrInvalidUserID)
	}
	return id, nil
}
