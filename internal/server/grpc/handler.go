package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// toStatus maps service errors to gRPC codes. Session failures all read the
// same to the caller.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrNoToken):
		return status.Error(codes.Unauthenticated, "authentication required")
	case common.IsSessionError(err):
		return status.Error(codes.Unauthenticated, "session invalid")
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) VerifyToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	id, err := s.verifier.Verify(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"userId": id.UserID,
		"email":  id.Email,
		"role":   string(id.Role),
	})
	if err != nil {
		s.logger.Error(ctx, "failed to build response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// GetUser is open to the user themselves and to admins.
func (s *GRPCServer) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	caller, ok := identityFrom(ctx)
	if !ok {
		return nil, toStatus(common.ErrNoToken)
	}
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}
	if caller.UserID != req.GetValue() {
		if err := services.Authorize(caller, models.RoleAdmin); err != nil {
			return nil, toStatus(err)
		}
	}

	u, err := s.users.GetUser(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"name":          u.Name,
		"role":          string(u.Role),
		"emailVerified": u.EmailVerified,
		"phone":         u.Phone,
		"address":       u.Address,
		"createdAt":     u.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error(ctx, "failed to build response", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}
