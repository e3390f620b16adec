package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/cryptox"
	"github.com/dmitrijs2005/keepr/internal/rpc"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC codes. Unknown errors are logged and
// reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidAddress),
		errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, cryptox.ErrInvalidPublicKey):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) Challenge(ctx context.Context, req *rpc.ChallengeRequest) (*rpc.ChallengeResponse, error) {
	c, msg, err := s.auth.Challenge(ctx, req.Address)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.ChallengeResponse{Nonce: c.Nonce, Message: msg, ExpiresAt: c.ExpiresAt}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	tok, err := s.auth.Login(ctx, req.Address, req.Nonce, req.Signature)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "signed in", "address", req.Address)
	return &rpc.LoginResponse{AccessToken: tok.Token, ExpiresAt: tok.ExpiresAt}, nil
}

func (s *GRPCServer) PublishKey(ctx context.Context, req *rpc.PublishKeyRequest) (*rpc.PublishKeyResponse, error) {
	caller := AddressFromContext(ctx)
	if err := s.directory.Publish(ctx, caller, req.PublicKey, req.Signature); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "public key published", "address", caller)
	return &rpc.PublishKeyResponse{}, nil
}

func (s *GRPCServer) LookupKey(ctx context.Context, req *rpc.LookupKeyRequest) (*rpc.LookupKeyResponse, error) {
	pub, err := s.directory.Lookup(ctx, req.Address)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.LookupKeyResponse{Address: req.Address, PublicKey: pub}, nil
}

func (s *GRPCServer) RegisterContacts(ctx context.Context, req *rpc.RegisterContactsRequest) (*rpc.RegisterContactsResponse, error) {
	contacts := make([]models.Contact, 0, len(req.Contacts))
	for _, c := range req.Contacts {
		contacts = append(contacts, models.Contact{Role: c.Role, Address: c.Address, Email: c.Email})
	}

	n, err := s.contacts.Register(ctx, AddressFromContext(ctx), req.ContentAddress, req.KeepID, contacts)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.RegisterContactsResponse{Stored: n}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}
