package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/rpc"
	"github.com/dmitrijs2005/keepr/internal/server/models"
	"github.com/dmitrijs2005/keepr/internal/server/services"
	"google.golang.org/grpc"
)

type AuthService interface {
	Challenge(ctx context.Context, address string) (*models.Challenge, string, error)
	Login(ctx context.Context, address, nonce string, sig []byte) (*services.AccessToken, error)
}

type DirectoryService interface {
	Publish(ctx context.Context, caller string, publicKey, sig []byte) error
	Lookup(ctx context.Context, address string) ([]byte, error)
}

type ContactService interface {
	Register(ctx context.Context, caller, contentAddress string, keepID uint64, contacts []models.Contact) (int, error)
}

type GRPCServer struct {
	rpc.UnimplementedKeeprServer
	address   string
	auth      AuthService
	directory DirectoryService
	contacts  ContactService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, as AuthService, ds DirectoryService, cs ContactService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		auth:      as,
		directory: ds,
		contacts:  cs,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	rpc.RegisterKeeprServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
