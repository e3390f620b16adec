package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/keeps"
	"github.com/dmitrijs2005/keepr/internal/rpc"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const lookupTimeout = 12 * time.Second

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.KeeprClient

	mu          sync.RWMutex
	accessToken string
	signer      Signer
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// accessTokenInterceptor attaches the current token. When the server reports
// an expired token and a wallet is still connected, it signs in again and
// retries the call once.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == rpc.MethodChallenge || method == rpc.MethodLogin {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	s.mu.RLock()
	signer := s.signer
	s.mu.RUnlock()
	if signer == nil {
		return err
	}

	if err := s.SignIn(ctx, signer); err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
}

func NewKeeprClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewKeeprClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SignIn answers a login challenge with the wallet and keeps the issued
// token. The wallet is remembered so an expired token can be renewed.
func (s *GRPCClient) SignIn(ctx context.Context, signer Signer) error {
	address := strings.ToLower(signer.Address().Hex())

	ch, err := s.client.Challenge(ctx, &rpc.ChallengeRequest{Address: address})
	if err != nil {
		return s.mapError(err)
	}
	if ch.Nonce == "" || !strings.Contains(ch.Message, ch.Nonce) {
		return fmt.Errorf("%w: challenge does not carry its nonce", ErrInvalidResponse)
	}

	sig, err := signer.SignMessage(ctx, []byte(ch.Message))
	if err != nil {
		return fmt.Errorf("%w: sign challenge: %v", common.ErrNoWalletProvider, err)
	}

	resp, err := s.client.Login(ctx, &rpc.LoginRequest{Address: address, Nonce: ch.Nonce, Signature: sig})
	if err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.signer = signer
	s.mu.Unlock()
	return nil
}

func (s *GRPCClient) SignOut() {
	s.mu.Lock()
	s.accessToken = ""
	s.signer = nil
	s.mu.Unlock()
}

// Address reports the signed-in wallet.
func (s *GRPCClient) Address() (ethcommon.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer == nil {
		return ethcommon.Address{}, false
	}
	return s.signer.Address(), true
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// PublishKey stores the caller's encryption key in the server directory.
// The server takes the owner from the session, so address must be the
// signed-in wallet.
func (s *GRPCClient) PublishKey(ctx context.Context, address ethcommon.Address, publicKey, signature []byte) error {
	if current, ok := s.Address(); !ok || current != address {
		return ErrUnauthorized
	}

	_, err := s.client.PublishKey(ctx, &rpc.PublishKeyRequest{PublicKey: publicKey, Signature: signature})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) LookupKey(ctx context.Context, address ethcommon.Address) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	resp, err := s.client.LookupKey(ctx, &rpc.LookupKeyRequest{Address: strings.ToLower(address.Hex())})
	if err != nil {
		err = s.mapError(err)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrEncryptionKeyUnavailable
		}
		return nil, err
	}
	return resp.PublicKey, nil
}

func (s *GRPCClient) RegisterContacts(ctx context.Context, contentAddress string, keepID uint64, contacts []keeps.Contact) error {
	req := &rpc.RegisterContactsRequest{
		ContentAddress: contentAddress,
		KeepID:         keepID,
		Contacts:       make([]rpc.Contact, 0, len(contacts)),
	}
	for _, c := range contacts {
		req.Contacts = append(req.Contacts, rpc.Contact{
			Role:    string(c.Role),
			Address: strings.ToLower(c.Address.Hex()),
			Email:   c.Email,
		})
	}

	if _, err := s.client.RegisterContacts(ctx, req); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
