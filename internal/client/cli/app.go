package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/client/client"
	"github.com/dmitrijs2005/keepr/internal/client/config"
	"github.com/dmitrijs2005/keepr/internal/client/services"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/filex"
	"github.com/dmitrijs2005/keepr/internal/keeps"
	"github.com/dmitrijs2005/keepr/internal/keys"
	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// session is what the commands need from services.Session.
type session interface {
	Connect(ctx context.Context, signer keys.Signer) error
	Disconnect(ctx context.Context) error
	Wallet() (ethcommon.Address, bool)
	Online() bool
	Keeps() keeps.Service
	Ping(ctx context.Context) error
	ForgetKey(ctx context.Context) error
	Close() error
}

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	vault  services.VaultService

	// set up by NewApp and handed to the session after unlock
	apiClient  client.Client
	store      storage.Store
	registries services.RegistryFactory

	session session
	closers []func()

	mu     sync.RWMutex
	Mode   Mode
	reader *bufio.Reader
	out    io.Writer
}

// NewApp prepares everything that does not need the vault passphrase: the
// local database, the content store, the registry and the server client.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewConsoleLogger(logging.ParseLevel(c.LogLevel))

	a := &App{
		config: c,
		logger: logger.With("module", "cli"),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	dataDir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dataDir

	db, err := client.InitDatabase(ctx, c.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	a.vault = services.NewVaultService(db)

	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	registries, closeRegistries, err := newRegistryFactory(ctx, c, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registries = registries
	a.closers = append(a.closers, closeRegistries)

	if c.ServerEndpointAddr != "" {
		apiClient, err := client.NewKeeprClient(c.ServerEndpointAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.apiClient = apiClient
	}

	return a, nil
}

// openSession builds the wallet session once the vault is unlocked.
func (a *App) openSession(ctx context.Context, masterKey []byte) error {
	s, err := services.NewSession(ctx, a.apiClient, a.store, a.vault.KeyCache(masterKey), a.registries, a.logger,
		keeps.WithMaxPayload(a.config.MaxPayload))
	if err != nil {
		return err
	}
	a.session = s
	return nil
}

func openStore(ctx context.Context, c *config.Config) (storage.Store, func(), error) {
	switch c.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryStore(), func() {}, nil

	case config.StorageBadger:
		dir, err := filex.EnsureDir(c.ContentDir())
		if err != nil {
			return nil, nil, err
		}
		s, err := storage.OpenBadgerStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open content store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case config.StorageS3:
		s, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3Endpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil

	case config.StorageIPFS:
		return storage.NewIPFSStore(storage.IPFSConfig{
			APIURL:     c.IPFSAPIURL,
			GatewayURL: c.IPFSGatewayURL,
			JWT:        c.IPFSJWT,
		}), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
}

// newRegistryFactory returns a factory for wallet-bound registries. The
// in-process ledger is created once and shared, so keeps survive reconnects
// for the lifetime of the process.
func newRegistryFactory(ctx context.Context, c *config.Config, logger logging.Logger) (services.RegistryFactory, func(), error) {
	cc := chain.ConnectConfig{
		Backend:  c.ChainBackend,
		RPCURL:   c.ChainRPCURL,
		Contract: c.ContractAddress,
		ChainID:  c.ChainID,
	}

	if cc.Backend == "" || cc.Backend == chain.BackendMemory {
		ledger, closeLedger, err := chain.Connect(ctx, cc, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		return func(context.Context, chain.Transactor) (chain.Registry, func(), error) {
			return ledger, func() {}, nil
		}, closeLedger, nil
	}

	return func(ctx context.Context, signer chain.Transactor) (chain.Registry, func(), error) {
		return chain.Connect(ctx, cc, signer, logger)
	}, func() {}, nil
}

func (a *App) getMode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Mode
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.mu.Unlock()

	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) isConnected() bool {
	if a.session == nil {
		return false
	}
	_, ok := a.session.Wallet()
	return ok
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	if a.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.session.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

// Close releases the session and everything NewApp opened, newest first.
func (a *App) Close() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn(context.Background(), "closing session", "error", err)
		}
		a.session = nil
	} else if a.apiClient != nil {
		_ = a.apiClient.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ShowConfig prints the effective configuration without secrets.
func (a *App) ShowConfig(ctx context.Context) error {
	c := a.config
	rows := [][2]string{
		{"server", c.ServerEndpointAddr},
		{"chain backend", c.ChainBackend},
		{"chain rpc", c.ChainRPCURL},
		{"contract", c.ContractAddress},
		{"chain id", fmt.Sprint(c.ChainID)},
		{"storage", c.StorageBackend},
		{"data dir", c.DataDir},
		{"max payload", fmt.Sprintf("%d bytes", c.MaxPayload)},
	}
	switch c.StorageBackend {
	case config.StorageS3:
		rows = append(rows, [2]string{"s3 bucket", c.S3Bucket}, [2]string{"s3 endpoint", c.S3Endpoint})
	case config.StorageIPFS:
		rows = append(rows, [2]string{"ipfs api", c.IPFSAPIURL}, [2]string{"ipfs gateway", c.IPFSGatewayURL})
	}
	for _, r := range rows {
		fmt.Fprintf(a.out, "%-14s %s\n", r[0]+":", r[1])
	}
	return nil
}

// payloadLimit is used in prompts.
func (a *App) payloadLimit() int {
	if a.config != nil && a.config.MaxPayload > 0 {
		return a.config.MaxPayload
	}
	return common.MaxPayloadSize
}
