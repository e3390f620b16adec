package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/keepr/internal/chain"
	"github.com/dmitrijs2005/keepr/internal/client/client"
	"github.com/dmitrijs2005/keepr/internal/client/config"
	"github.com/dmitrijs2005/keepr/internal/client/services"
	"github.com/dmitrijs2005/keepr/internal/common"
	"github.com/dmitrijs2005/keepr/internal/keeps"
	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/dmitrijs2005/keepr/internal/storage"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// directory is the key directory shared by every fake client in a test.
type directory struct {
	mu   sync.Mutex
	keys map[ethcommon.Address][]byte
}

type fakeClient struct {
	dir     *directory
	pingErr error
	signer  client.Signer
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) SignIn(ctx context.Context, s client.Signer) error {
	f.signer = s
	return nil
}

func (f *fakeClient) SignOut() { f.signer = nil }

func (f *fakeClient) Address() (ethcommon.Address, bool) {
	if f.signer == nil {
		return ethcommon.Address{}, false
	}
	return f.signer.Address(), true
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeClient) PublishKey(ctx context.Context, a ethcommon.Address, pub, sig []byte) error {
	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()
	f.dir.keys[a] = pub
	return nil
}

func (f *fakeClient) LookupKey(ctx context.Context, a ethcommon.Address) ([]byte, error) {
	f.dir.mu.Lock()
	defer f.dir.mu.Unlock()
	if pub, ok := f.dir.keys[a]; ok {
		return pub, nil
	}
	return nil, common.ErrEncryptionKeyUnavailable
}

func (f *fakeClient) RegisterContacts(ctx context.Context, cid string, id uint64, c []keeps.Contact) error {
	return nil
}

// stubSecrets makes getSecret return the given values in order.
func stubSecrets(t *testing.T, secrets ...string) {
	t.Helper()
	orig := getSecret
	getSecret = func(prompt string, w io.Writer) ([]byte, error) {
		if len(secrets) == 0 {
			return nil, io.EOF
		}
		s := secrets[0]
		secrets = secrets[1:]
		return []byte(s), nil
	}
	t.Cleanup(func() { getSecret = orig })
}

type wallet struct {
	hex  string
	addr string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{
		hex:  hex.EncodeToString(crypto.FromECDSA(k)),
		addr: crypto.PubkeyToAddress(k.PublicKey).Hex(),
	}
}

type testEnv struct {
	ledger *chain.MemoryLedger
	store  *storage.MemoryStore
	dir    *directory
}

func newTestEnv() *testEnv {
	return &testEnv{
		ledger: chain.NewMemoryLedger(chain.DefaultConfig(), time.Now),
		store:  storage.NewMemoryStore(),
		dir:    &directory{keys: make(map[ethcommon.Address][]byte)},
	}
}

// newApp builds an App over the shared in-memory ledger and content store
// with its own vault database, then unlocks it.
func (e *testEnv) newApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	ctx := context.Background()

	dataDir := t.TempDir()
	db, err := client.InitDatabase(ctx, filepath.Join(dataDir, "keepr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	out := &bytes.Buffer{}
	a := &App{
		config: &config.Config{
			ChainBackend:   chain.BackendMemory,
			StorageBackend: config.StorageMemory,
			DataDir:        dataDir,
			MaxPayload:     1024,
		},
		logger:    logging.NewNop(),
		db:        db,
		vault:     services.NewVaultService(db),
		apiClient: &fakeClient{dir: e.dir},
		store:     e.store,
		registries: func(context.Context, chain.Transactor) (chain.Registry, func(), error) {
			return e.ledger, func() {}, nil
		},
		reader: rdr(""),
		out:    out,
	}

	stubSecrets(t, "vault pass", "vault pass")
	require.NoError(t, a.Unlock(ctx))
	t.Cleanup(a.Close)
	return a, out
}

func connect(t *testing.T, a *App, w wallet) {
	t.Helper()
	stubSecrets(t, w.hex)
	require.NoError(t, a.Connect(context.Background()))
}

func TestApp_CreateListRevealCancel(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv()
	alice, aliceOut := e.newApp(t)
	bob, bobOut := e.newApp(t)
	aliceW, bobW := newWallet(t), newWallet(t)

	connect(t, bob, bobW)
	assert.Contains(t, bobOut.String(), "encryption key published")
	assert.Equal(t, ModeOnline, bob.getMode())
	connect(t, alice, aliceW)

	alice.reader = rdr(strings.Join([]string{
		"Letter", "For you", "line one", "line two", "",
		bobW.addr, "bob@example.com", "", "3d",
	}, "\n") + "\n")
	require.NoError(t, alice.Create(ctx))
	assert.Contains(t, aliceOut.String(), "Keep #1 created")

	found, err := alice.session.Keeps().Discover(ctx, ethcommon.HexToAddress(aliceW.addr))
	require.NoError(t, err)
	require.Len(t, found.Created, 1)
	cid := found.Created[0].ContentAddress

	bobOut.Reset()
	require.NoError(t, bob.List(ctx))
	assert.Contains(t, bobOut.String(), "Created (0)")
	assert.Contains(t, bobOut.String(), "Received (1)")
	assert.Contains(t, bobOut.String(), "Letter")

	bobOut.Reset()
	require.NoError(t, bob.Reveal(ctx, []string{cid}))
	assert.Contains(t, bobOut.String(), "line one\nline two")
	assert.Contains(t, bobOut.String(), "Note: unlocks")

	assert.Error(t, bob.Claim(ctx, []string{"#1"}))

	carol := newWallet(t)
	aliceOut.Reset()
	require.NoError(t, alice.Recipient(ctx, []string{"1", carol.addr}))
	assert.Contains(t, aliceOut.String(), "now goes to "+carol.addr)
	k, err := e.ledger.GetKeep(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, carol.addr, k.Recipient.Hex())

	aliceOut.Reset()
	require.NoError(t, alice.Cancel(ctx, []string{"1"}))
	assert.Contains(t, aliceOut.String(), "Keep #1 cancelled.")
}

func TestApp_CreateFileAndSaveOnReveal(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv()
	alice, _ := e.newApp(t)
	bob, bobOut := e.newApp(t)
	aliceW, bobW := newWallet(t), newWallet(t)
	connect(t, bob, bobW)
	connect(t, alice, aliceW)

	src := filepath.Join(t.TempDir(), "will.txt")
	require.NoError(t, os.WriteFile(src, []byte("the house goes to bob"), 0o600))

	alice.reader = rdr(strings.Join([]string{src, "", "", bobW.addr, "", "", "30d"}, "\n") + "\n")
	require.NoError(t, alice.CreateFile(ctx))

	found, err := bob.session.Keeps().Discover(ctx, ethcommon.HexToAddress(bobW.addr))
	require.NoError(t, err)
	require.Len(t, found.Received, 1)
	assert.Equal(t, "will.txt", found.Received[0].Title)

	dest := filepath.Join(t.TempDir(), "out.txt")
	bob.reader = rdr(dest + "\n")
	require.NoError(t, bob.Reveal(ctx, []string{found.Received[0].ContentAddress}))
	assert.Contains(t, bobOut.String(), "Saved 21 bytes")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "the house goes to bob", string(got))
}

func TestApp_CreateFileTooLarge(t *testing.T) {
	e := newTestEnv()
	a, _ := e.newApp(t)
	connect(t, a, newWallet(t))

	src := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(src, make([]byte, 2048), 0o600))

	a.reader = rdr(src + "\n")
	assert.ErrorIs(t, a.CreateFile(context.Background()), common.ErrPayloadTooLarge)
}

func TestApp_CommandsNeedWallet(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv()
	a, _ := e.newApp(t)

	assert.False(t, a.isConnected())
	assert.ErrorIs(t, a.List(ctx), common.ErrNoWalletProvider)
	assert.ErrorIs(t, a.Reveal(ctx, []string{"bafy"}), common.ErrNoWalletProvider)
}

func TestApp_ConnectRejectsBadKey(t *testing.T) {
	e := newTestEnv()
	a, _ := e.newApp(t)

	stubSecrets(t, "not-a-key")
	assert.Error(t, a.Connect(context.Background()))
	assert.False(t, a.isConnected())
}

func TestApp_DisconnectAndRememberWallet(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv()
	a, out := e.newApp(t)
	w := newWallet(t)

	connect(t, a, w)
	assert.True(t, a.isConnected())
	assert.Contains(t, a.getStatus(), w.addr[:6])

	require.NoError(t, a.Disconnect(ctx))
	assert.False(t, a.isConnected())
	assert.Contains(t, out.String(), "Wallet disconnected.")

	out.Reset()
	connect(t, a, w)
	assert.Contains(t, out.String(), "Last connected wallet: "+w.addr)
}

func TestApp_Unlock(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv()
	a, out := e.newApp(t)
	assert.Contains(t, out.String(), "Choose a passphrase")

	t.Run("wrong passphrase three times", func(t *testing.T) {
		out.Reset()
		stubSecrets(t, "a", "b", "c")
		err := a.Unlock(ctx)
		assert.ErrorIs(t, err, services.ErrWrongPassphrase)
		assert.Equal(t, 3, strings.Count(out.String(), "Wrong passphrase."))
	})

	t.Run("right passphrase after a typo", func(t *testing.T) {
		stubSecrets(t, "typo", "vault pass")
		assert.NoError(t, a.Unlock(ctx))
	})
}

func TestApp_UnlockFreshVaultNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	db, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "keepr.db"))
	require.NoError(t, err)
	defer db.Close()

	out := &bytes.Buffer{}
	a := &App{
		config:     &config.Config{},
		logger:     logging.NewNop(),
		vault:      services.NewVaultService(db),
		store:      storage.NewMemoryStore(),
		registries: func(context.Context, chain.Transactor) (chain.Registry, func(), error) { return chain.NewMemoryLedger(chain.DefaultConfig(), nil), func() {}, nil },
		out:        out,
	}

	stubSecrets(t, "one", "two", "secret", "secret")
	require.NoError(t, a.Unlock(ctx))
	assert.Contains(t, out.String(), "Passphrases do not match.")
	assert.NotNil(t, a.session)

	ok, err := a.vault.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApp_CheckOnline(t *testing.T) {
	e := newTestEnv()
	a, _ := e.newApp(t)
	fc := a.apiClient.(*fakeClient)

	a.checkOnline(context.Background())
	assert.Equal(t, ModeOnline, a.getMode())

	fc.pingErr = client.ErrUnavailable
	a.checkOnline(context.Background())
	assert.Equal(t, ModeOffline, a.getMode())
	assert.Equal(t, "(offline)", a.getStatus())
}

func TestApp_ShowConfigHidesSecrets(t *testing.T) {
	out := &bytes.Buffer{}
	a := &App{
		config: &config.Config{
			ServerEndpointAddr: "127.0.0.1:50051",
			StorageBackend:     config.StorageS3,
			S3Bucket:           "keepr",
			S3SecretKey:        "very-secret",
			IPFSJWT:            "jwt-secret",
			MaxPayload:         100,
		},
		out: out,
	}
	require.NoError(t, a.ShowConfig(context.Background()))

	s := out.String()
	assert.Contains(t, s, "127.0.0.1:50051")
	assert.Contains(t, s, "s3 bucket:")
	assert.Contains(t, s, "100 bytes")
	assert.NotContains(t, s, "very-secret")
	assert.NotContains(t, s, "jwt-secret")
}

func TestKeepID(t *testing.T) {
	a := &App{reader: rdr("#42\n"), out: io.Discard}

	id, err := a.keepID([]string{"7"})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)

	id, err = a.keepID(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = a.keepID([]string{"seven"})
	assert.Error(t, err)
}

func TestParseUnlockTime(t *testing.T) {
	ref := time.Date(2025, 1, 10, 8, 0, 0, 0, time.Local)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "30d", want: ref.AddDate(0, 0, 30)},
		{in: "72h", want: ref.Add(72 * time.Hour)},
		{in: "2030-01-02 15:04", want: time.Date(2030, 1, 2, 15, 4, 0, 0, time.Local)},
		{in: "2030-01-02", want: time.Date(2030, 1, 2, 0, 0, 0, 0, time.Local)},
		{in: "2030-01-02T15:04:05Z", want: time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)},
		{in: "", wantErr: true},
		{in: "-5d", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUnlockTime(tt.in, ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestNewRegistryFactory_MemorySharesLedger(t *testing.T) {
	ctx := context.Background()
	f, closeAll, err := newRegistryFactory(ctx, &config.Config{ChainBackend: chain.BackendMemory}, logging.NewNop())
	require.NoError(t, err)
	defer closeAll()

	r1, c1, err := f(ctx, nil)
	require.NoError(t, err)
	defer c1()
	r2, c2, err := f(ctx, nil)
	require.NoError(t, err)
	defer c2()
	assert.Same(t, r1, r2)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, closeStore, err := openStore(ctx, &config.Config{StorageBackend: config.StorageMemory})
	require.NoError(t, err)
	closeStore()
	assert.IsType(t, &storage.MemoryStore{}, s)

	s, closeStore, err = openStore(ctx, &config.Config{StorageBackend: config.StorageBadger, DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, s)
	closeStore()

	_, _, err = openStore(ctx, &config.Config{StorageBackend: "floppy"})
	assert.ErrorContains(t, err, "unknown storage backend")
}
