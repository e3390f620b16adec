package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractAddr = ethcommon.HexToAddress("0x9999999999999999999999999999999999999999")

// fakeBackend answers contract calls from a method table. Methods it does
// not override panic through the nil embedded interface.
type fakeBackend struct {
	Backend
	abi     abi.ABI
	outputs map[string]func(args []interface{}) []interface{}
	logs    []types.Log
	calls   []string
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	method, err := f.abi.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method.Name)
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	fn, ok := f.outputs[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return method.Outputs.Pack(fn(args)...)
}

func (f *fakeBackend) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: number, Time: 1_700_000_000 + number.Uint64()}, nil
}

func keepOutputs(args []interface{}) []interface{} {
	id := args[0].(*big.Int).Uint64()
	if id != 7 {
		return []interface{}{
			ethcommon.Address{}, ethcommon.Address{}, ethcommon.Address{}, "",
			new(big.Int), new(big.Int), uint8(0), ethcommon.Address{}, "", "", "",
		}
	}
	return []interface{}{
		creator, recipient, fallback, "bafkreiabc",
		big.NewInt(1_800_000_000), big.NewInt(1_700_000_000), uint8(StatusClaimed), recipient,
		"text", "letter", "for later",
	}
}

func newFakeRegistry(t *testing.T) (*EthereumRegistry, *fakeBackend) {
	t.Helper()
	parsed, err := ParseABI()
	require.NoError(t, err)

	fb := &fakeBackend{
		abi: parsed,
		outputs: map[string]func([]interface{}) []interface{}{
			"minUnlockDelay": func([]interface{}) []interface{} { return []interface{}{big.NewInt(86400)} },
			"maxUnlockDelay": func([]interface{}) []interface{} { return []interface{}{big.NewInt(86400 * 365)} },
			"claimWindow":    func([]interface{}) []interface{} { return []interface{}{big.NewInt(86400 * 30)} },
			"platformFee":    func([]interface{}) []interface{} { return []interface{}{big.NewInt(1e15)} },
			"keepCount":      func([]interface{}) []interface{} { return []interface{}{big.NewInt(7)} },
			"getKeep":        keepOutputs,
			"keepIdByContent": func(args []interface{}) []interface{} {
				if args[0].(string) == "bafkreiabc" {
					return []interface{}{big.NewInt(7)}
				}
				return []interface{}{new(big.Int)}
			},
		},
	}
	r, err := NewEthereumRegistry(fb, contractAddr, big.NewInt(1337), nil, logging.NewNop())
	require.NoError(t, err)
	return r, fb
}

func TestEthereumRegistry_Config(t *testing.T) {
	r, _ := newFakeRegistry(t)
	cfg, err := r.Config(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.MinUnlockDelay)
	assert.Equal(t, 365*24*time.Hour, cfg.MaxUnlockDelay)
	assert.Equal(t, 30*24*time.Hour, cfg.ClaimWindow)
	assert.Equal(t, big.NewInt(1e15), cfg.PlatformFee)
}

func TestEthereumRegistry_GetKeep(t *testing.T) {
	r, _ := newFakeRegistry(t)
	k, err := r.GetKeep(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), k.ID)
	assert.Equal(t, creator, k.Creator)
	assert.Equal(t, recipient, k.Recipient)
	assert.Equal(t, fallback, k.Fallback)
	assert.Equal(t, "bafkreiabc", k.ContentAddress)
	assert.Equal(t, int64(1_800_000_000), k.UnlockTime.Unix())
	assert.Equal(t, StatusClaimed, k.Status)
	assert.Equal(t, "letter", k.Title)

	_, err = r.GetKeep(context.Background(), 3)
	assert.ErrorIs(t, err, ErrKeepNotFound)
}

func TestEthereumRegistry_FindByContentAddress(t *testing.T) {
	r, _ := newFakeRegistry(t)
	k, err := r.FindByContentAddress(context.Background(), "bafkreiabc")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), k.ID)

	_, err = r.FindByContentAddress(context.Background(), "bafkreiother")
	assert.ErrorIs(t, err, ErrKeepNotFound)
}

func TestEthereumRegistry_ListKeepsSkipsEmptySlots(t *testing.T) {
	r, _ := newFakeRegistry(t)
	keeps, err := r.ListKeeps(context.Background())
	require.NoError(t, err)
	require.Len(t, keeps, 1)
	assert.Equal(t, uint64(7), keeps[0].ID)
}

func TestEthereumRegistry_WritesRequireMatchingSigner(t *testing.T) {
	r, fb := newFakeRegistry(t)
	err := r.ClaimKeep(context.Background(), recipient, 7)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.Empty(t, fb.calls)
}

func TestEthereumRegistry_CreatedID(t *testing.T) {
	r, _ := newFakeRegistry(t)
	topic := r.abi.Events["KeepCreated"].ID

	id, err := r.createdID([]*types.Log{
		{Address: ethcommon.HexToAddress("0x01"), Topics: []ethcommon.Hash{topic, ethcommon.BigToHash(big.NewInt(1))}},
		{Address: contractAddr, Topics: []ethcommon.Hash{topic, ethcommon.BigToHash(big.NewInt(12))}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	_, err = r.createdID(nil)
	assert.Error(t, err)
}

func TestEthereumRegistry_Events(t *testing.T) {
	r, fb := newFakeRegistry(t)
	idTopic := ethcommon.BigToHash(big.NewInt(7))
	fb.logs = []types.Log{
		{
			Address:     contractAddr,
			BlockNumber: 10,
			Topics: []ethcommon.Hash{
				r.abi.Events["KeepCreated"].ID, idTopic,
				ethcommon.BytesToHash(creator.Bytes()), ethcommon.BytesToHash(recipient.Bytes()),
			},
		},
		{
			Address:     contractAddr,
			BlockNumber: 20,
			Topics: []ethcommon.Hash{
				r.abi.Events["KeepClaimed"].ID, idTopic, ethcommon.BytesToHash(recipient.Bytes()),
			},
		},
	}

	events, err := r.Events(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventCreated, events[0].Kind)
	assert.Equal(t, creator, events[0].Actor)
	assert.Equal(t, recipient, events[0].Recipient)
	assert.Equal(t, int64(1_700_000_010), events[0].At.Unix())

	assert.Equal(t, EventClaimed, events[1].Kind)
	assert.Equal(t, recipient, events[1].Actor)
}
