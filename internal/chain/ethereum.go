package chain

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dmitrijs2005/keepr/internal/logging"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed keepr.abi.json
var keeprABIJSON string

// Backend is the node surface the contract binding needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Transactor signs contract writes for a single wallet.
type Transactor interface {
	Address() ethcommon.Address
	TransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

// EthereumRegistry talks to the deployed Keepr contract.
type EthereumRegistry struct {
	abi      abi.ABI
	contract *bind.BoundContract
	backend  Backend
	address  ethcommon.Address
	chainID  *big.Int
	signer   Transactor
	logger   logging.Logger
}

func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(keeprABIJSON))
}

// NewEthereumRegistry binds the contract at address. signer may be nil for a
// read-only registry.
func NewEthereumRegistry(backend Backend, address ethcommon.Address, chainID *big.Int, signer Transactor, logger logging.Logger) (*EthereumRegistry, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &EthereumRegistry{
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend:  backend,
		address:  address,
		chainID:  chainID,
		signer:   signer,
		logger:   logger.With("module", "chain"),
	}, nil
}

func (r *EthereumRegistry) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (r *EthereumRegistry) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := r.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: unexpected output %T", method, out[0])
	}
	return v, nil
}

func (r *EthereumRegistry) Config(ctx context.Context) (Config, error) {
	values := make(map[string]*big.Int, 4)
	for _, m := range []string{"minUnlockDelay", "maxUnlockDelay", "claimWindow", "platformFee"} {
		v, err := r.callUint(ctx, m)
		if err != nil {
			return Config{}, err
		}
		values[m] = v
	}
	return Config{
		MinUnlockDelay: time.Duration(values["minUnlockDelay"].Int64()) * time.Second,
		MaxUnlockDelay: time.Duration(values["maxUnlockDelay"].Int64()) * time.Second,
		ClaimWindow:    time.Duration(values["claimWindow"].Int64()) * time.Second,
		PlatformFee:    values["platformFee"],
	}, nil
}

// transact sends a write as caller and waits for it to be mined.
func (r *EthereumRegistry) transact(ctx context.Context, caller ethcommon.Address, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	if r.signer == nil || r.signer.Address() != caller {
		return nil, ErrNotAuthorized
	}

	opts, err := r.signer.TransactOpts(ctx, r.chainID)
	if err != nil {
		return nil, fmt.Errorf("transact opts: %w", err)
	}
	opts.Context = ctx
	opts.Value = value

	tx, err := r.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	r.logger.Info(ctx, "transaction sent", "method", method, "tx", tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait %s: %w", method, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s reverted in tx %s", method, tx.Hash().Hex())
	}
	return receipt, nil
}

func (r *EthereumRegistry) CreateKeep(ctx context.Context, from ethcommon.Address, req CreateRequest, fee *big.Int) (uint64, error) {
	receipt, err := r.transact(ctx, from, fee, "createKeep",
		req.Recipient, req.Fallback, req.ContentAddress, big.NewInt(req.UnlockTime.Unix()),
		req.Type, req.Title, req.Description)
	if err != nil {
		return 0, err
	}
	return r.createdID(receipt.Logs)
}

// createdID reads the keep id from the KeepCreated log.
func (r *EthereumRegistry) createdID(logs []*types.Log) (uint64, error) {
	topic := r.abi.Events["KeepCreated"].ID
	for _, l := range logs {
		if l.Address == r.address && len(l.Topics) > 1 && l.Topics[0] == topic {
			return new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64(), nil
		}
	}
	return 0, errors.New("KeepCreated log not found in receipt")
}

func (r *EthereumRegistry) ClaimKeep(ctx context.Context, caller ethcommon.Address, id uint64) error {
	_, err := r.transact(ctx, caller, nil, "claimKeep", new(big.Int).SetUint64(id))
	return err
}

func (r *EthereumRegistry) CancelKeep(ctx context.Context, caller ethcommon.Address, id uint64) error {
	_, err := r.transact(ctx, caller, nil, "cancelKeep", new(big.Int).SetUint64(id))
	return err
}

func (r *EthereumRegistry) ChangeRecipient(ctx context.Context, caller ethcommon.Address, id uint64, newRecipient ethcommon.Address) error {
	_, err := r.transact(ctx, caller, nil, "changeRecipient", new(big.Int).SetUint64(id), newRecipient)
	return err
}

func (r *EthereumRegistry) ActivateFallback(ctx context.Context, caller ethcommon.Address, id uint64) error {
	_, err := r.transact(ctx, caller, nil, "activateFallback", new(big.Int).SetUint64(id))
	return err
}

func (r *EthereumRegistry) GetKeep(ctx context.Context, id uint64) (*Keep, error) {
	out, err := r.call(ctx, "getKeep", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	if len(out) != 11 {
		return nil, fmt.Errorf("getKeep: %d outputs", len(out))
	}

	creator := out[0].(ethcommon.Address)
	if creator == (ethcommon.Address{}) {
		return nil, ErrKeepNotFound
	}
	return &Keep{
		ID:             id,
		Creator:        creator,
		Recipient:      out[1].(ethcommon.Address),
		Fallback:       out[2].(ethcommon.Address),
		ContentAddress: out[3].(string),
		UnlockTime:     time.Unix(out[4].(*big.Int).Int64(), 0),
		CreatedAt:      time.Unix(out[5].(*big.Int).Int64(), 0),
		Status:         Status(out[6].(uint8)),
		ClaimedBy:      out[7].(ethcommon.Address),
		Type:           out[8].(string),
		Title:          out[9].(string),
		Description:    out[10].(string),
	}, nil
}

func (r *EthereumRegistry) FindByContentAddress(ctx context.Context, contentAddress string) (*Keep, error) {
	id, err := r.callUint(ctx, "keepIdByContent", contentAddress)
	if err != nil {
		return nil, err
	}
	if id.Sign() == 0 {
		return nil, ErrKeepNotFound
	}
	return r.GetKeep(ctx, id.Uint64())
}

func (r *EthereumRegistry) ListKeeps(ctx context.Context) ([]*Keep, error) {
	count, err := r.callUint(ctx, "keepCount")
	if err != nil {
		return nil, err
	}

	n := count.Uint64()
	out := make([]*Keep, 0, n)
	for id := uint64(1); id <= n; id++ {
		k, err := r.GetKeep(ctx, id)
		if errors.Is(err, ErrKeepNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

var eventKinds = map[string]EventKind{
	"KeepCreated":       EventCreated,
	"KeepClaimed":       EventClaimed,
	"KeepCancelled":     EventCancelled,
	"FallbackActivated": EventFallbackActivated,
	"RecipientChanged":  EventRecipientChanged,
}

// Events reads the contract logs for one keep. Event time is the block time.
func (r *EthereumRegistry) Events(ctx context.Context, id uint64) ([]Event, error) {
	kinds := make(map[ethcommon.Hash]EventKind, len(eventKinds))
	ids := make([]ethcommon.Hash, 0, len(eventKinds))
	for name, kind := range eventKinds {
		topic := r.abi.Events[name].ID
		kinds[topic] = kind
		ids = append(ids, topic)
	}

	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []ethcommon.Address{r.address},
		Topics:    [][]ethcommon.Hash{ids, {ethcommon.BigToHash(new(big.Int).SetUint64(id))}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	blockTimes := make(map[uint64]time.Time)
	out := make([]Event, 0, len(logs))
	for _, l := range logs {
		kind, ok := kinds[l.Topics[0]]
		if !ok || len(l.Topics) < 3 {
			continue
		}
		ev := Event{
			Kind:   kind,
			KeepID: id,
			Actor:  ethcommon.BytesToAddress(l.Topics[2].Bytes()),
		}
		if len(l.Topics) > 3 {
			ev.Recipient = ethcommon.BytesToAddress(l.Topics[3].Bytes())
		}

		at, ok := blockTimes[l.BlockNumber]
		if !ok {
			header, err := r.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("block header %d: %w", l.BlockNumber, err)
			}
			at = time.Unix(int64(header.Time), 0)
			blockTimes[l.BlockNumber] = at
		}
		ev.At = at
		out = append(out, ev)
	}
	return out, nil
}
