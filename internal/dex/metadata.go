package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"rangescope/internal/chain"
	"rangescope/internal/model"
)

const (
	callAttempts = 3
	callDelay    = 200 * time.Millisecond
)

// Reader loads pool and token metadata straight from the pool contract.
// It backs the position backend when its metadata endpoint is down.
type Reader struct {
	client *chain.Client
	logger *zap.Logger

	mu      sync.RWMutex
	chainID *big.Int
	tokens  map[common.Address]model.TokenMeta
}

// NewReader creates a reader over an established chain client.
func NewReader(client *chain.Client, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		client: client,
		logger: logger,
		tokens: make(map[common.Address]model.TokenMeta),
	}
}

// PoolMeta reads the immutable pool attributes via eth_call. The RPC
// endpoint must serve the chain the pool lives on.
func (r *Reader) PoolMeta(ctx context.Context, pool model.PoolRef) (model.PoolMeta, error) {
	if r.client == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	if err := r.checkChain(ctx, pool.ChainID); err != nil {
		return model.PoolMeta{}, err
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.callMethod(ctx, pool.Address, poolABI, "token0")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0: %w", err)
	}

	values, err = r.callMethod(ctx, pool.Address, poolABI, "token1")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1: %w", err)
	}

	values, err = r.callMethod(ctx, pool.Address, poolABI, "fee")
	if err != nil {
		return model.PoolMeta{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}

	values, err = r.callMethod(ctx, pool.Address, poolABI, "tickSpacing")
	if err != nil {
		return model.PoolMeta{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}

	meta0, err := r.tokenMeta(ctx, token0)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0 metadata: %w", err)
	}
	meta1, err := r.tokenMeta(ctx, token1)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1 metadata: %w", err)
	}

	return model.PoolMeta{
		FeeTier:     uint32(feeInt.Uint64()),
		TickSpacing: spacing,
		Token0:      meta0,
		Token1:      meta1,
	}, nil
}

// CurrentTick reads the pool's current tick from slot0.
func (r *Reader) CurrentTick(ctx context.Context, pool model.PoolRef) (int32, error) {
	if r.client == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	if err := r.checkChain(ctx, pool.ChainID); err != nil {
		return 0, err
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return 0, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := r.callMethod(ctx, pool.Address, poolABI, "slot0")
	if err != nil {
		return 0, err
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("slot0: short response")
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return 0, fmt.Errorf("slot0 tick: %w", err)
	}
	return int24FromBig(tickInt)
}

// checkChain verifies the RPC endpoint serves the expected chain. The
// endpoint's chain ID is fetched once and cached.
func (r *Reader) checkChain(ctx context.Context, want uint64) (err error) {
	r.mu.RLock()
	id := r.chainID
	r.mu.RUnlock()

	if id == nil {
		id, err = r.client.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		r.mu.Lock()
		r.chainID = id
		r.mu.Unlock()
	}

	if id.Uint64() != want {
		return fmt.Errorf("rpc endpoint serves chain %s, pool is on chain %d", id.String(), want)
	}
	return nil
}

func (r *Reader) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	r.mu.RLock()
	meta, ok := r.tokens[token]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta = model.TokenMeta{Address: token.Hex()}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := r.callMethod(ctx, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	// Some older tokens return symbol as bytes32 rather than string.
	if values, err := r.callMethod(ctx, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := r.callMethod(ctx, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	r.mu.Lock()
	r.tokens[token] = meta
	r.mu.Unlock()

	return meta, nil
}

func (r *Reader) callMethod(ctx context.Context, target common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}

	resp, err := retry.DoWithData(
		func() ([]byte, error) {
			return r.client.CallContract(ctx, msg, nil)
		},
		retry.Context(ctx),
		retry.Attempts(callAttempts),
		retry.Delay(callDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
