package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rugsentry/rugsentry/internal/metrics"
)

// ERC20 Transfer event signature
var transferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// ERC20 minimal ABI for metadata reads
const erc20ABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// Uniswap-V2 pair ABI for reserve reads
const pairABI = `[
	{"constant":true,"inputs":[],"name":"getReserves","outputs":[{"name":"_reserve0","type":"uint112"},{"name":"_reserve1","type":"uint112"},{"name":"_blockTimestampLast","type":"uint32"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"token0","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"token1","outputs":[{"name":"","type":"address"}],"type":"function"}
]`

// riskSelectors maps 4-byte function selectors found in deployed bytecode to
// the risk pattern they indicate. Selector presence in code is a heuristic:
// it catches the common rug tooling without needing verified source.
var riskSelectors = []struct {
	selector string
	pattern  string
}{
	{"40c10f19", PatternMintable},   // mint(address,uint256)
	{"a0712d68", PatternMintable},   // mint(uint256)
	{"8456cb59", PatternPausable},   // pause()
	{"f9f92be4", PatternBlacklist},  // blacklist(address)
	{"0ecb93c0", PatternBlacklist},  // addBlackList(address)
	{"c49b9a80", PatternFeeChange},  // setTaxFeePercent-style toggles
	{"3ccfd60b", PatternOwnerDrain}, // withdraw()
}

// DefaultCallTimeout bounds every individual RPC call.
const DefaultCallTimeout = 10 * time.Second

// evmBackend abstracts the go-ethereum client for testing.
type evmBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	Close()
}

// Config for the EVM provider.
type Config struct {
	// RPCURLs maps network name → JSON-RPC endpoint. Networks without an
	// entry are unsupported.
	RPCURLs     map[string]string
	CallTimeout time.Duration
}

// EVMProvider serves EVM-compatible networks over their JSON-RPC endpoints.
type EVMProvider struct {
	backends map[string]evmBackend
	timeout  time.Duration
	tokenABI abi.ABI
	pairABI  abi.ABI
	logger   *slog.Logger
}

var _ Provider = (*EVMProvider)(nil)

// Option configures the provider.
type Option func(*EVMProvider)

// WithBackend sets a custom backend for a network (useful for testing).
func WithBackend(network string, backend evmBackend) Option {
	return func(p *EVMProvider) {
		p.backends[network] = backend
	}
}

// NewEVMProvider dials every configured RPC endpoint.
func NewEVMProvider(cfg Config, logger *slog.Logger, opts ...Option) (*EVMProvider, error) {
	tokenParsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	pairParsed, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	p := &EVMProvider{
		backends: make(map[string]evmBackend),
		timeout:  timeout,
		tokenABI: tokenParsed,
		pairABI:  pairParsed,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	for network, url := range cfg.RPCURLs {
		if _, ok := p.backends[network]; ok {
			continue
		}
		client, err := ethclient.Dial(url)
		if err != nil {
			return nil, fmt.Errorf("%w: dial %s: %v", ErrProviderUnavailable, network, err)
		}
		p.backends[network] = client
		logger.Info("chain provider connected", "network", network)
	}
	return p, nil
}

// Close releases all RPC connections.
func (p *EVMProvider) Close() {
	for _, b := range p.backends {
		b.Close()
	}
}

func (p *EVMProvider) backend(network string) (evmBackend, error) {
	b, ok := p.backends[network]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, network)
	}
	return b, nil
}

// TokenInfo fetches ERC-20 metadata for a token contract.
func (p *EVMProvider) TokenInfo(ctx context.Context, network, tokenAddr string) (*TokenInfo, error) {
	b, err := p.backend(network)
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(tokenAddr)

	info := &TokenInfo{Address: strings.ToLower(addr.Hex())}

	if err := p.callString(ctx, b, network, addr, "name", &info.Name); err != nil {
		return nil, err
	}
	if err := p.callString(ctx, b, network, addr, "symbol", &info.Symbol); err != nil {
		return nil, err
	}

	var decimals uint8
	if err := p.callUnpack(ctx, b, network, addr, "decimals", &decimals); err != nil {
		return nil, err
	}
	info.Decimals = decimals

	var supply *big.Int
	if err := p.callUnpack(ctx, b, network, addr, "totalSupply", &supply); err != nil {
		return nil, err
	}
	info.TotalSupply = supply

	return info, nil
}

// ContractRisks scans the deployed bytecode for risk-pattern selectors.
func (p *EVMProvider) ContractRisks(ctx context.Context, network, contractAddr string) (*ContractRisks, error) {
	b, err := p.backend(network)
	if err != nil {
		return nil, err
	}

	code, err := p.codeAt(ctx, b, network, common.HexToAddress(contractAddr))
	if err != nil {
		return nil, err
	}

	risks := &ContractRisks{
		IsContract: len(code) > 0,
		CodeSize:   len(code),
	}
	if !risks.IsContract {
		return risks, nil
	}

	hexCode := hex.EncodeToString(code)
	seen := make(map[string]bool)
	for _, rs := range riskSelectors {
		if seen[rs.pattern] {
			continue
		}
		if strings.Contains(hexCode, rs.selector) {
			risks.Patterns = append(risks.Patterns, rs.pattern)
			seen[rs.pattern] = true
		}
	}
	// DELEGATECALL in the dispatch path usually means an upgradeable proxy.
	if strings.Contains(hexCode, "363d3d37") || strings.Contains(hexCode, "3d602d80") {
		risks.Patterns = append(risks.Patterns, PatternProxy)
	}
	return risks, nil
}

// PoolReserves reads a Uniswap-V2-style pair's current reserves.
func (p *EVMProvider) PoolReserves(ctx context.Context, network, pairAddr string) (*PoolReserves, error) {
	b, err := p.backend(network)
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(pairAddr)

	out, err := p.call(ctx, b, network, p.pairABI, addr, "getReserves")
	if err != nil {
		return nil, err
	}
	values, err := p.pairABI.Unpack("getReserves", out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack getReserves: %w", err)
	}
	if len(values) < 3 {
		return nil, fmt.Errorf("%w: malformed getReserves result", ErrProviderUnavailable)
	}

	reserve0, ok0 := values[0].(*big.Int)
	reserve1, ok1 := values[1].(*big.Int)
	ts, ok2 := values[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: malformed getReserves result", ErrProviderUnavailable)
	}

	reserves := &PoolReserves{
		PairAddress: strings.ToLower(addr.Hex()),
		Reserve0:    reserve0,
		Reserve1:    reserve1,
		BlockTime:   time.Unix(int64(ts), 0),
	}

	var token0, token1 common.Address
	if err := p.callAddress(ctx, b, network, p.pairABI, addr, "token0", &token0); err != nil {
		return nil, err
	}
	if err := p.callAddress(ctx, b, network, p.pairABI, addr, "token1", &token1); err != nil {
		return nil, err
	}
	reserves.Token0 = strings.ToLower(token0.Hex())
	reserves.Token1 = strings.ToLower(token1.Hex())

	return reserves, nil
}

// LargeTransfers returns token transfers with value >= threshold between
// fromBlock and the chain head.
func (p *EVMProvider) LargeTransfers(ctx context.Context, network, tokenAddr string, fromBlock uint64, threshold *big.Int) ([]LargeTransfer, error) {
	b, err := p.backend(network)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{common.HexToAddress(tokenAddr)},
		Topics: [][]common.Hash{
			{transferEventSig},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	logs, err := b.FilterLogs(callCtx, query)
	metrics.ProviderCallDuration.WithLabelValues("filter_logs", network).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("filter_logs", network).Inc()
		return nil, classify(err)
	}

	var out []LargeTransfer
	for _, vLog := range logs {
		if len(vLog.Topics) < 3 {
			continue
		}
		value := new(big.Int).SetBytes(vLog.Data)
		if threshold != nil && value.Cmp(threshold) < 0 {
			continue
		}
		out = append(out, LargeTransfer{
			TxHash:      vLog.TxHash.Hex(),
			From:        strings.ToLower(common.HexToAddress(vLog.Topics[1].Hex()).Hex()),
			To:          strings.ToLower(common.HexToAddress(vLog.Topics[2].Hex()).Hex()),
			Value:       value,
			BlockNumber: vLog.BlockNumber,
		})
	}
	return out, nil
}

// TrackTeamWallets reads balance and nonce for each team wallet. One bad
// wallet read fails the whole call: partial activity snapshots would make
// nonce deltas between ticks meaningless.
func (p *EVMProvider) TrackTeamWallets(ctx context.Context, network string, addresses []string) ([]TeamWalletActivity, error) {
	b, err := p.backend(network)
	if err != nil {
		return nil, err
	}

	out := make([]TeamWalletActivity, 0, len(addresses))
	for _, addr := range addresses {
		account := common.HexToAddress(addr)

		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		balance, err := b.BalanceAt(callCtx, account, nil)
		if err == nil {
			var nonce uint64
			nonce, err = b.NonceAt(callCtx, account, nil)
			if err == nil {
				out = append(out, TeamWalletActivity{
					Address:       strings.ToLower(account.Hex()),
					NativeBalance: balance,
					Nonce:         nonce,
				})
			}
		}
		metrics.ProviderCallDuration.WithLabelValues("wallet_activity", network).Observe(time.Since(start).Seconds())
		cancel()
		if err != nil {
			metrics.ProviderErrors.WithLabelValues("wallet_activity", network).Inc()
			return nil, classify(err)
		}
	}
	return out, nil
}

// HeadBlock returns the current chain head number.
func (p *EVMProvider) HeadBlock(ctx context.Context, network string) (uint64, error) {
	b, err := p.backend(network)
	if err != nil {
		return 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	block, err := b.BlockNumber(callCtx)
	metrics.ProviderCallDuration.WithLabelValues("block_number", network).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("block_number", network).Inc()
		return 0, classify(err)
	}
	return block, nil
}

func (p *EVMProvider) call(ctx context.Context, b evmBackend, network string, contractABI abi.ABI, addr common.Address, method string) ([]byte, error) {
	data, err := contractABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	out, err := b.CallContract(callCtx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	metrics.ProviderCallDuration.WithLabelValues(method, network).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues(method, network).Inc()
		return nil, classify(err)
	}
	return out, nil
}

func (p *EVMProvider) callString(ctx context.Context, b evmBackend, network string, addr common.Address, method string, dst *string) error {
	return p.callUnpackABI(ctx, b, network, p.tokenABI, addr, method, dst)
}

func (p *EVMProvider) callUnpack(ctx context.Context, b evmBackend, network string, addr common.Address, method string, dst any) error {
	return p.callUnpackABI(ctx, b, network, p.tokenABI, addr, method, dst)
}

func (p *EVMProvider) callAddress(ctx context.Context, b evmBackend, network string, contractABI abi.ABI, addr common.Address, method string, dst *common.Address) error {
	return p.callUnpackABI(ctx, b, network, contractABI, addr, method, dst)
}

func (p *EVMProvider) callUnpackABI(ctx context.Context, b evmBackend, network string, contractABI abi.ABI, addr common.Address, method string, dst any) error {
	out, err := p.call(ctx, b, network, contractABI, addr, method)
	if err != nil {
		return err
	}
	if err := contractABI.UnpackIntoInterface(dst, method, out); err != nil {
		return fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return nil
}

func (p *EVMProvider) codeAt(ctx context.Context, b evmBackend, network string, addr common.Address) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	code, err := b.CodeAt(callCtx, addr, nil)
	metrics.ProviderCallDuration.WithLabelValues("code_at", network).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderErrors.WithLabelValues("code_at", network).Inc()
		return nil, classify(err)
	}
	return code, nil
}

// classify maps transport errors onto the provider error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
