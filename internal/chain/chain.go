// Package chain reads token, contract, and liquidity state from block chains.
//
// The Provider interface is the contract the monitoring scheduler and the
// assessment endpoints depend on; the EVM implementation backs the networks
// that speak the Ethereum JSON-RPC protocol.
package chain

import (
	"context"
	"errors"
	"math/big"
	"time"
)

var (
	// ErrUnsupportedNetwork is returned for networks with no configured provider.
	ErrUnsupportedNetwork = errors.New("chain: unsupported network")
	// ErrProviderTimeout is returned when a provider call exceeds its deadline.
	ErrProviderTimeout = errors.New("chain: provider timed out")
	// ErrProviderUnavailable is returned when the provider cannot be reached
	// or rejects the call.
	ErrProviderUnavailable = errors.New("chain: provider unavailable")
)

// TokenInfo is the basic ERC-20 metadata for a contract.
type TokenInfo struct {
	Address     string
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
}

// Risk patterns detectable from deployed bytecode.
const (
	PatternMintable   = "mintable"
	PatternPausable   = "pausable"
	PatternBlacklist  = "blacklist"
	PatternProxy      = "proxy_delegatecall"
	PatternFeeChange  = "mutable_fees"
	PatternOwnerDrain = "owner_withdraw"
)

// ContractRisks is the result of a bytecode risk scan.
type ContractRisks struct {
	IsContract bool     // false when the address holds no code
	Patterns   []string // matched risk patterns, fixed scan order
	CodeSize   int
}

// PoolReserves is a snapshot of an AMM pair's reserves.
type PoolReserves struct {
	PairAddress string
	Token0      string
	Token1      string
	Reserve0    *big.Int
	Reserve1    *big.Int
	BlockTime   time.Time
}

// LargeTransfer is one token transfer at or above a caller-chosen threshold.
type LargeTransfer struct {
	TxHash      string
	From        string
	To          string
	Value       *big.Int
	BlockNumber uint64
}

// TeamWalletActivity is a point-in-time view of one tracked wallet. Nonce is
// the wallet's lifetime outbound transaction count; a rising nonce between
// observations means the wallet is moving funds.
type TeamWalletActivity struct {
	Address       string
	NativeBalance *big.Int
	Nonce         uint64
}

// Provider reads chain state for a network. Network names follow the warning
// registry ("ethereum", "bsc", "polygon", ...); calls for networks the
// provider does not serve return ErrUnsupportedNetwork.
type Provider interface {
	// TokenInfo fetches ERC-20 metadata for a token contract.
	TokenInfo(ctx context.Context, network, tokenAddr string) (*TokenInfo, error)
	// ContractRisks scans the deployed bytecode for risk patterns.
	ContractRisks(ctx context.Context, network, contractAddr string) (*ContractRisks, error)
	// PoolReserves reads a Uniswap-V2-style pair's current reserves.
	PoolReserves(ctx context.Context, network, pairAddr string) (*PoolReserves, error)
	// LargeTransfers returns token transfers with value >= threshold between
	// fromBlock and the chain head.
	LargeTransfers(ctx context.Context, network, tokenAddr string, fromBlock uint64, threshold *big.Int) ([]LargeTransfer, error)
	// TrackTeamWallets reads current balance and outbound transaction count
	// for each known team wallet.
	TrackTeamWallets(ctx context.Context, network string, addresses []string) ([]TeamWalletActivity, error)
	// HeadBlock returns the current chain head number.
	HeadBlock(ctx context.Context, network string) (uint64, error)
}

// ReserveSum folds both sides of a pool into one comparable magnitude.
// Used by the scheduler to derive liquidity change between ticks.
func ReserveSum(r *PoolReserves) float64 {
	if r == nil {
		return 0
	}
	sum := new(big.Float)
	if r.Reserve0 != nil {
		sum.Add(sum, new(big.Float).SetInt(r.Reserve0))
	}
	if r.Reserve1 != nil {
		sum.Add(sum, new(big.Float).SetInt(r.Reserve1))
	}
	f, _ := sum.Float64()
	return f
}
