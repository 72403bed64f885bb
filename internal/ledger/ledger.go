package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

// Minimal ABI for the KaprikaPressID contract, only the two functions the
// service calls.
const contractABI = `[
	{"type":"function","name":"mintId","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"tokenURI","type":"string"}],
	 "outputs":[{"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"setRevoked","stateMutability":"nonpayable",
	 "inputs":[{"name":"tokenId","type":"uint256"},{"name":"value","type":"bool"}],
	 "outputs":[]}
]`

// Config holds the chain connection settings, all from env.
type Config struct {
	RPCURL          string
	AdminPrivateKey string // hex, with or without 0x prefix
	ContractAddress string
	ChainID         int64
}

// Configured reports whether chain writes can be attempted at all.
func (c Config) Configured() bool {
	return c.RPCURL != "" && c.AdminPrivateKey != "" && c.ContractAddress != ""
}

// Contract writes against one fixed on-chain contract with one fixed admin
// signing key.
type Contract struct {
	bound *bind.BoundContract
	opts  *bind.TransactOpts
	mu    sync.Mutex
}

var (
	sharedOnce sync.Once
	shared     *Contract
	sharedErr  error
)

// Shared returns the process-wide contract writer, constructed at most once.
// A construction failure is sticky and leaves the writer disabled.
func Shared(cfg Config) (*Contract, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New(cfg)
	})
	return shared, sharedErr
}

func New(cfg Config) (*Contract, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("could not dial rpc: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.AdminPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("could not parse admin key: %w", err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("could not build transactor: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("could not parse contract abi: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	bound := bind.NewBoundContract(address, parsed, client, client, client)

	log.Infof("ledger writer ready for contract %s", address.Hex())
	return &Contract{bound: bound, opts: opts}, nil
}

// transactOpts clones the shared opts with the caller context so concurrent
// calls do not share a mutable Context field.
func (c *Contract) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *c.opts
	opts.Context = ctx
	return &opts
}

// MintID mints a token for owner pointing at tokenURI and returns the
// transaction hash.
func (c *Contract) MintID(ctx context.Context, owner, tokenURI string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.bound.Transact(c.transactOpts(ctx), "mintId", common.HexToAddress(owner), tokenURI)
	if err != nil {
		return "", fmt.Errorf("mintId transaction failed: %w", err)
	}
	return tx.Hash().Hex(), nil
}

// SetRevoked flips the on-chain revocation flag for a token.
func (c *Contract) SetRevoked(ctx context.Context, tokenID int64, revoked bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.bound.Transact(c.transactOpts(ctx), "setRevoked", new(big.Int).SetInt64(tokenID), revoked)
	if err != nil {
		return fmt.Errorf("setRevoked transaction failed: %w", err)
	}
	return nil
}
