// Package chain mirrors sale records onto the DDT contract. Mirroring is
// fire-and-forget: a failed mirror never touches the ledger.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"

	"github.com/quiflix/backend/internal/models"
)

// Mirror publishes a sale record on-chain and returns the transaction hash.
type Mirror interface {
	MirrorSale(ctx context.Context, sale *models.Sale) (string, error)
}

// recordSale(bytes32 saleId, bytes32 filmId, uint256 amount)
const mirrorABI = `[{"name":"recordSale","type":"function","stateMutability":"nonpayable","inputs":[{"name":"saleId","type":"bytes32"},{"name":"filmId","type":"bytes32"},{"name":"amount","type":"uint256"}],"outputs":[]}]`

const mirrorGasLimit = 120_000

// EthMirror submits signed recordSale transactions to the DDT contract.
type EthMirror struct {
	client   *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	abi      abi.ABI
	logger   *slog.Logger
}

// Dial connects to the RPC endpoint and prepares the signer. A non-zero
// expectedChainID must match the network the RPC reports, so a misconfigured
// endpoint cannot silently sign for the wrong chain.
func Dial(ctx context.Context, rpcURL, contractHex, keyHex string, expectedChainID int64, logger *slog.Logger) (*EthMirror, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse mirror key: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if err := checkChainID(expectedChainID, chainID); err != nil {
		client.Close()
		return nil, err
	}
	parsed, err := abi.JSON(strings.NewReader(mirrorABI))
	if err != nil {
		client.Close()
		return nil, err
	}
	return &EthMirror{
		client:   client,
		contract: common.HexToAddress(contractHex),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		abi:      parsed,
		logger:   logger,
	}, nil
}

// Close releases the RPC connection.
func (m *EthMirror) Close() { m.client.Close() }

// MirrorSale packs and submits one recordSale call.
func (m *EthMirror) MirrorSale(ctx context.Context, sale *models.Sale) (string, error) {
	data, err := m.abi.Pack("recordSale",
		uuidToBytes32(sale.ID),
		uuidToBytes32(sale.FilmID),
		big.NewInt(sale.Amount.Amount),
	)
	if err != nil {
		return "", fmt.Errorf("pack recordSale: %w", err)
	}

	nonce, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, m.contract, big.NewInt(0), mirrorGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(m.chainID), m.key)
	if err != nil {
		return "", fmt.Errorf("sign mirror tx: %w", err)
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send mirror tx: %w", err)
	}

	hash := signed.Hash().Hex()
	m.logger.Info("sale mirrored", "sale_id", sale.ID, "tx_hash", hash)
	return hash, nil
}

// ErrWrongNetwork means the RPC endpoint serves a different chain than
// configured.
var ErrWrongNetwork = errors.New("rpc endpoint is on the wrong network")

func checkChainID(expected int64, actual *big.Int) error {
	if expected == 0 {
		return nil
	}
	if actual == nil || actual.Cmp(big.NewInt(expected)) != 0 {
		return fmt.Errorf("%w: expected chain %d, rpc reports %v", ErrWrongNetwork, expected, actual)
	}
	return nil
}

func uuidToBytes32(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:16], id[:])
	return out
}
