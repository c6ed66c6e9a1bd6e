package ton

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/errs"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	tonapi "github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/jetton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

const txScanBatchSize = 50

// Client wraps lite server access for the settlement core: balances,
// account state, escrow transfers and transaction lookups.
type Client struct {
	api tonapi.APIClientWrapped
}

// Connect establishes a connection to the TON network. If LITE_SERVER_HOST +
// LITE_SERVER_KEY are set, connects to that lite server; otherwise
// auto-discovers lite servers from the global config for TON_NETWORK.
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	pool := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addrStr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		if err := pool.AddConnection(ctx, addrStr, cfg.LiteServerKey); err != nil {
			return nil, errs.External(fmt.Sprintf("connect to lite server %s", addrStr), err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, errs.External(fmt.Sprintf("connect via config %s", configURL), err)
		}
	}

	proofPolicy := tonapi.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = tonapi.ProofCheckPolicySecure
	}

	api := tonapi.NewAPIClient(pool, proofPolicy).WithRetry()
	return &Client{api: api}, nil
}

// NativeBalance returns the TON balance of an address in nano. Inactive
// (undeployed) accounts have a zero balance.
func (c *Client) NativeBalance(ctx context.Context, addrStr string) (*big.Int, error) {
	account, err := c.account(ctx, addrStr)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsActive {
		return big.NewInt(0), nil
	}
	return account.State.Balance.Nano(), nil
}

// AccountActive reports whether the address has a deployed contract.
func (c *Client) AccountActive(ctx context.Context, addrStr string) (bool, error) {
	account, err := c.account(ctx, addrStr)
	if err != nil {
		return false, err
	}
	return account != nil && account.IsActive, nil
}

// JettonBalance returns the owner's balance of the jetton in base units.
// A missing jetton wallet reads as zero.
func (c *Client) JettonBalance(ctx context.Context, masterAddr, ownerAddr string) (*big.Int, error) {
	master, err := address.ParseAddr(masterAddr)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExternalService, "invalid jetton master address", err)
	}
	owner, err := address.ParseAddr(ownerAddr)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExternalService, "invalid owner address", err)
	}

	jc := jetton.NewJettonMasterClient(c.api, master)
	jw, err := jc.GetJettonWallet(ctx, owner)
	if err != nil {
		return nil, errs.External("resolve jetton wallet", err)
	}

	active, err := c.AccountActive(ctx, jw.Address().String())
	if err != nil {
		return nil, err
	}
	if !active {
		return big.NewInt(0), nil
	}

	balance, err := jw.GetBalance(ctx)
	if err != nil {
		return nil, errs.External("get jetton balance", err)
	}
	return balance, nil
}

// JettonWalletAddress resolves the per-owner jetton wallet for a master.
func (c *Client) JettonWalletAddress(ctx context.Context, masterAddr, ownerAddr string) (string, error) {
	master, err := address.ParseAddr(masterAddr)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid jetton master address", err)
	}
	owner, err := address.ParseAddr(ownerAddr)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid owner address", err)
	}

	jc := jetton.NewJettonMasterClient(c.api, master)
	jw, err := jc.GetJettonWallet(ctx, owner)
	if err != nil {
		return "", errs.External("resolve jetton wallet", err)
	}
	return jw.Address().String(), nil
}

// TransferNative sends TON from the escrow key to the destination and waits
// for the transaction to land, returning its hash. The private key lives
// only for the duration of this call.
func (c *Client) TransferNative(ctx context.Context, priv ed25519.PrivateKey, toAddr string, amountNano *big.Int, comment string) (string, error) {
	w, err := wallet.FromPrivateKey(c.api, priv, wallet.V4R2)
	if err != nil {
		return "", errs.External("open escrow wallet", err)
	}

	to, err := address.ParseAddr(toAddr)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid destination address", err)
	}

	amount, err := tlb.FromNano(amountNano, 9)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid transfer amount", err)
	}

	msg, err := w.BuildTransfer(to, amount, false, comment)
	if err != nil {
		return "", errs.External("build transfer", err)
	}

	tx, _, err := w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", errs.External("send transfer", err)
	}
	return hex.EncodeToString(tx.Hash), nil
}

// TransferJetton sends jetton base units from the escrow key's jetton wallet
// to the destination owner address. The jetton transfer auto-deploys the
// destination's jetton wallet when absent; forwardTON covers that reserve.
func (c *Client) TransferJetton(ctx context.Context, priv ed25519.PrivateKey, masterAddr, toAddr string, amountNano *big.Int, decimals int, attachTON, comment string) (string, error) {
	w, err := wallet.FromPrivateKey(c.api, priv, wallet.V4R2)
	if err != nil {
		return "", errs.External("open escrow wallet", err)
	}

	master, err := address.ParseAddr(masterAddr)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid jetton master address", err)
	}
	to, err := address.ParseAddr(toAddr)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid destination address", err)
	}

	jc := jetton.NewJettonMasterClient(c.api, master)
	jw, err := jc.GetJettonWallet(ctx, w.WalletAddress())
	if err != nil {
		return "", errs.External("resolve escrow jetton wallet", err)
	}

	amount, err := tlb.FromNano(amountNano, decimals)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid transfer amount", err)
	}

	var forwardPayload *cell.Cell
	if comment != "" {
		forwardPayload, err = wallet.CreateCommentCell(comment)
		if err != nil {
			return "", errs.External("build comment", err)
		}
	}

	body, err := jw.BuildTransferPayloadV2(to, w.WalletAddress(), amount, tlb.ZeroCoins, forwardPayload, nil)
	if err != nil {
		return "", errs.External("build jetton transfer", err)
	}

	attach, err := tlb.FromTON(attachTON)
	if err != nil {
		return "", errs.Wrap(errs.CodeExternalService, "invalid attach amount", err)
	}

	msg := wallet.SimpleMessage(jw.Address(), attach, body)
	tx, _, err := w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", errs.External("send jetton transfer", err)
	}
	return hex.EncodeToString(tx.Hash), nil
}

// WaitForBalance polls an address until its balance reaches min, at a fixed
// interval with bounded attempts. It returns false rather than blocking
// indefinitely when the balance does not arrive.
func (c *Client) WaitForBalance(ctx context.Context, addrStr string, masterAddr *string, min *big.Int, interval time.Duration, maxAttempts int) (bool, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(interval):
			}
		}

		var balance *big.Int
		var err error
		if masterAddr == nil {
			balance, err = c.NativeBalance(ctx, addrStr)
		} else {
			balance, err = c.JettonBalance(ctx, *masterAddr, addrStr)
		}
		if err != nil {
			continue
		}
		if balance.Cmp(min) >= 0 {
			return true, nil
		}
	}
	return false, nil
}

// TransactionExists scans the address's recent transactions for the given
// hash, paging backwards a bounded number of batches.
func (c *Client) TransactionExists(ctx context.Context, addrStr, hashHex string, maxPages int) (bool, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return false, errs.Wrap(errs.CodeExternalService, "invalid address", err)
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false, errs.Wrap(errs.CodeExternalService, "invalid transaction hash", err)
	}

	account, err := c.account(ctx, addrStr)
	if err != nil {
		return false, err
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return false, nil
	}

	lt := account.LastTxLT
	hash := account.LastTxHash
	for page := 0; page < maxPages; page++ {
		txs, err := c.api.ListTransactions(ctx, addr, txScanBatchSize, lt, hash)
		if err != nil {
			return false, errs.External("list transactions", err)
		}
		if len(txs) == 0 {
			return false, nil
		}

		for _, tx := range txs {
			if string(tx.Hash) == string(want) {
				return true, nil
			}
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 || len(txs) < txScanBatchSize {
			return false, nil
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}
	return false, nil
}

func (c *Client) account(ctx context.Context, addrStr string) (*tlb.Account, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return nil, errs.Wrap(errs.CodeExternalService, "invalid address", err)
	}

	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, errs.External("get master block", err)
	}

	account, err := c.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, errs.External("get account", err)
	}
	return account, nil
}
