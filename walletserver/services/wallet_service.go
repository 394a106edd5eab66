// Package services adapts the teacher's walletserver/services.WalletService
// (originally a thin wrapper around core.NewRandomWallet/WalletFromMnemonic/
// core.HDWallet.PrivateKey, a single-key wallet that signs server-side) onto
// this project's multisig coordination domain, where the server never holds
// a private key (spec.md §1). Each teacher method keeps its name and shape
// but now delegates to the copayer-driven services in internal/.
package services

import (
	"context"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
)

// WalletService is the legacy-surface's collaborator set: wallet
// formation, copayer join, address derivation and signature submission.
type WalletService struct {
	wallets *walletsvc.Service
	addrs   *addrsvc.Service
	txs     *txsvc.Service
}

// NewService constructs a WalletService over the same core-engine
// service types the primary chi surface uses. walletserver/main.go builds
// them on its own in-memory store, so this surface does not share state
// with a separately running cmd/walletd.
func NewService(wallets *walletsvc.Service, addrs *addrsvc.Service, txs *txsvc.Service) *WalletService {
	return &WalletService{wallets: wallets, addrs: addrs, txs: txs}
}

// CreateWallet replaces the teacher's core.NewRandomWallet(bits) call:
// the server forms a pending multisig wallet record instead of minting a
// mnemonic, since it never holds the copayers' key material.
func (ws *WalletService) CreateWallet(in walletsvc.CreateWalletInput) (*model.Wallet, error) {
	return ws.wallets.CreateWallet(in)
}

// ImportWallet replaces the teacher's core.WalletFromMnemonic: joining an
// existing wallet by registering a copayer's xpub plays the role
// "import" plays in a single-key wallet, since there is no mnemonic to
// import here.
func (ws *WalletService) ImportWallet(ctx context.Context, in walletsvc.JoinWalletInput) (*model.Wallet, *model.Copayer, error) {
	return ws.wallets.JoinWallet(ctx, in)
}

// DeriveAddress replaces the teacher's HDWallet.DeriveAddress(account,
// index): derivation here walks the wallet's whole copayer ring rather
// than one key, producing a multisig address (internal/cryptoutil).
func (ws *WalletService) DeriveAddress(ctx context.Context, walletID string, ignoreMaxGap bool) (*model.Address, error) {
	return ws.addrs.CreateAddress(ctx, walletID, ignoreMaxGap)
}

// SignTransaction replaces the teacher's HDWallet.PrivateKey-backed
// server-side signing: the server only ever countersigns a proposal by
// recording a copayer-submitted signature, never by holding the key
// itself.
func (ws *WalletService) SignTransaction(ctx context.Context, walletID, proposalID, copayerID string, signatures map[string]string) (*model.TxProposal, error) {
	return ws.txs.Sign(ctx, walletID, proposalID, copayerID, signatures)
}
