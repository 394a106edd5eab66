// Package store defines the persistence contract for the wallet
// coordination service. Storage-engine choice is explicitly out of
// scope (spec.md §1); internal/store/memstore is the in-memory reference
// implementation used to run and test the service.
package store

import (
	"time"

	"github.com/obyte-wallet/walletd/internal/model"
)

// Store is the full persistence surface named in spec.md §6
// ("Persisted schema"), one method group per collection.
type Store interface {
	// Wallets
	PutWallet(w *model.Wallet) error
	GetWallet(id string) (*model.Wallet, error)

	// Copayers
	PutCopayer(c *model.Copayer) error
	GetCopayer(id string) (*model.Copayer, error)
	ListCopayers(walletID string) ([]model.Copayer, error)
	FindCopayerByDeviceID(deviceID string) (*model.Copayer, error)

	// Global copayer lookup index (spec.md §6)
	PutCopayerLookup(l *model.CopayerLookup) error
	GetCopayerLookup(copayerID string) (*model.CopayerLookup, error)
	XPubRegistered(xpub string) (bool, error)
	RegisterXPub(xpub string) error

	// Addresses
	PutAddress(a *model.Address) error
	GetAddress(address string) (*model.Address, error)
	ListAddresses(walletID string, isChange bool) ([]model.Address, error)
	MarkAddressActivity(address string) error

	// Proposals
	PutProposal(p *model.TxProposal) error
	GetProposal(id string) (*model.TxProposal, error)
	ListProposals(walletID string) ([]model.TxProposal, error)
	DeleteProposal(id string) error

	// Notifications
	AppendNotification(n *model.Notification) (int64, error)
	ListNotifications(walletID string, minTS time.Time, afterID int64) ([]model.Notification, error)

	// Sessions
	PutSession(s *model.Session) error
	GetSession(id string) (*model.Session, error)
	ListSessionsByCopayer(copayerID string) ([]model.Session, error)
	DeleteSession(id string) error

	// Tx notes
	PutTxNote(n *model.TxNote) error
	GetTxNote(txid string) (*model.TxNote, error)
	ListTxNotes(walletID string, minTS time.Time) ([]model.TxNote, error)

	// Tx confirmation subscriptions
	PutTxConfirmationSub(s *model.TxConfirmationSubscription) error
	ListActiveTxConfirmationSubs(txid string) ([]model.TxConfirmationSubscription, error)
	DeactivateTxConfirmationSub(id string) error
	DeleteTxConfirmationSub(copayerID, txid string) error

	// Push subscriptions
	PutPushSubscription(s *model.PushSubscription) error
	DeletePushSubscription(token string) error
	ListPushSubscriptions(copayerID string) ([]model.PushSubscription, error)

	// Preferences
	PutPreferences(p *model.Preferences) error
	GetPreferences(copayerID string) (*model.Preferences, error)

	// Assets
	PutAsset(a *model.AssetMetadata) error
	GetAsset(asset string) (*model.AssetMetadata, error)
	ListAssets() ([]model.AssetMetadata, error)

	// Broadcast log (24h spent-UTXO view, spec.md §4.5/§6)
	AppendBroadcastLog(e *model.BroadcastLogEntry) error
	RecentBroadcastLog(walletID string, since time.Time, limit int) ([]model.BroadcastLogEntry, error)
}

// ErrNotFound is returned by single-entity getters when nothing matches.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "store: not found" }
