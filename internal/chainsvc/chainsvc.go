// Package chainsvc implements spec.md §4.6: the blockchain-event
// pipeline that reconciles new_joint and mci_became_stable ledger events
// against proposal state and fires wallet notifications. There is no
// handler for my_transactions_became_stable events.
package chainsvc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/obyte-wallet/walletd/internal/metrics"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/store"
)

// incomingDedupeWindow bounds how long a (unit, address, amount) triple
// suppresses a repeat NewIncomingTx notification (spec.md §4.6).
const incomingDedupeWindow = 24 * time.Hour

// outgoingDedupeWindow bounds how long an already-emitted outgoing
// notification for a unit suppresses a repeat (spec.md §4.6).
const outgoingDedupeWindow = 24 * time.Hour

// Output is one payment destination observed on an incoming joint.
type Output struct {
	Address string
	Amount  uint64
}

// AssetAnnouncement is one asset-metadata unit observed from the trusted
// registry set, per spec.md §4.6's "one-off scan of asset-metadata units".
type AssetAnnouncement struct {
	Asset        string
	Name         string
	RegisteredBy string
}

// Monitor ingests ledger events and reconciles them against proposal and
// address state.
type Monitor struct {
	store  store.Store
	broker *notify.Broker
	log    *zap.Logger

	mu           sync.Mutex
	seenOutgoing map[string]time.Time // unit -> last-emitted time
	seenIncoming map[string]time.Time // unit|address|amount -> last-emitted time
}

// New constructs a blockchain-event monitor. log may be nil, in which
// case a no-op logger is used.
func New(st store.Store, broker *notify.Broker, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Monitor{
		store: st, broker: broker, log: log,
		seenOutgoing: make(map[string]time.Time),
		seenIncoming: make(map[string]time.Time),
	}
}

func (m *Monitor) dedupeOutgoing(unit string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.seenOutgoing[unit]; ok && time.Since(t) < outgoingDedupeWindow {
		return true
	}
	m.seenOutgoing[unit] = time.Now()
	return false
}

func (m *Monitor) dedupeIncoming(unit, address string, amount uint64) bool {
	key := fmt.Sprintf("%s|%s|%d", unit, address, amount)
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.seenIncoming[key]; ok && time.Since(t) < incomingDedupeWindow {
		return true
	}
	m.seenIncoming[key] = time.Now()
	return false
}

// NewJoint handles a new_joint event for a unit already known to belong
// to walletID (the caller — typically the hub subscription glue — is
// expected to have identified candidate wallets via the address watch
// set maintained through notify.Broker.OnNewAddress).
func (m *Monitor) NewJoint(ctx context.Context, walletID, unit string, outputs []Output) error {
	w, err := m.store.GetWallet(walletID)
	if err != nil {
		return err
	}

	proposals, err := m.store.ListProposals(walletID)
	if err != nil {
		return err
	}
	for _, p := range proposals {
		if p.TxID != unit {
			continue
		}
		switch p.Status {
		case model.StatusAccepted:
			if m.dedupeOutgoing(unit) {
				break
			}
			now := time.Now()
			pp := p
			pp.Status = model.StatusBroadcasted
			pp.BroadcastedOn = &now
			metrics.ProposalsTotal.WithLabelValues(string(pp.Status)).Inc()
			if err := m.store.PutProposal(&pp); err != nil {
				return err
			}
			if _, err := m.broker.Send(&model.Notification{
				Type: "NewOutgoingTxByThirdParty", WalletID: walletID, Data: unit,
			}); err != nil {
				m.log.Warn("chainsvc: failed to publish outgoing notification", zap.Error(err))
			}
		}
		break
	}

	recvAddrs, err := m.store.ListAddresses(walletID, false)
	if err != nil {
		return err
	}
	changeAddrs, err := m.store.ListAddresses(walletID, true)
	if err != nil {
		return err
	}
	own := make(map[string]bool, len(recvAddrs)+len(changeAddrs))
	changeSet := make(map[string]bool, len(changeAddrs))
	for _, a := range recvAddrs {
		own[a.Address] = true
	}
	for _, a := range changeAddrs {
		own[a.Address] = true
		changeSet[a.Address] = true
	}

	for _, out := range outputs {
		if !own[out.Address] {
			continue
		}
		_ = m.store.MarkAddressActivity(out.Address)
		if changeSet[out.Address] {
			continue // internal change address: no NewIncomingTx
		}
		if m.dedupeIncoming(unit, out.Address, out.Amount) {
			continue
		}
		if _, err := m.broker.Send(&model.Notification{
			Type:     "NewIncomingTx",
			WalletID: walletID,
			Data: map[string]interface{}{
				"txid": unit, "address": out.Address, "amount": out.Amount,
				"coin": w.Coin, "network": w.Network,
			},
		}); err != nil {
			m.log.Warn("chainsvc: failed to publish NewIncomingTx", zap.Error(err))
		}
	}
	return nil
}

// MciBecameStable handles an mci_became_stable event: every proposal
// whose txid is in units transitions broadcasted -> stable, and any
// single-shot tx-confirmation subscriptions for that unit fire and
// deactivate (spec.md §4.6).
//
// This resolves the spec's open question about the stable-confirmation
// notification's coin/network: the wallet identified by the matching
// proposal's walletId is the one in scope at this call site, so the
// notification carries that wallet's coin/network — not the
// subscription's, which does not itself carry a coin/network (SPEC_FULL.md
// §10, Open Question 1). It also resolves the second open question:
// subscriptions are looked up directly by the unit already bound in this
// loop (`row.unit`'s intended meaning), not a stray `txid`.
func (m *Monitor) MciBecameStable(ctx context.Context, walletID string, mci int, units []string) error {
	w, err := m.store.GetWallet(walletID)
	if err != nil {
		return err
	}
	proposals, err := m.store.ListProposals(walletID)
	if err != nil {
		return err
	}
	unitSet := make(map[string]bool, len(units))
	for _, u := range units {
		unitSet[u] = true
	}

	for _, p := range proposals {
		if p.Status != model.StatusBroadcasted || !unitSet[p.TxID] {
			continue
		}
		now := time.Now()
		pp := p
		pp.Stable = true
		pp.StableOn = &now
		pp.Status = model.StatusStable
		metrics.ProposalsTotal.WithLabelValues(string(pp.Status)).Inc()
		if err := m.store.PutProposal(&pp); err != nil {
			return err
		}

		subs, err := m.store.ListActiveTxConfirmationSubs(p.TxID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if _, err := m.broker.Send(&model.Notification{
				Type:      "TxConfirmation",
				WalletID:  sub.WalletID,
				CreatorID: sub.CopayerID,
				Data: map[string]interface{}{
					"txid": p.TxID, "mci": mci, "coin": w.Coin, "network": w.Network,
				},
			}); err != nil {
				m.log.Warn("chainsvc: failed to publish TxConfirmation", zap.Error(err))
				continue
			}
			if err := m.store.DeactivateTxConfirmationSub(sub.ID); err != nil {
				m.log.Warn("chainsvc: failed to deactivate subscription", zap.Error(err))
			}
		}
	}
	return nil
}

// ScanAssets upserts asset-metadata announcements into the asset table.
// Announcements are processed in asset-id order; when a name is already
// held by a different asset id earlier in the same call, the later asset
// is stored with its registrant appended to the name, so both remain
// discoverable. Collisions with assets stored by earlier calls are not
// detected.
func (m *Monitor) ScanAssets(ctx context.Context, announcements []AssetAnnouncement) error {
	sort.Slice(announcements, func(i, j int) bool { return announcements[i].Asset < announcements[j].Asset })
	byName := make(map[string]string) // name -> asset id already holding it
	for _, a := range announcements {
		name := a.Name
		if existingAsset, ok := byName[name]; ok && existingAsset != a.Asset {
			name = fmt.Sprintf("%s (%s)", a.Name, a.RegisteredBy)
		} else {
			byName[name] = a.Asset
		}
		if err := m.store.PutAsset(&model.AssetMetadata{
			Asset: a.Asset, Name: name, Suffixed: name != a.Name, RegisteredBy: a.RegisteredBy,
		}); err != nil {
			return err
		}
	}
	return nil
}
