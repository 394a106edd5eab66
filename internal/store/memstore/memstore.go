// Package memstore is the in-memory reference implementation of
// internal/store.Store, guarded by a single RWMutex per spec.md §5's
// note that each collection is mutated only under the owning wallet's
// lock "except the copayer-lookup index and asset table, which are
// globally guarded by document-level atomicity" — here every collection
// additionally gets a coarse mutex so the store is safe to call directly
// in tests that bypass internal/lock.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store"
)

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	wallets       map[string]model.Wallet
	copayers      map[string]model.Copayer
	copayersByDev map[string]string // deviceId -> copayerId
	lookups       map[string]model.CopayerLookup
	xpubs         map[string]bool
	addresses     map[string]model.Address
	proposals     map[string]model.TxProposal
	notifications []model.Notification
	notifSeq      int64
	sessions      map[string]model.Session
	txNotes       map[string]model.TxNote
	txConfSubs    map[string]model.TxConfirmationSubscription
	pushSubs      map[string]model.PushSubscription
	prefs         map[string]model.Preferences
	assets        map[string]model.AssetMetadata
	broadcastLog  []model.BroadcastLogEntry
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		wallets:       make(map[string]model.Wallet),
		copayers:      make(map[string]model.Copayer),
		copayersByDev: make(map[string]string),
		lookups:       make(map[string]model.CopayerLookup),
		xpubs:         make(map[string]bool),
		addresses:     make(map[string]model.Address),
		proposals:     make(map[string]model.TxProposal),
		sessions:      make(map[string]model.Session),
		txNotes:       make(map[string]model.TxNote),
		txConfSubs:    make(map[string]model.TxConfirmationSubscription),
		pushSubs:      make(map[string]model.PushSubscription),
		prefs:         make(map[string]model.Preferences),
		assets:        make(map[string]model.AssetMetadata),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) PutWallet(w *model.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.ID] = *w
	return nil
}

func (s *Store) GetWallet(id string) (*model.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (s *Store) PutCopayer(c *model.Copayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copayers[c.ID] = *c
	if c.DeviceID != "" {
		s.copayersByDev[c.DeviceID] = c.ID
	}
	return nil
}

func (s *Store) GetCopayer(id string) (*model.Copayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.copayers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCopayers(walletID string) ([]model.Copayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Copayer
	for _, c := range s.copayers {
		if c.WalletID == walletID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out, nil
}

func (s *Store) FindCopayerByDeviceID(deviceID string) (*model.Copayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.copayersByDev[deviceID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := s.copayers[id]
	return &c, nil
}

func (s *Store) PutCopayerLookup(l *model.CopayerLookup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups[l.CopayerID] = *l
	return nil
}

func (s *Store) GetCopayerLookup(copayerID string) (*model.CopayerLookup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lookups[copayerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (s *Store) XPubRegistered(xpub string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.xpubs[xpub], nil
}

// RegisterXPub marks an xpub as used service-wide (spec.md §4.2's
// cross-wallet uniqueness check). Exported so walletsvc can call it
// atomically alongside PutCopayer within the same wallet-lock section.
func (s *Store) RegisterXPub(xpub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xpubs[xpub] = true
	return nil
}

func (s *Store) PutAddress(a *model.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.Address] = *a
	return nil
}

func (s *Store) GetAddress(address string) (*model.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.addresses[address]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAddresses(walletID string, isChange bool) ([]model.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Address
	for _, a := range s.addresses {
		if a.WalletID == walletID && a.IsChange == isChange {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) MarkAddressActivity(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[address]
	if !ok {
		return store.ErrNotFound
	}
	a.HasActivity = true
	s.addresses[address] = a
	return nil
}

func (s *Store) PutProposal(p *model.TxProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = *p
	return nil
}

func (s *Store) GetProposal(id string) (*model.TxProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProposals(walletID string) ([]model.TxProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TxProposal
	for _, p := range s.proposals {
		if p.WalletID == walletID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out, nil
}

func (s *Store) DeleteProposal(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.proposals, id)
	return nil
}

func (s *Store) AppendNotification(n *model.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifSeq++
	n.ID = s.notifSeq
	s.notifications = append(s.notifications, *n)
	return n.ID, nil
}

func (s *Store) ListNotifications(walletID string, minTS time.Time, afterID int64) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if n.WalletID != walletID {
			continue
		}
		if afterID > 0 && n.ID <= afterID {
			continue
		}
		if afterID <= 0 && !minTS.IsZero() && n.CreatedOn.Before(minTS) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) PutSession(sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSession(id string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) ListSessionsByCopayer(copayerID string) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.CopayerID == copayerID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) PutTxNote(n *model.TxNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txNotes[n.TxID] = *n
	return nil
}

func (s *Store) GetTxNote(txid string) (*model.TxNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.txNotes[txid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &n, nil
}

func (s *Store) ListTxNotes(walletID string, minTS time.Time) ([]model.TxNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TxNote
	for _, n := range s.txNotes {
		if n.WalletID == walletID && (minTS.IsZero() || !n.EditedOn.Before(minTS)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) PutTxConfirmationSub(sub *model.TxConfirmationSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txConfSubs[sub.ID] = *sub
	return nil
}

func (s *Store) ListActiveTxConfirmationSubs(txid string) ([]model.TxConfirmationSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TxConfirmationSubscription
	for _, sub := range s.txConfSubs {
		if sub.TxID == txid && sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) DeactivateTxConfirmationSub(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.txConfSubs[id]
	if !ok {
		return store.ErrNotFound
	}
	sub.Active = false
	s.txConfSubs[id] = sub
	return nil
}

func (s *Store) DeleteTxConfirmationSub(copayerID, txid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.txConfSubs {
		if sub.CopayerID == copayerID && sub.TxID == txid {
			delete(s.txConfSubs, id)
		}
	}
	return nil
}

func (s *Store) PutPushSubscription(sub *model.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushSubs[sub.Token] = *sub
	return nil
}

func (s *Store) DeletePushSubscription(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pushSubs, token)
	return nil
}

func (s *Store) ListPushSubscriptions(copayerID string) ([]model.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PushSubscription
	for _, sub := range s.pushSubs {
		if sub.CopayerID == copayerID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *Store) PutPreferences(p *model.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[p.CopayerID] = *p
	return nil
}

func (s *Store) GetPreferences(copayerID string) (*model.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[copayerID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) PutAsset(a *model.AssetMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.Asset] = *a
	return nil
}

func (s *Store) GetAsset(asset string) (*model.AssetMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[asset]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAssets() ([]model.AssetMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AssetMetadata, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) AppendBroadcastLog(e *model.BroadcastLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLog = append(s.broadcastLog, *e)
	return nil
}

// RecentBroadcastLog returns broadcast-log entries for walletID no older
// than since, most recent first. limit <= 0 means unlimited.
func (s *Store) RecentBroadcastLog(walletID string, since time.Time, limit int) ([]model.BroadcastLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BroadcastLogEntry
	for i := len(s.broadcastLog) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := s.broadcastLog[i]
		if e.WalletID == walletID && !e.BroadcastedOn.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
