// Package notify implements the append-only per-wallet notification log
// and the in-process fan-out broker of spec.md §4.7; there is no relay to
// a remote broker.
package notify

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obyte-wallet/walletd/internal/metrics"
	"github.com/obyte-wallet/walletd/internal/model"
)

// Store is the subset of internal/store.Store the broker needs to persist
// notifications; kept narrow so the broker does not import the whole store.
type Store interface {
	AppendNotification(n *model.Notification) (int64, error)
	ListNotifications(walletID string, minTS time.Time, afterID int64) ([]model.Notification, error)
}

// Subscriber receives every notification published for any wallet it is
// interested in; Broker does the per-wallet ordering, the subscriber just
// reads its channel.
type Subscriber struct {
	ch chan model.Notification
}

// C returns the subscriber's delivery channel.
func (s *Subscriber) C() <-chan model.Notification { return s.ch }

// AddressAnnouncement is a broker-carried hint used by the blockchain
// monitor to update its watch set (spec.md §4.7).
type AddressAnnouncement struct {
	WalletID string
	Address  string
}

// Broker fans out notifications in-process and keeps a monotonic
// in-process ticker alongside the storage-assigned id, per spec.md §9
// ("ticker value existing beside the storage id is a defence against
// same-millisecond inserts").
type Broker struct {
	store  Store
	ticker int64

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	addrSubs    []func(AddressAnnouncement)
}

// NewBroker constructs a broker backed by store.
func NewBroker(store Store) *Broker {
	return &Broker{store: store, subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new notification subscriber. Callers must drain
// C() or Unsubscribe to avoid blocking publishers (the channel is
// buffered but bounded).
func (b *Broker) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan model.Notification, 64)}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes and closes a subscriber.
func (b *Broker) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
	close(s.ch)
}

// OnNewAddress registers a callback invoked whenever AddAddress announces
// a new watched address (spec.md §4.7).
func (b *Broker) OnNewAddress(h func(AddressAnnouncement)) {
	b.mu.Lock()
	b.addrSubs = append(b.addrSubs, h)
	b.mu.Unlock()
}

// AddAddress announces a newly derived address to the monitor pipeline.
func (b *Broker) AddAddress(walletID, address string) {
	b.mu.Lock()
	hs := append([]func(AddressAnnouncement){}, b.addrSubs...)
	b.mu.Unlock()
	for _, h := range hs {
		h(AddressAnnouncement{WalletID: walletID, Address: address})
	}
}

// Send persists and fans out a notification. Delivery to in-process
// subscribers is best-effort (spec.md §7): a full subscriber channel
// drops the message rather than blocking the publisher, since the
// pipeline must never block on notification delivery.
func (b *Broker) Send(n *model.Notification) (*model.Notification, error) {
	n.Ticker = atomic.AddInt64(&b.ticker, 1)
	if n.CreatedOn.IsZero() {
		n.CreatedOn = time.Now()
	}
	id, err := b.store.AppendNotification(n)
	if err != nil {
		return nil, err
	}
	n.ID = id
	metrics.NotificationsSentTotal.WithLabelValues(n.Type).Inc()

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- *n:
		default:
		}
	}
	return n, nil
}

// List returns notifications for walletID, ordered by (id), matching
// spec.md §8's monotonicity invariant. Callers may page either by minTS
// or by "strictly after notificationId" (afterID); pass afterID<=0 to
// page by minTS alone.
func (b *Broker) List(walletID string, minTS time.Time, afterID int64) ([]model.Notification, error) {
	out, err := b.store.ListNotifications(walletID, minTS, afterID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
