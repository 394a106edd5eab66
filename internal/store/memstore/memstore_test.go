package memstore

import (
	"testing"
	"time"

	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store"
)

func TestWalletRoundTrip(t *testing.T) {
	s := New()
	w := &model.Wallet{ID: "w1", Name: "test", M: 2, N: 3}
	if err := s.PutWallet(w); err != nil {
		t.Fatalf("PutWallet: %v", err)
	}
	got, err := s.GetWallet("w1")
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if got.Name != "test" || got.M != 2 {
		t.Fatalf("got %+v", got)
	}
	if _, err := s.GetWallet("missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAddressesSortedByIndex(t *testing.T) {
	s := New()
	for _, idx := range []uint32{2, 0, 1} {
		if err := s.PutAddress(&model.Address{Address: string(rune('a' + idx)), WalletID: "w1", Index: idx}); err != nil {
			t.Fatalf("PutAddress: %v", err)
		}
	}
	out, err := s.ListAddresses("w1", false)
	if err != nil {
		t.Fatalf("ListAddresses: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(out))
	}
	for i, a := range out {
		if a.Index != uint32(i) {
			t.Fatalf("expected sorted by index, got %+v", out)
		}
	}
}

func TestAppendNotificationAssignsStrictlyIncreasingIDs(t *testing.T) {
	s := New()
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := s.AppendNotification(&model.Notification{WalletID: "w1", Type: "x", CreatedOn: time.Now()})
		if err != nil {
			t.Fatalf("AppendNotification: %v", err)
		}
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("expected strictly increasing ids, got %v", ids)
		}
	}
}

func TestListNotificationsFiltersByAfterID(t *testing.T) {
	s := New()
	var last int64
	for i := 0; i < 5; i++ {
		id, _ := s.AppendNotification(&model.Notification{WalletID: "w1", Type: "x"})
		last = id
	}
	out, err := s.ListNotifications("w1", time.Time{}, last-2)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 notifications after id %d, got %d", last-2, len(out))
	}
}

func TestRecentBroadcastLogUnlimitedWhenLimitZero(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < 5; i++ {
		if err := s.AppendBroadcastLog(&model.BroadcastLogEntry{ProposalID: string(rune('a' + i)), WalletID: "w1", BroadcastedOn: now}); err != nil {
			t.Fatalf("AppendBroadcastLog: %v", err)
		}
	}
	out, err := s.RecentBroadcastLog("w1", now.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("RecentBroadcastLog: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("expected all 5 entries with limit=0, got %d", len(out))
	}
}

func TestRecentBroadcastLogRespectsWindowAndLimit(t *testing.T) {
	s := New()
	now := time.Now()
	_ = s.AppendBroadcastLog(&model.BroadcastLogEntry{ProposalID: "old", WalletID: "w1", BroadcastedOn: now.Add(-48 * time.Hour)})
	_ = s.AppendBroadcastLog(&model.BroadcastLogEntry{ProposalID: "new1", WalletID: "w1", BroadcastedOn: now})
	_ = s.AppendBroadcastLog(&model.BroadcastLogEntry{ProposalID: "new2", WalletID: "w1", BroadcastedOn: now})

	out, err := s.RecentBroadcastLog("w1", now.Add(-24*time.Hour), 1)
	if err != nil {
		t.Fatalf("RecentBroadcastLog: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected limit=1 to return exactly 1 entry, got %d", len(out))
	}
	if out[0].ProposalID != "new2" {
		t.Fatalf("expected most recent entry first, got %s", out[0].ProposalID)
	}
}

func TestDeactivateTxConfirmationSub(t *testing.T) {
	s := New()
	sub := &model.TxConfirmationSubscription{ID: "s1", TxID: "tx1", Active: true}
	if err := s.PutTxConfirmationSub(sub); err != nil {
		t.Fatalf("PutTxConfirmationSub: %v", err)
	}
	active, err := s.ListActiveTxConfirmationSubs("tx1")
	if err != nil || len(active) != 1 {
		t.Fatalf("expected one active sub, got %v err %v", active, err)
	}
	if err := s.DeactivateTxConfirmationSub("s1"); err != nil {
		t.Fatalf("DeactivateTxConfirmationSub: %v", err)
	}
	active, err = s.ListActiveTxConfirmationSubs("tx1")
	if err != nil || len(active) != 0 {
		t.Fatalf("expected no active subs after deactivation, got %v", active)
	}
}

func TestXPubRegistered(t *testing.T) {
	s := New()
	if ok, _ := s.XPubRegistered("xpub1"); ok {
		t.Fatal("expected unregistered xpub to report false")
	}
	if err := s.RegisterXPub("xpub1"); err != nil {
		t.Fatalf("RegisterXPub: %v", err)
	}
	if ok, _ := s.XPubRegistered("xpub1"); !ok {
		t.Fatal("expected registered xpub to report true")
	}
}
