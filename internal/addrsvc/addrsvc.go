// Package addrsvc implements spec.md §4.3: deterministic address
// derivation, the gap-limit policy and scan/recovery.
package addrsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

// Service implements the address engine.
type Service struct {
	store    store.Store
	locker   *lock.Manager
	explorer explorer.Explorer
	lockOpts lock.Options
	maxGap   int
	scanGap  int
}

// New constructs an address-engine service.
func New(st store.Store, locker *lock.Manager, exp explorer.Explorer, lockOpts lock.Options, maxGap, scanGap int) *Service {
	return &Service{store: st, locker: locker, explorer: exp, lockOpts: lockOpts, maxGap: maxGap, scanGap: scanGap}
}

func ring(w *model.Wallet) []cryptoutil.CopayerKey {
	out := make([]cryptoutil.CopayerKey, len(w.PublicKeyRing))
	for i, e := range w.PublicKeyRing {
		xp, err := cryptoutil.ParseXPub(e.XPubKey)
		if err != nil {
			continue
		}
		out[i] = cryptoutil.CopayerKey{DeviceID: e.DeviceID, XPub: xp}
	}
	return out
}

func requireScannable(w *model.Wallet) error {
	if w.Status != model.WalletComplete {
		return walleterr.New(walleterr.WalletNotComplete, "wallet is not complete")
	}
	switch w.ScanStatus {
	case model.ScanRunning:
		return walleterr.New(walleterr.WalletBusy, "wallet is scanning")
	case model.ScanError:
		return walleterr.New(walleterr.WalletNeedScan, "wallet needs a successful scan")
	}
	return nil
}

func (s *Service) deriveAndPersist(w *model.Wallet, change bool, index uint32) (*model.Address, error) {
	derived, err := cryptoutil.DeriveAddress(ring(w), w.M, change, index)
	if err != nil {
		return nil, err
	}
	addrType := model.AddressNormal
	if w.N > 1 {
		addrType = model.AddressShared
	}
	addr := &model.Address{
		Address:      derived.Address,
		WalletID:     w.ID,
		IsChange:     change,
		Path:         fmt.Sprintf("m/%d/%d", boolIdx(change), index),
		Index:        index,
		Type:         addrType,
		Definition:   []interface{}{derived.Definition},
		SigningPaths: derived.SigningPaths,
		CreatedOn:    time.Now(),
	}
	if err := s.store.PutAddress(addr); err != nil {
		return nil, err
	}
	return addr, nil
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CreateAddress creates (or, for singleAddress wallets, returns) a
// receive address, enforcing the gap-limit policy (spec.md §4.3).
func (s *Service) CreateAddress(ctx context.Context, walletID string, ignoreMaxGap bool) (*model.Address, error) {
	var result *model.Address
	err := s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		w, err := s.store.GetWallet(walletID)
		if err != nil {
			return walleterr.New(walleterr.WalletNotFound, "wallet not found")
		}
		if err := requireScannable(w); err != nil {
			return err
		}

		existing, err := s.store.ListAddresses(walletID, false)
		if err != nil {
			return err
		}

		if w.SingleAddress {
			if len(existing) > 0 {
				result = &existing[0]
				return nil
			}
			a, err := s.deriveAndPersist(w, false, 0)
			result = a
			return err
		}

		if !ignoreMaxGap && len(existing) >= s.maxGap {
			tail := existing[len(existing)-s.maxGap:]
			anyActive := false
			for i := range tail {
				if tail[i].HasActivity {
					anyActive = true
					continue
				}
				active, _ := s.explorer.GetAddressActivity(tail[i].Address)
				if active {
					_ = s.store.MarkAddressActivity(tail[i].Address)
					anyActive = true
				}
			}
			if !anyActive {
				return walleterr.New(walleterr.MainAddressGapReached, "gap limit reached; no activity on tail addresses")
			}
		}

		a, err := s.deriveAndPersist(w, false, uint32(len(existing)))
		result = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FirstInactiveChange returns the first change address with no activity,
// creating one if none exists, used by txsvc to pick a change address.
func (s *Service) FirstInactiveChange(ctx context.Context, w *model.Wallet) (*model.Address, error) {
	if w.SingleAddress {
		recv, err := s.store.ListAddresses(w.ID, false)
		if err != nil {
			return nil, err
		}
		if len(recv) == 0 {
			return nil, walleterr.New(walleterr.InvalidChangeAddress, "wallet has no addresses yet")
		}
		return &recv[0], nil
	}
	changes, err := s.store.ListAddresses(w.ID, true)
	if err != nil {
		return nil, err
	}
	for i := range changes {
		if !changes[i].HasActivity {
			return &changes[i], nil
		}
	}
	return s.deriveAndPersist(w, true, uint32(len(changes)))
}

// Scan walks receive and change branches, probing the explorer for
// activity and stopping after scanGap consecutive inactive addresses
// (spec.md §4.3).
func (s *Service) Scan(ctx context.Context, walletID string) error {
	return s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		w, err := s.store.GetWallet(walletID)
		if err != nil {
			return walleterr.New(walleterr.WalletNotFound, "wallet not found")
		}
		w.ScanStatus = model.ScanRunning
		_ = s.store.PutWallet(w)

		for _, change := range []bool{false, true} {
			if err := s.scanBranch(w, change); err != nil {
				w.ScanStatus = model.ScanError
				_ = s.store.PutWallet(w)
				return err
			}
		}
		w.ScanStatus = model.ScanSuccess
		return s.store.PutWallet(w)
	})
}

func (s *Service) scanBranch(w *model.Wallet, change bool) error {
	inactive := 0
	var idx uint32
	for inactive < s.scanGap {
		addr, err := s.deriveAndPersist(w, change, idx)
		if err != nil {
			return err
		}
		active, err := s.explorer.GetAddressActivity(addr.Address)
		if err != nil {
			return err
		}
		if active {
			addr.HasActivity = true
			_ = s.store.PutAddress(addr)
			inactive = 0
		} else {
			inactive++
		}
		idx++
	}
	walletlog.L().WithField("walletId", w.ID).WithField("change", change).Info("addrsvc: scan branch complete")
	return nil
}

// PowerScan uses a larger stride to skip ahead; on a hit it fills in the
// intermediate addresses, per spec.md §4.3 and the Open Question in §9
// ("no activity -> no skipped addresses added").
func (s *Service) PowerScan(ctx context.Context, walletID string, change bool, stride int) error {
	if stride <= 0 {
		stride = 1000
	}
	return s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		w, err := s.store.GetWallet(walletID)
		if err != nil {
			return walleterr.New(walleterr.WalletNotFound, "wallet not found")
		}
		var idx uint32
		for {
			derived, err := cryptoutil.DeriveAddress(ring(w), w.M, change, idx+uint32(stride))
			if err != nil {
				return err
			}
			active, err := s.explorer.GetAddressActivity(derived.Address)
			if err != nil {
				return err
			}
			if !active {
				// No activity at the skipped-to probe point: discard the
				// skipped range entirely, do not persist any addresses
				// for it, and stop (Open Question #3).
				return nil
			}
			for fill := idx; fill <= idx+uint32(stride); fill++ {
				if _, err := s.deriveAndPersist(w, change, fill); err != nil {
					return err
				}
			}
			idx += uint32(stride)
		}
	})
}
