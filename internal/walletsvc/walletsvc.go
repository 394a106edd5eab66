// Package walletsvc implements spec.md §4.2: wallet formation through
// copayer joins, the copayer roster and the public-key ring.
package walletsvc

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ripemd160"

	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/store"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

// Service implements wallet formation and the copayer registry.
type Service struct {
	store   store.Store
	locker  *lock.Manager
	broker  *notify.Broker
	maxKeys int
	lockOpts lock.Options
}

// New constructs a wallet-formation service.
func New(st store.Store, locker *lock.Manager, broker *notify.Broker, maxKeys int, lockOpts lock.Options) *Service {
	return &Service{store: st, locker: locker, broker: broker, maxKeys: maxKeys, lockOpts: lockOpts}
}

// CopayerIDFromXPub hashes an xpub into the opaque copayer id, per
// spec.md §3 ("id is the hash of its extended public key"), following
// the teacher's SHA-256 -> RIPEMD-160 address-hashing convention
// (core/wallet.go's pubKeyToAddress).
func CopayerIDFromXPub(xpub string) string {
	sha := sha256.Sum256([]byte(xpub))
	r := ripemd160.New()
	r.Write(sha[:])
	return fmt.Sprintf("%x", r.Sum(nil))
}

// CreateWalletInput is the createWallet request body.
type CreateWalletInput struct {
	ID                 string
	Name               string
	M, N               int
	Coin               string
	Network            string
	DerivationStrategy model.DerivationStrategy
	SingleAddress      bool
	PubKey             string
}

// CreateWallet validates (m, n) and persists a pending wallet (spec.md §4.2).
func (s *Service) CreateWallet(in CreateWalletInput) (*model.Wallet, error) {
	if in.M < 1 || in.N < 1 || in.N > 15 || in.M > in.N {
		return nil, walleterr.New(walleterr.WalletFull, "m and n must satisfy 1 <= m <= n <= 15")
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := s.store.GetWallet(id); err == nil {
		return nil, walleterr.New(walleterr.WalletAlreadyExists, "wallet already exists")
	}

	addrType := model.AddressNormal
	if in.N > 1 {
		addrType = model.AddressShared
	}

	w := &model.Wallet{
		ID:                 id,
		Name:               in.Name,
		M:                  in.M,
		N:                  in.N,
		Coin:               in.Coin,
		Network:            in.Network,
		DerivationStrategy: in.DerivationStrategy,
		AddressType:        addrType,
		SingleAddress:      in.SingleAddress,
		PubKey:             in.PubKey,
		ScanStatus:         model.ScanIdle,
		Status:             model.WalletPending,
		CreatedOn:          time.Now(),
	}
	if err := s.store.PutWallet(w); err != nil {
		return nil, err
	}
	walletlog.L().WithField("walletId", w.ID).Info("walletsvc: wallet created")
	return w, nil
}

// JoinWalletInput is the joinWallet request body.
type JoinWalletInput struct {
	WalletID         string
	Name             string
	XPubKey          string
	RequestPubKey    string
	CopayerSignature string
	DeviceID         string
	Account          uint32
	CustomData       string
	DryRun           bool
	Coin, Network    string
}

// JoinWallet verifies the copayer's declared (name, xpub, requestPubKey)
// triple against the wallet creation key, enforces xpub uniqueness within
// the wallet and across the service, and completes the wallet on its nth
// join (spec.md §4.2).
func (s *Service) JoinWallet(ctx context.Context, in JoinWalletInput) (*model.Wallet, *model.Copayer, error) {
	var resultWallet *model.Wallet
	var resultCopayer *model.Copayer

	err := s.locker.RunLocked(ctx, in.WalletID, s.lockOpts, func(ctx context.Context) error {
		w, err := s.store.GetWallet(in.WalletID)
		if err != nil {
			return walleterr.New(walleterr.WalletNotFound, "wallet not found")
		}
		if w.Status == model.WalletComplete {
			return walleterr.New(walleterr.WalletFull, "wallet is already complete")
		}
		if in.Coin != "" && in.Coin != w.Coin {
			return walleterr.New(walleterr.WalletNotFound, "coin mismatch")
		}
		if in.Network != "" && in.Network != w.Network {
			return walleterr.New(walleterr.WalletNotFound, "network mismatch")
		}

		msg := fmt.Sprintf("%s|%s|%s", in.Name, in.XPubKey, in.RequestPubKey)
		if ok, _ := cryptoutil.Verify(w.PubKey, []byte(msg), in.CopayerSignature); !ok {
			return walleterr.NotAuthorizedf("Invalid signature")
		}

		copayers, err := s.store.ListCopayers(w.ID)
		if err != nil {
			return err
		}
		for _, c := range copayers {
			if c.XPubKey == in.XPubKey {
				return walleterr.New(walleterr.CopayerInWallet, "xpub already joined this wallet")
			}
		}
		if registered, _ := s.store.XPubRegistered(in.XPubKey); registered {
			return walleterr.New(walleterr.CopayerRegistered, "xpub already registered to another wallet")
		}

		if in.DryRun {
			resultWallet = w
			return nil
		}

		id := CopayerIDFromXPub(in.XPubKey)
		copayer := &model.Copayer{
			ID:       id,
			WalletID: w.ID,
			Name:     in.Name,
			XPubKey:  in.XPubKey,
			Account:  in.Account,
			DeviceID: in.DeviceID,
			RequestPubKeys: []model.RequestPubKey{
				{Key: in.RequestPubKey, Signature: in.CopayerSignature, AddedOn: time.Now()},
			},
			CustomData: in.CustomData,
			CreatedOn:  time.Now(),
		}
		if err := s.store.PutCopayer(copayer); err != nil {
			return err
		}
		if err := s.store.RegisterXPub(in.XPubKey); err != nil {
			return err
		}
		if err := s.store.PutCopayerLookup(&model.CopayerLookup{
			CopayerID:      id,
			WalletID:       w.ID,
			RequestPubKeys: []string{in.RequestPubKey},
		}); err != nil {
			return err
		}

		w.CopayerIDs = append(w.CopayerIDs, id)
		w.PublicKeyRing = append(w.PublicKeyRing, model.PubKeyRingEntry{XPubKey: in.XPubKey, RequestPubKey: in.RequestPubKey, DeviceID: in.DeviceID})

		justCompleted := false
		if len(w.CopayerIDs) == w.N {
			w.Status = model.WalletComplete
			justCompleted = true
		}
		if err := s.store.PutWallet(w); err != nil {
			return err
		}

		if justCompleted && w.N > 1 {
			if _, err := s.broker.Send(&model.Notification{
				Type:     "WalletComplete",
				WalletID: w.ID,
			}); err != nil {
				walletlog.L().WithError(err).Warn("walletsvc: failed to publish WalletComplete")
			}
		}

		resultWallet = w
		resultCopayer = copayer
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return resultWallet, resultCopayer, nil
}

// AddAccessInput is the addAccess (PUT /copayers/:id) request body.
type AddAccessInput struct {
	CopayerID        string
	NewRequestPubKey string
	Signature        string
}

// requestKeyAuthIndex is the fixed child-key index reserved for request-
// key-rotation authentication, per spec.md §4.2 ("xpub's request-key-
// auth derivation").
const requestKeyAuthIndex = 0

// AddAccess prepends a new request public key to a copayer's history
// (newest first), gated by a signature under xpub's request-key-auth
// derivation (spec.md §4.2).
func (s *Service) AddAccess(in AddAccessInput) (*model.Copayer, error) {
	c, err := s.store.GetCopayer(in.CopayerID)
	if err != nil {
		return nil, walleterr.New(walleterr.CopayerNotFound, "copayer not found")
	}
	xpub, err := cryptoutil.ParseXPub(c.XPubKey)
	if err != nil {
		return nil, err
	}
	authKey, err := cryptoutil.DeriveChildPubKey(xpub, requestKeyAuthIndex)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("addAccess|%s", in.NewRequestPubKey)
	ok, err := cryptoutil.Verify(fmt.Sprintf("%x", authKey.PubKey), []byte(msg), in.Signature)
	if err != nil || !ok {
		return nil, walleterr.NotAuthorizedf("Invalid signature")
	}
	if len(c.RequestPubKeys) >= s.maxKeys {
		return nil, walleterr.New(walleterr.TooManyKeys, "request public key history full")
	}
	c.RequestPubKeys = append([]model.RequestPubKey{{
		Key:       in.NewRequestPubKey,
		Signature: in.Signature,
		AddedOn:   time.Now(),
	}}, c.RequestPubKeys...)
	if len(c.RequestPubKeys) > s.maxKeys {
		c.RequestPubKeys = c.RequestPubKeys[:s.maxKeys]
	}
	if err := s.store.PutCopayer(c); err != nil {
		return nil, err
	}
	lookup, err := s.store.GetCopayerLookup(c.ID)
	if err == nil {
		keys := make([]string, len(c.RequestPubKeys))
		for i, k := range c.RequestPubKeys {
			keys[i] = k.Key
		}
		lookup.RequestPubKeys = keys
		_ = s.store.PutCopayerLookup(lookup)
	}
	return c, nil
}
