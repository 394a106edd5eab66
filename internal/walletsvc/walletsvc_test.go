package walletsvc

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/store/memstore"
	"github.com/obyte-wallet/walletd/internal/walleterr"
)

func newService(t *testing.T, maxKeys int) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	locker := lock.New()
	broker := notify.NewBroker(st)
	return New(st, locker, broker, maxKeys, lock.Options{Wait: time.Second, Hold: time.Second}), st
}

func TestCreateWalletValidatesMN(t *testing.T) {
	svc, _ := newService(t, 100)
	_, err := svc.CreateWallet(CreateWalletInput{M: 3, N: 2})
	e, ok := walleterr.AsError(err)
	if !ok || e.Code != walleterr.WalletFull {
		t.Fatalf("expected m>n to be rejected, got %v", err)
	}
}

func TestCreateWalletSetsAddressType(t *testing.T) {
	svc, _ := newService(t, 100)
	w, err := svc.CreateWallet(CreateWalletInput{M: 1, N: 1, Name: "solo"})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if w.AddressType != model.AddressNormal {
		t.Fatalf("expected AddressNormal for n=1, got %s", w.AddressType)
	}
	if w.Status != model.WalletPending {
		t.Fatalf("expected new wallet to be pending, got %s", w.Status)
	}

	w2, err := svc.CreateWallet(CreateWalletInput{M: 2, N: 3, Name: "shared"})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	if w2.AddressType != model.AddressShared {
		t.Fatalf("expected AddressShared for n>1, got %s", w2.AddressType)
	}
}

func TestCreateWalletRejectsDuplicateID(t *testing.T) {
	svc, _ := newService(t, 100)
	w, err := svc.CreateWallet(CreateWalletInput{ID: "fixed-id", M: 1, N: 1})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	_, err = svc.CreateWallet(CreateWalletInput{ID: w.ID, M: 1, N: 1})
	e, ok := walleterr.AsError(err)
	if !ok || e.Code != walleterr.WalletAlreadyExists {
		t.Fatalf("expected WalletAlreadyExists, got %v", err)
	}
}

type joiner struct {
	xpub   string
	reqPub string
	priv   *big.Int
}

func newJoiner(t *testing.T, seedByte byte) joiner {
	t.Helper()
	priv := big.NewInt(int64(seedByte) + 1000)
	pub := cryptoutil.PubKeyFromPriv(priv)
	return joiner{
		xpub:   fmt.Sprintf("%x", pub) + fmt.Sprintf("%064x", seedByte),
		reqPub: fmt.Sprintf("%x", pub),
		priv:   priv,
	}
}

func signJoin(t *testing.T, walletPriv *big.Int, name, xpub, reqPub string) string {
	t.Helper()
	msg := fmt.Sprintf("%s|%s|%s", name, xpub, reqPub)
	sig, err := cryptoutil.Sign(walletPriv, []byte(msg))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

func TestJoinWalletCompletesOnNthJoin(t *testing.T) {
	svc, _ := newService(t, 100)
	walletPriv := big.NewInt(77)
	walletPub := fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(walletPriv))

	w, err := svc.CreateWallet(CreateWalletInput{M: 2, N: 3, Name: "multi", PubKey: walletPub})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	for i := 0; i < 2; i++ {
		j := newJoiner(t, byte(i))
		sig := signJoin(t, walletPriv, "copayer", j.xpub, j.reqPub)
		gotW, gotC, err := svc.JoinWallet(context.Background(), JoinWalletInput{
			WalletID: w.ID, Name: "copayer", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: sig,
		})
		if err != nil {
			t.Fatalf("JoinWallet %d: %v", i, err)
		}
		if gotC == nil {
			t.Fatalf("expected a copayer on join %d", i)
		}
		if gotW.Status == model.WalletComplete {
			t.Fatalf("wallet completed too early after %d joins", i+1)
		}
	}

	j := newJoiner(t, 2)
	sig := signJoin(t, walletPriv, "copayer", j.xpub, j.reqPub)
	gotW, _, err := svc.JoinWallet(context.Background(), JoinWalletInput{
		WalletID: w.ID, Name: "copayer", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: sig,
	})
	if err != nil {
		t.Fatalf("final JoinWallet: %v", err)
	}
	if gotW.Status != model.WalletComplete {
		t.Fatalf("expected wallet complete after 3rd join, got %s", gotW.Status)
	}
	if len(gotW.CopayerIDs) != 3 {
		t.Fatalf("expected 3 copayers, got %d", len(gotW.CopayerIDs))
	}
}

func TestJoinWalletRejectsBadSignature(t *testing.T) {
	svc, _ := newService(t, 100)
	walletPriv := big.NewInt(77)
	walletPub := fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(walletPriv))
	w, err := svc.CreateWallet(CreateWalletInput{M: 1, N: 1, PubKey: walletPub})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	j := newJoiner(t, 9)
	_, _, err = svc.JoinWallet(context.Background(), JoinWalletInput{
		WalletID: w.ID, Name: "copayer", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: "00",
	})
	e, ok := walleterr.AsError(err)
	if !ok || e.Code != walleterr.NotAuthorized {
		t.Fatalf("expected NotAuthorized for bad join signature, got %v", err)
	}
}

func TestJoinWalletRejectsDuplicateXPub(t *testing.T) {
	svc, _ := newService(t, 100)
	walletPriv := big.NewInt(77)
	walletPub := fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(walletPriv))
	w, err := svc.CreateWallet(CreateWalletInput{M: 1, N: 2, PubKey: walletPub})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	j := newJoiner(t, 3)
	sig := signJoin(t, walletPriv, "copayer", j.xpub, j.reqPub)
	if _, _, err := svc.JoinWallet(context.Background(), JoinWalletInput{
		WalletID: w.ID, Name: "copayer", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: sig,
	}); err != nil {
		t.Fatalf("first JoinWallet: %v", err)
	}

	sig2 := signJoin(t, walletPriv, "copayer2", j.xpub, j.reqPub)
	_, _, err = svc.JoinWallet(context.Background(), JoinWalletInput{
		WalletID: w.ID, Name: "copayer2", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: sig2,
	})
	e, ok := walleterr.AsError(err)
	if !ok || e.Code != walleterr.CopayerInWallet {
		t.Fatalf("expected CopayerInWallet for a duplicate xpub, got %v", err)
	}
}

func TestJoinWalletDryRunDoesNotPersist(t *testing.T) {
	svc, st := newService(t, 100)
	walletPriv := big.NewInt(77)
	walletPub := fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(walletPriv))
	w, err := svc.CreateWallet(CreateWalletInput{M: 1, N: 2, PubKey: walletPub})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}

	j := newJoiner(t, 5)
	sig := signJoin(t, walletPriv, "copayer", j.xpub, j.reqPub)
	_, c, err := svc.JoinWallet(context.Background(), JoinWalletInput{
		WalletID: w.ID, Name: "copayer", XPubKey: j.xpub, RequestPubKey: j.reqPub, CopayerSignature: sig, DryRun: true,
	})
	if err != nil {
		t.Fatalf("dry run JoinWallet: %v", err)
	}
	if c != nil {
		t.Fatal("expected no copayer returned from a dry run")
	}
	copayers, err := st.ListCopayers(w.ID)
	if err != nil {
		t.Fatalf("ListCopayers: %v", err)
	}
	if len(copayers) != 0 {
		t.Fatalf("expected dry run to persist nothing, found %d copayers", len(copayers))
	}
}

// childPriv mirrors cryptoutil's unexported unhardened-child derivation
// formula so the test, acting as a copayer who legitimately holds the
// private key, can sign under the same child key AddAccess verifies
// against (cryptoutil.DeriveChildPubKey derives only the public half).
func childPriv(t *testing.T, parentPriv *big.Int, parentPub []byte, parentChain []byte, index uint32) *big.Int {
	t.Helper()
	data := make([]byte, 33+4)
	copy(data, parentPub)
	binary.BigEndian.PutUint32(data[33:], index)
	mac := hmac.New(sha512.New, parentChain)
	mac.Write(data)
	I := mac.Sum(nil)
	il := new(big.Int).SetBytes(I[:32])
	n := btcec.S256().N
	child := new(big.Int).Add(il, parentPriv)
	child.Mod(child, n)
	return child
}

func TestAddAccessPrependsKey(t *testing.T) {
	svc, st := newService(t, 100)

	accountPriv := big.NewInt(123456)
	accountChain := make([]byte, 32)
	accountChain[31] = 7
	accountPub := cryptoutil.PubKeyFromPriv(accountPriv)
	xpub := fmt.Sprintf("%x:%x", accountPub, accountChain)

	copayer := &model.Copayer{ID: "c1", WalletID: "w1", XPubKey: xpub, RequestPubKeys: []model.RequestPubKey{{Key: "seedkey"}}}
	if err := st.PutCopayer(copayer); err != nil {
		t.Fatalf("PutCopayer: %v", err)
	}
	if err := st.PutCopayerLookup(&model.CopayerLookup{CopayerID: "c1", WalletID: "w1", RequestPubKeys: []string{"seedkey"}}); err != nil {
		t.Fatalf("PutCopayerLookup: %v", err)
	}

	cp := childPriv(t, accountPriv, accountPub, accountChain, requestKeyAuthIndex)
	newKey := "newrequestpubkey"
	msg := fmt.Sprintf("addAccess|%s", newKey)
	sig, err := cryptoutil.Sign(cp, []byte(msg))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	updated, err := svc.AddAccess(AddAccessInput{CopayerID: "c1", NewRequestPubKey: newKey, Signature: sig})
	if err != nil {
		t.Fatalf("AddAccess: %v", err)
	}
	if len(updated.RequestPubKeys) != 2 {
		t.Fatalf("expected 2 request pub keys after AddAccess, got %d", len(updated.RequestPubKeys))
	}
	if updated.RequestPubKeys[0].Key != newKey {
		t.Fatalf("expected the newest key to be prepended, got %+v", updated.RequestPubKeys)
	}
}

func TestAddAccessEnforcesMaxKeys(t *testing.T) {
	svc, st := newService(t, 1)

	accountPriv := big.NewInt(654321)
	accountChain := make([]byte, 32)
	accountChain[31] = 9
	accountPub := cryptoutil.PubKeyFromPriv(accountPriv)
	xpub := fmt.Sprintf("%x:%x", accountPub, accountChain)

	copayer := &model.Copayer{ID: "c1", WalletID: "w1", XPubKey: xpub, RequestPubKeys: []model.RequestPubKey{{Key: "seedkey"}}}
	if err := st.PutCopayer(copayer); err != nil {
		t.Fatalf("PutCopayer: %v", err)
	}

	cp := childPriv(t, accountPriv, accountPub, accountChain, requestKeyAuthIndex)
	newKey := "anotherkey"
	msg := fmt.Sprintf("addAccess|%s", newKey)
	sig, err := cryptoutil.Sign(cp, []byte(msg))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err = svc.AddAccess(AddAccessInput{CopayerID: "c1", NewRequestPubKey: newKey, Signature: sig})
	e, ok := walleterr.AsError(err)
	if !ok || e.Code != walleterr.TooManyKeys {
		t.Fatalf("expected TooManyKeys when history is already at maxKeys, got %v", err)
	}
}
