package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/fiat"
	"github.com/obyte-wallet/walletd/internal/hub"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/mail"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/push"
	"github.com/obyte-wallet/walletd/internal/session"
	"github.com/obyte-wallet/walletd/internal/store/memstore"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/utxosvc"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
)

func newTestServer(t *testing.T) (*Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	locker := lock.New()
	broker := notify.NewBroker(st)
	exp := explorer.NewMem()
	h := hub.NewMem()
	lockOpts := lock.Options{Wait: time.Second, Hold: time.Second}

	sessions := session.New(st, time.Hour, "")
	wallets := walletsvc.New(st, locker, broker, 100, lockOpts)
	addrs := addrsvc.New(st, locker, exp, lockOpts, 20, 10)
	utxos := utxosvc.New(st, exp)
	txs := txsvc.New(st, locker, broker, addrs, utxos, exp, h, lockOpts, 10, time.Hour, time.Hour)
	fiatCache := fiat.New(fiat.NopProvider{}, time.Hour, time.Hour)

	srv := New(Deps{
		Sessions: sessions, Wallets: wallets, Addrs: addrs, Txs: txs, Utxos: utxos,
		Broker: broker, Explorer: exp, Hub: h, Store: st, Fiat: fiatCache,
		Push: push.New(), Mail: mail.New(),
	})
	return srv, st
}

type apiFixture struct {
	priv    *big.Int
	pub     []byte
	chain   []byte
	reqPriv *big.Int
}

func newAPIFixture() apiFixture {
	priv := big.NewInt(777777)
	pub := cryptoutil.PubKeyFromPriv(priv)
	chain := make([]byte, 32)
	chain[0] = 9
	return apiFixture{priv: priv, pub: pub, chain: chain, reqPriv: big.NewInt(888888)}
}

func (f apiFixture) xpub() string { return fmt.Sprintf("%x:%x", f.pub, f.chain) }
func (f apiFixture) reqPub() string {
	return fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(f.reqPriv))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateWalletAndJoinSingleSignatureFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	f := newAPIFixture()

	rec := doJSON(t, router, http.MethodPost, "/wallets", createWalletRequest{
		ID: "w1", Name: "my wallet", M: 1, N: 1, Coin: "GBYTE", Network: "livenet", PubKey: fmt.Sprintf("%x", cryptoutil.PubKeyFromPriv(f.priv)),
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating the wallet, got %d: %s", rec.Code, rec.Body.String())
	}

	joinMsg := fmt.Sprintf("%s|%s|%s", "copayer one", f.xpub(), f.reqPub())
	sig, err := cryptoutil.Sign(f.priv, []byte(joinMsg))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	rec = doJSON(t, router, http.MethodPost, "/wallets/w1/copayers", joinWalletRequest{
		Name: "copayer one", XPubKey: f.xpub(), RequestPubKey: f.reqPub(), CopayerSignature: sig, DeviceID: "dev1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 joining the wallet, got %d: %s", rec.Code, rec.Body.String())
	}

	loginMsg := session.CanonicalMessage(http.MethodPost, "/login", nil)
	loginSig, err := cryptoutil.Sign(f.reqPriv, loginMsg)
	if err != nil {
		t.Fatalf("Sign login message: %v", err)
	}
	copayerID := walletsvc.CopayerIDFromXPub(f.xpub())
	rec = doJSON(t, router, http.MethodPost, "/login", loginRequest{
		CopayerID: copayerID, Message: string(loginMsg), Signature: loginSig,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 logging in, got %d: %s", rec.Code, rec.Body.String())
	}
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("expected a non-empty session id")
	}

	rec = doJSON(t, router, http.MethodGet, "/wallets", nil, map[string]string{"x-session": sess.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching the wallet, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/addresses", createAddressRequest{}, map[string]string{"x-session": sess.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating an address, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRouteRejectsMissingCredentials(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/wallets", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no credentials, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProtectedRouteRejectsBadSessionToken(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/wallets", nil, map[string]string{"x-session": "not-a-real-session"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bogus session token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClientVersionMiddlewareRejectsStaleClient(t *testing.T) {
	st := memstore.New()
	locker := lock.New()
	broker := notify.NewBroker(st)
	exp := explorer.NewMem()
	h := hub.NewMem()
	lockOpts := lock.Options{Wait: time.Second, Hold: time.Second}
	sessions := session.New(st, time.Hour, "5.0.0")
	wallets := walletsvc.New(st, locker, broker, 100, lockOpts)
	addrs := addrsvc.New(st, locker, exp, lockOpts, 20, 10)
	utxos := utxosvc.New(st, exp)
	txs := txsvc.New(st, locker, broker, addrs, utxos, exp, h, lockOpts, 10, time.Hour, time.Hour)
	srv := New(Deps{
		Sessions: sessions, Wallets: wallets, Addrs: addrs, Txs: txs, Utxos: utxos,
		Broker: broker, Explorer: exp, Hub: h, Store: st,
		Fiat: fiat.New(fiat.NopProvider{}, time.Hour, time.Hour), Push: push.New(), Mail: mail.New(),
	})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/wallets", createWalletRequest{ID: "w1", M: 1, N: 1}, map[string]string{"x-client-version": "1.0.0"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected a version below the floor to be rejected, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateWalletRejectsInvalidMN(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/wallets", createWalletRequest{ID: "w1", M: 3, N: 2}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid (m, n), got %d: %s", rec.Code, rec.Body.String())
	}
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != "WALLET_FULL" {
		t.Fatalf("expected the WALLET_FULL code in the error body, got %+v", body)
	}
}
