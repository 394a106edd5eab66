package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
)

type loginRequest struct {
	CopayerID string `json:"copayerId"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.sessions.Login(in.CopayerID, in.Message, in.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := r.Header.Get("x-session"); tok != "" {
		_ = s.sessions.Logout(tok)
	}
	writeJSON(w, http.StatusOK, nil)
}

type createWalletRequest struct {
	ID                 string                   `json:"id"`
	Name               string                   `json:"name"`
	M                  int                      `json:"m"`
	N                  int                      `json:"n"`
	Coin               string                   `json:"coin"`
	Network            string                   `json:"network"`
	DerivationStrategy model.DerivationStrategy `json:"derivationStrategy"`
	SingleAddress      bool                     `json:"singleAddress"`
	PubKey             string                   `json:"pubKey"`
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var in createWalletRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	wallet, err := s.wallets.CreateWallet(walletsvc.CreateWalletInput{
		ID: in.ID, Name: in.Name, M: in.M, N: in.N, Coin: in.Coin, Network: in.Network,
		DerivationStrategy: in.DerivationStrategy, SingleAddress: in.SingleAddress, PubKey: in.PubKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

type joinWalletRequest struct {
	Name             string `json:"name"`
	XPubKey          string `json:"xPubKey"`
	RequestPubKey    string `json:"requestPubKey"`
	CopayerSignature string `json:"copayerSignature"`
	DeviceID         string `json:"deviceId"`
	Account          uint32 `json:"account"`
	CustomData       string `json:"customData"`
	DryRun           bool   `json:"dryRun"`
	Coin             string `json:"coin"`
	Network          string `json:"network"`
}

func (s *Server) handleJoinWallet(w http.ResponseWriter, r *http.Request) {
	var in joinWalletRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	walletID := chi.URLParam(r, "id")
	wallet, copayer, err := s.wallets.JoinWallet(r.Context(), walletsvc.JoinWalletInput{
		WalletID: walletID, Name: in.Name, XPubKey: in.XPubKey, RequestPubKey: in.RequestPubKey,
		CopayerSignature: in.CopayerSignature, DeviceID: in.DeviceID, Account: in.Account,
		CustomData: in.CustomData, DryRun: in.DryRun, Coin: in.Coin, Network: in.Network,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := struct {
		Wallet  *model.Wallet  `json:"wallet"`
		Copayer *model.Copayer `json:"copayerId,omitempty"`
	}{Wallet: wallet, Copayer: copayer}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = identityFromContext(r).WalletID
	}
	wallet, err := s.store.GetWallet(id)
	if err != nil {
		writeError(w, walleterr.New(walleterr.WalletNotFound, "wallet not found"))
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type updateWalletRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r).WalletID
	var in updateWalletRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	wallet, err := s.store.GetWallet(id)
	if err != nil {
		writeError(w, walleterr.New(walleterr.WalletNotFound, "wallet not found"))
		return
	}
	if in.Name != "" {
		wallet.Name = in.Name
	}
	if err := s.store.PutWallet(wallet); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleGetCopayerByDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		writeError(w, walleterr.New(walleterr.CopayerNotFound, "deviceId is required"))
		return
	}
	c, err := s.store.FindCopayerByDeviceID(deviceID)
	if err != nil {
		writeError(w, walleterr.New(walleterr.CopayerNotFound, "copayer not found"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type addAccessRequest struct {
	NewRequestPubKey string `json:"requestPubKey"`
	Signature        string `json:"signature"`
}

func (s *Server) handleAddAccess(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in addAccessRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.wallets.AddAccess(walletsvc.AddAccessInput{CopayerID: id, NewRequestPubKey: in.NewRequestPubKey, Signature: in.Signature})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	p, err := s.store.GetPreferences(identity.CopayerID)
	if err != nil {
		writeJSON(w, http.StatusOK, model.Preferences{CopayerID: identity.CopayerID})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in model.Preferences
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	in.CopayerID = identity.CopayerID
	if err := s.store.PutPreferences(&in); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}
