// Package controllers adapts the teacher's walletserver/controllers
// (HTTP handlers thin-wrapping WalletService) onto the same four
// operation names — create, import, address, sign — reinterpreted for
// multisig coordination instead of single-key wallets.
package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
	"github.com/obyte-wallet/walletd/internal/walletsvc"
	"github.com/obyte-wallet/walletd/walletserver/services"
)

// WalletController exposes WalletService over HTTP.
type WalletController struct {
	svc *services.WalletService
}

// NewWalletController constructs a controller over svc.
func NewWalletController(svc *services.WalletService) *WalletController {
	return &WalletController{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		walletlog.L().WithError(err).Warn("walletserver: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := walleterr.AsError(err); ok {
		writeJSON(w, walleterr.HTTPStatus(e.Code), map[string]string{"code": string(e.Code), "message": e.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()})
}

// Create handles "POST /api/wallet/create":
// forms a pending multisig wallet instead of minting a random HDWallet.
func (wc *WalletController) Create(w http.ResponseWriter, r *http.Request) {
	var in walletsvc.CreateWalletInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, walleterr.New(walleterr.InvalidAddress, "malformed request body"))
		return
	}
	wallet, err := wc.svc.CreateWallet(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Import handles "POST /api/wallet/import": registering a copayer's
// xpub against an existing wallet plays the role mnemonic import played
// in the teacher's single-key wallet.
func (wc *WalletController) Import(w http.ResponseWriter, r *http.Request) {
	var in walletsvc.JoinWalletInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, walleterr.New(walleterr.InvalidAddress, "malformed request body"))
		return
	}
	wallet, copayer, err := wc.svc.ImportWallet(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"wallet": wallet, "copayer": copayer})
}

// Address handles "POST /api/wallet/{id}/address": derives the next address
// on the wallet named by the "id" route variable.
func (wc *WalletController) Address(w http.ResponseWriter, r *http.Request) {
	walletID := mux.Vars(r)["id"]
	var in struct {
		IgnoreMaxGap bool `json:"ignoreMaxGap"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	addr, err := wc.svc.DeriveAddress(r.Context(), walletID, in.IgnoreMaxGap)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

// Sign handles "POST /api/wallet/sign": records a copayer's signature
// contribution against a tx proposal, replacing the teacher's
// server-side HDWallet.PrivateKey-backed signing.
func (wc *WalletController) Sign(w http.ResponseWriter, r *http.Request) {
	var in struct {
		WalletID   string            `json:"walletId"`
		ProposalID string            `json:"proposalId"`
		CopayerID  string            `json:"copayerId"`
		Signatures map[string]string `json:"signatures"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, walleterr.New(walleterr.InvalidAddress, "malformed request body"))
		return
	}
	proposal, err := wc.svc.SignTransaction(r.Context(), in.WalletID, in.ProposalID, in.CopayerID, in.Signatures)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}
