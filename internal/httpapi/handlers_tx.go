package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/txsvc"
	"github.com/obyte-wallet/walletd/internal/walleterr"
)

type createProposalRequest struct {
	TxProposalID string                 `json:"txProposalId"`
	App          model.ProposalApp      `json:"app"`
	Outputs      []model.Output         `json:"outputs"`
	Payload      map[string]interface{} `json:"payload"`
	ChangeAddr   string                 `json:"changeAddress"`
	DryRun       bool                   `json:"dryRun"`
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in createProposalRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.App == "" {
		in.App = model.AppPayment
	}
	p, err := s.txs.CreateProposal(r.Context(), txsvc.CreateProposalInput{
		TxProposalID: in.TxProposalID, WalletID: identity.WalletID, CreatorID: identity.CopayerID,
		App: in.App, Outputs: in.Outputs, Payload: in.Payload, ChangeAddr: in.ChangeAddr, DryRun: in.DryRun,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	all, err := s.store.ListProposals(identity.WalletID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleListPendingProposals(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	all, err := s.store.ListProposals(identity.WalletID)
	if err != nil {
		writeError(w, err)
		return
	}
	pending := make([]model.TxProposal, 0, len(all))
	for _, p := range all {
		if p.Status == model.StatusPending {
			pending = append(pending, p)
		}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.store.GetProposal(id)
	if err != nil || p.WalletID != identity.WalletID {
		writeError(w, walleterr.New(walleterr.TxNotFound, "proposal not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type publishRequest struct {
	ProposalSignature string `json:"proposalSignature"`
}

func (s *Server) handlePublishProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	var in publishRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.txs.Publish(r.Context(), identity.WalletID, id, identity.CopayerID, in.ProposalSignature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type signRequest struct {
	Signatures map[string]string `json:"signatures"`
}

func (s *Server) handleSignProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	var in signRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.txs.Sign(r.Context(), identity.WalletID, id, identity.CopayerID, in.Signatures)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	var in rejectRequest
	_ = readJSON(r, &in)
	p, err := s.txs.Reject(r.Context(), identity.WalletID, id, identity.CopayerID, in.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleBroadcastProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	p, err := s.txs.Broadcast(r.Context(), identity.WalletID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRemoveProposal(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	id := chi.URLParam(r, "id")
	if err := s.txs.Remove(r.Context(), identity.WalletID, id, identity.CopayerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type broadcastRawRequest struct {
	RawTx string `json:"rawTx"`
}

// handleBroadcastRaw submits an already-signed raw joint directly to the
// hub, bypassing the proposal life cycle entirely (spec.md §6). This
// wallet coordination service does not construct or validate the raw
// joint itself; it is a thin pass-through to the hub the same way
// Broadcast is, for callers that assembled their own transaction.
func (s *Server) handleBroadcastRaw(w http.ResponseWriter, r *http.Request) {
	var in broadcastRawRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if err := s.hubBroadcastRaw(in.RawTx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetRawTx(w http.ResponseWriter, r *http.Request) {
	txid := chi.URLParam(r, "txid")
	rec, err := s.explorer.GetTransaction(txid)
	if err != nil || rec == nil {
		writeError(w, walleterr.New(walleterr.TxNotFound, "transaction not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetTxNote(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	txid := chi.URLParam(r, "txid")
	n, err := s.store.GetTxNote(txid)
	if err != nil || n.WalletID != identity.WalletID {
		writeError(w, walleterr.New(walleterr.TxNotFound, "note not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type putTxNoteRequest struct {
	Body string `json:"body"`
}

func (s *Server) handlePutTxNote(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	txid := chi.URLParam(r, "txid")
	var in putTxNoteRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	note := &model.TxNote{TxID: txid, WalletID: identity.WalletID, Body: in.Body, EditedBy: identity.CopayerID, EditedOn: time.Now()}
	if err := s.store.PutTxNote(note); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (s *Server) handleListTxNotes(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	minTS := parseUnixQuery(r, "minTs")
	notes, err := s.store.ListTxNotes(identity.WalletID, minTS)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleTxConfirmationSubscribe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in struct {
		TxID string `json:"txid"`
	}
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	sub := &model.TxConfirmationSubscription{
		ID: identity.CopayerID + ":" + in.TxID, CopayerID: identity.CopayerID,
		WalletID: identity.WalletID, TxID: in.TxID, Active: true, CreatedOn: time.Now(),
	}
	if err := s.store.PutTxConfirmationSub(sub); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleTxConfirmationUnsubscribe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	txid := chi.URLParam(r, "txid")
	if err := s.store.DeleteTxConfirmationSub(identity.CopayerID, txid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func parseUnixQuery(r *http.Request, key string) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}
	}
	ms, err := parseInt64(v)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
