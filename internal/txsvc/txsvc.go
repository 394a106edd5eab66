// Package txsvc implements spec.md §4.4: the transaction-proposal life
// cycle from temporary draft through quorum signing to broadcast, plus
// the creation-backoff governor.
package txsvc

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/obyte-wallet/walletd/internal/addrsvc"
	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/hub"
	"github.com/obyte-wallet/walletd/internal/lock"
	"github.com/obyte-wallet/walletd/internal/metrics"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/notify"
	"github.com/obyte-wallet/walletd/internal/store"
	"github.com/obyte-wallet/walletd/internal/utxosvc"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

// flatFee is a placeholder fee charged per draft joint; the real ledger's
// fee model (byte-size based) is out of scope (spec.md §1) — the engine
// only needs a deterministic, non-zero fee to exercise input selection.
const flatFee = 1000

// Service implements the proposal engine.
type Service struct {
	store    store.Store
	locker   *lock.Manager
	broker   *notify.Broker
	addrs    *addrsvc.Service
	utxos    *utxosvc.Service
	explorer explorer.Explorer
	hub      hub.Hub
	lockOpts lock.Options

	backoffOffset   int
	backoffTime     time.Duration
	deleteLockTime  time.Duration
}

// New constructs a proposal-engine service.
func New(st store.Store, locker *lock.Manager, broker *notify.Broker, addrs *addrsvc.Service, utxos *utxosvc.Service, exp explorer.Explorer, h hub.Hub, lockOpts lock.Options, backoffOffset int, backoffTime, deleteLockTime time.Duration) *Service {
	return &Service{
		store: st, locker: locker, broker: broker, addrs: addrs, utxos: utxos,
		explorer: exp, hub: h, lockOpts: lockOpts,
		backoffOffset: backoffOffset, backoffTime: backoffTime, deleteLockTime: deleteLockTime,
	}
}

// CreateProposalInput is the createTxProposal request body.
type CreateProposalInput struct {
	TxProposalID string
	WalletID     string
	CreatorID    string
	App          model.ProposalApp
	Outputs      []model.Output
	Payload      map[string]interface{}
	ChangeAddr   string
	DryRun       bool
}

func lastEventTime(p *model.TxProposal) time.Time {
	if len(p.Actions) > 0 {
		return p.Actions[len(p.Actions)-1].CreatedOn
	}
	return p.CreatedOn
}

// checkBackoff inspects the creator's five most recent proposals and, if
// more than BACKOFF_OFFSET of them are consecutive rejections counted from
// the most recent, refuses
// creation until BACKOFF_TIME has elapsed since the latest one
// (spec.md §4.4 "Backoff governor").
func (s *Service) checkBackoff(walletID, creatorID string) error {
	all, err := s.store.ListProposals(walletID)
	if err != nil {
		return err
	}
	var mine []model.TxProposal
	for _, p := range all {
		if p.CreatorID == creatorID {
			mine = append(mine, p)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedOn.After(mine[j].CreatedOn) })
	if len(mine) > 5 {
		mine = mine[:5]
	}

	consecutiveRejected := 0
	var mostRecentRejection time.Time
	for i, p := range mine {
		if p.Status != model.StatusRejected {
			break
		}
		consecutiveRejected++
		if i == 0 {
			mostRecentRejection = lastEventTime(&p)
		}
	}
	if consecutiveRejected > s.backoffOffset {
		if time.Since(mostRecentRejection) < s.backoffTime {
			return walleterr.New(walleterr.TxCannotCreate, "creation throttled after consecutive rejections")
		}
	}
	return nil
}

// canonicalHash is the deterministic hash the creator signs at publish
// time and co-signers sign at sign time — a pure function of the
// immutable parts of the draft (spec.md §4.4).
func canonicalHash(p *model.TxProposal) []byte {
	type canon struct {
		App           model.ProposalApp `json:"app"`
		Outputs       []model.Output    `json:"outputs"`
		Inputs        []model.Input     `json:"inputs"`
		ChangeAddress string            `json:"changeAddress"`
	}
	b, _ := json.Marshal(canon{App: p.App, Outputs: p.Outputs, Inputs: p.Inputs, ChangeAddress: p.ChangeAddress})
	h := sha256.Sum256(b)
	return h[:]
}

func computeTxID(p *model.TxProposal) string {
	h := sha256.Sum256(canonicalHash(p))
	return fmt.Sprintf("%x", h)
}

func allWalletAddresses(st store.Store, walletID string) ([]string, error) {
	recv, err := st.ListAddresses(walletID, false)
	if err != nil {
		return nil, err
	}
	change, err := st.ListAddresses(walletID, true)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(recv)+len(change))
	for _, a := range recv {
		out = append(out, a.Address)
	}
	for _, a := range change {
		out = append(out, a.Address)
	}
	return out, nil
}

// CreateProposal builds a temporary draft (spec.md §4.4 "Create").
func (s *Service) CreateProposal(ctx context.Context, in CreateProposalInput) (*model.TxProposal, error) {
	var result *model.TxProposal
	err := s.locker.RunLocked(ctx, in.WalletID, s.lockOpts, func(ctx context.Context) error {
		w, err := s.store.GetWallet(in.WalletID)
		if err != nil {
			return walleterr.New(walleterr.WalletNotFound, "wallet not found")
		}

		if in.TxProposalID != "" {
			if existing, err := s.store.GetProposal(in.TxProposalID); err == nil {
				if existing.Status != model.StatusTemporary {
					result = existing
					return nil
				}
			}
		}

		if in.App == model.AppPayment {
			if len(in.Outputs) == 0 {
				return walleterr.New(walleterr.InvalidAddress, "payment proposal requires at least one output")
			}
			for _, o := range in.Outputs {
				if o.Address == "" {
					return walleterr.New(walleterr.InvalidAddress, "output missing address")
				}
				if o.Amount == 0 {
					return walleterr.New(walleterr.TxCannotCreate, "output amount must be positive")
				}
			}
		}

		if err := s.checkBackoff(in.WalletID, in.CreatorID); err != nil {
			return err
		}

		changeAddr := in.ChangeAddr
		if changeAddr == "" {
			addr, err := s.addrs.FirstInactiveChange(ctx, w)
			if err != nil {
				return err
			}
			changeAddr = addr.Address
		}

		var need uint64 = flatFee
		for _, o := range in.Outputs {
			need += o.Amount
		}

		addrs, err := allWalletAddresses(s.store, in.WalletID)
		if err != nil {
			return err
		}
		spendable, err := s.utxos.Spendable(in.WalletID, addrs, "")
		if err != nil {
			return err
		}
		sort.Slice(spendable, func(i, j int) bool { return spendable[i].Amount > spendable[j].Amount })

		var inputs []model.Input
		var collected uint64
		for _, u := range spendable {
			if collected >= need {
				break
			}
			inputs = append(inputs, model.Input{
				Unit: u.Unit, MessageIndex: u.MessageIndex, OutputIndex: u.OutputIndex,
				Address: u.Address, Amount: u.Amount,
			})
			collected += u.Amount
		}
		if collected < need {
			return walleterr.New(walleterr.UnavailableUTXOs, "insufficient spendable funds")
		}

		outputs := append([]model.Output{}, in.Outputs...)
		if change := collected - need; change > 0 {
			outputs = append(outputs, model.Output{Address: changeAddr, Amount: change})
		}

		signingInfo := make(map[string]model.SigningInfo, len(inputs))
		for _, inp := range inputs {
			addr, err := s.store.GetAddress(inp.Address)
			if err != nil {
				continue
			}
			keys := make([]string, 0, len(addr.SigningPaths))
			for pk := range addr.SigningPaths {
				keys = append(keys, pk)
			}
			sort.Strings(keys)
			signingInfo[inp.Address] = model.SigningInfo{WalletID: w.ID, Path: addr.Path, SigningPaths: keys}
		}

		id := in.TxProposalID
		if id == "" {
			id = uuid.NewString()
		}
		p := &model.TxProposal{
			ID:                 id,
			WalletID:           w.ID,
			CreatorID:          in.CreatorID,
			App:                in.App,
			Outputs:            outputs,
			Payload:            in.Payload,
			ChangeAddress:      changeAddr,
			Inputs:             inputs,
			SigningInfo:        signingInfo,
			RequiredSignatures: w.M,
			RequiredRejections: minInt(w.M, w.N-w.M+1),
			Status:             model.StatusTemporary,
			DryRun:             in.DryRun,
			CreatedOn:          time.Now(),
		}
		p.DraftJoint = map[string]interface{}{
			"app":           p.App,
			"outputs":       p.Outputs,
			"inputs":        p.Inputs,
			"changeAddress": p.ChangeAddress,
		}
		if err := s.store.PutProposal(p); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func utxoKey(unit string, messageIndex, outputIndex int) string {
	return unit + ":" + strconv.Itoa(messageIndex) + ":" + strconv.Itoa(outputIndex)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Publish signs and submits a temporary draft for quorum signing
// (spec.md §4.4 "Publish").
func (s *Service) Publish(ctx context.Context, walletID, proposalID, copayerID, signature string) (*model.TxProposal, error) {
	var result *model.TxProposal
	err := s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		p, err := s.store.GetProposal(proposalID)
		if err != nil || p.WalletID != walletID {
			return walleterr.New(walleterr.TxNotFound, "proposal not found")
		}
		if p.CreatorID != copayerID {
			return walleterr.New(walleterr.TxNotFound, "proposal does not belong to this copayer")
		}
		if p.DryRun || p.Status != model.StatusTemporary {
			return walleterr.New(walleterr.TxNotFound, "proposal is not publishable")
		}

		copayer, err := s.store.GetCopayer(copayerID)
		if err != nil {
			return walleterr.New(walleterr.CopayerNotFound, "copayer not found")
		}
		keys := make([]string, 0, len(copayer.RequestPubKeys))
		for _, k := range copayer.RequestPubKeys {
			keys = append(keys, k.Key)
		}
		if !cryptoutil.VerifyAny(keys, canonicalHash(p), signature) {
			return walleterr.NotAuthorizedf("Invalid signature")
		}

		addrs, err := allWalletAddresses(s.store, walletID)
		if err != nil {
			return err
		}
		spendable, err := s.utxos.Spendable(walletID, addrs, "")
		if err != nil {
			return err
		}
		free := make(map[string]bool, len(spendable))
		for _, u := range spendable {
			free[utxoKey(u.Unit, u.MessageIndex, u.OutputIndex)] = true
		}
		for _, in := range p.Inputs {
			if !free[utxoKey(in.Unit, in.MessageIndex, in.OutputIndex)] {
				return walleterr.New(walleterr.UnavailableUTXOs, "one or more inputs are no longer spendable")
			}
		}

		p.Status = model.StatusPending
		metrics.ProposalsTotal.WithLabelValues(string(p.Status)).Inc()
		if err := s.store.PutProposal(p); err != nil {
			return err
		}
		if _, err := s.broker.Send(&model.Notification{Type: "NewTxProposal", WalletID: walletID, CreatorID: copayerID, Data: p.ID}); err != nil {
			walletlog.L().WithError(err).Warn("txsvc: failed to publish NewTxProposal")
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Sign records a copayer's per-input signatures, finalising the proposal
// once quorum is reached (spec.md §4.4 "Sign").
func (s *Service) Sign(ctx context.Context, walletID, proposalID, copayerID string, signatures map[string]string) (*model.TxProposal, error) {
	var result *model.TxProposal
	err := s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		p, err := s.store.GetProposal(proposalID)
		if err != nil || p.WalletID != walletID {
			return walleterr.New(walleterr.TxNotFound, "proposal not found")
		}
		if p.Status != model.StatusPending {
			return walleterr.New(walleterr.TxNotPending, "proposal is not pending")
		}
		if p.ActedBy(copayerID) {
			return walleterr.New(walleterr.CopayerVoted, "copayer already acted on this proposal")
		}

		copayer, err := s.store.GetCopayer(copayerID)
		if err != nil {
			return walleterr.New(walleterr.CopayerNotFound, "copayer not found")
		}
		xpub, err := cryptoutil.ParseXPub(copayer.XPubKey)
		if err != nil {
			return err
		}

		hash := canonicalHash(p)
		for _, in := range p.Inputs {
			sig, ok := signatures[in.Address]
			if !ok {
				return walleterr.New(walleterr.BadSignatures, "missing signature for input "+in.Address)
			}
			addr, err := s.store.GetAddress(in.Address)
			if err != nil {
				return walleterr.New(walleterr.BadSignatures, "unknown input address")
			}
			child, err := cryptoutil.DerivePath(xpub, addr.IsChange, addr.Index)
			if err != nil {
				return walleterr.New(walleterr.BadSignatures, "could not derive signing key")
			}
			pubHex := fmt.Sprintf("%x", child.PubKey)
			ok2, err := cryptoutil.Verify(pubHex, hash, sig)
			if err != nil || !ok2 {
				return walleterr.New(walleterr.BadSignatures, "signature verification failed for input "+in.Address)
			}
		}

		p.Actions = append(p.Actions, model.ProposalAction{
			CopayerID: copayerID, Type: "accept", Signatures: signatures,
			XPubKey: copayer.XPubKey, CreatedOn: time.Now(),
		})

		quorum := p.AcceptCount() >= p.RequiredSignatures
		if quorum {
			p.TxID = computeTxID(p)
			p.Status = model.StatusAccepted
			metrics.ProposalsTotal.WithLabelValues(string(p.Status)).Inc()
		}
		if err := s.store.PutProposal(p); err != nil {
			return err
		}

		if _, err := s.broker.Send(&model.Notification{Type: "TxProposalAcceptedBy", WalletID: walletID, CreatorID: copayerID, Data: p.ID}); err != nil {
			walletlog.L().WithError(err).Warn("txsvc: failed to publish TxProposalAcceptedBy")
		}
		if quorum {
			if _, err := s.broker.Send(&model.Notification{Type: "TxProposalFinallyAccepted", WalletID: walletID, Data: p.ID}); err != nil {
				walletlog.L().WithError(err).Warn("txsvc: failed to publish TxProposalFinallyAccepted")
			}
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject records a copayer's rejection (spec.md §4.4 "Reject").
func (s *Service) Reject(ctx context.Context, walletID, proposalID, copayerID, reason string) (*model.TxProposal, error) {
	var result *model.TxProposal
	err := s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		p, err := s.store.GetProposal(proposalID)
		if err != nil || p.WalletID != walletID {
			return walleterr.New(walleterr.TxNotFound, "proposal not found")
		}
		if p.Status != model.StatusPending {
			return walleterr.New(walleterr.TxNotPending, "proposal is not pending")
		}
		if p.ActedBy(copayerID) {
			return walleterr.New(walleterr.CopayerVoted, "copayer already acted on this proposal")
		}

		p.Actions = append(p.Actions, model.ProposalAction{
			CopayerID: copayerID, Type: "reject", Comment: reason, CreatedOn: time.Now(),
		})

		final := p.RejectCount() >= p.RequiredRejections
		if final {
			p.Status = model.StatusRejected
			metrics.ProposalsTotal.WithLabelValues(string(p.Status)).Inc()
		}
		if err := s.store.PutProposal(p); err != nil {
			return err
		}

		if _, err := s.broker.Send(&model.Notification{Type: "TxProposalRejectedBy", WalletID: walletID, CreatorID: copayerID, Data: p.ID}); err != nil {
			walletlog.L().WithError(err).Warn("txsvc: failed to publish TxProposalRejectedBy")
		}
		if final {
			if _, err := s.broker.Send(&model.Notification{Type: "TxProposalFinallyRejected", WalletID: walletID, Data: p.ID}); err != nil {
				walletlog.L().WithError(err).Warn("txsvc: failed to publish TxProposalFinallyRejected")
			}
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Broadcast submits an accepted proposal's joint to the hub, falling back
// to broadcast-by-third-party detection on hub failure (spec.md §4.4
// "Broadcast").
func (s *Service) Broadcast(ctx context.Context, walletID, proposalID string) (*model.TxProposal, error) {
	var result *model.TxProposal
	err := s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		p, err := s.store.GetProposal(proposalID)
		if err != nil || p.WalletID != walletID {
			return walleterr.New(walleterr.TxNotFound, "proposal not found")
		}
		switch p.Status {
		case model.StatusBroadcasted, model.StatusStable:
			return walleterr.New(walleterr.TxAlreadyBroadcasted, "proposal already broadcast")
		case model.StatusAccepted:
		default:
			return walleterr.New(walleterr.TxNotAccepted, "proposal is not accepted")
		}

		now := time.Now()
		notifType := "NewOutgoingTx"
		hubErr := s.hub.BroadcastJoint(p.DraftJoint)
		if hubErr != nil {
			rec, _ := s.explorer.GetTransaction(p.TxID)
			if rec == nil {
				return fmt.Errorf("txsvc: hub broadcast failed: %w", hubErr)
			}
			notifType = "NewOutgoingTxByThirdParty"
		}

		p.Status = model.StatusBroadcasted
		p.BroadcastedOn = &now
		metrics.ProposalsTotal.WithLabelValues(string(p.Status)).Inc()
		if err := s.store.PutProposal(p); err != nil {
			return err
		}
		if err := s.store.AppendBroadcastLog(&model.BroadcastLogEntry{
			ProposalID: p.ID, WalletID: p.WalletID, Inputs: p.Inputs, BroadcastedOn: now,
		}); err != nil {
			return err
		}
		if _, err := s.broker.Send(&model.Notification{Type: notifType, WalletID: walletID, Data: p.ID}); err != nil {
			walletlog.L().WithError(err).Warn("txsvc: failed to publish broadcast notification")
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Remove deletes a proposal the creator no longer wants (spec.md §4.4
// "Remove").
func (s *Service) Remove(ctx context.Context, walletID, proposalID, requesterID string) error {
	return s.locker.RunLocked(ctx, walletID, s.lockOpts, func(ctx context.Context) error {
		p, err := s.store.GetProposal(proposalID)
		if err != nil || p.WalletID != walletID {
			return walleterr.New(walleterr.TxNotFound, "proposal not found")
		}
		if p.CreatorID != requesterID {
			return walleterr.NotAuthorizedf("only the creator may remove this proposal")
		}
		if len(p.Actions) > 0 && time.Since(lastEventTime(p)) < s.deleteLockTime {
			return walleterr.New(walleterr.TxCannotRemove, "removal cooldown has not elapsed")
		}
		if err := s.store.DeleteProposal(proposalID); err != nil {
			return err
		}
		if _, err := s.broker.Send(&model.Notification{Type: "TxProposalRemoved", WalletID: walletID, CreatorID: requesterID, Data: proposalID}); err != nil {
			walletlog.L().WithError(err).Warn("txsvc: failed to publish TxProposalRemoved")
		}
		return nil
	})
}
