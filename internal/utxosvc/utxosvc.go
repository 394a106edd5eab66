// Package utxosvc implements spec.md §4.5: the reservation view over a
// wallet's UTXOs. There is no persistent lock table — spendability is
// recomputed at query and at publish time from the live explorer plus
// whatever this process currently has pending or broadcasted.
package utxosvc

import (
	"strconv"
	"time"

	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store"
)

// broadcastLogWindow is how far back a broadcasted proposal's inputs
// still count as reserved, per spec.md §4.5 ("recently broadcast").
const broadcastLogWindow = 24 * time.Hour

// recentBroadcastLogCap bounds the recently-broadcast reservation set to
// the most recent 100 entries (spec.md §4.5).
const recentBroadcastLogCap = 100

// Entry is one UTXO annotated with its reservation state for this wallet.
type Entry struct {
	explorer.UTXO
	Locked    bool   `json:"locked"`
	LockedBy  string `json:"lockedBy,omitempty"` // proposal id holding the reservation
}

// Service computes the live UTXO view for a wallet.
type Service struct {
	store    store.Store
	explorer explorer.Explorer
}

// New constructs a UTXO reservation view.
func New(st store.Store, exp explorer.Explorer) *Service {
	return &Service{store: st, explorer: exp}
}

// reservedInputs collects every input currently held by a pending or
// accepted proposal, plus any broadcasted within broadcastLogWindow —
// the in-flight reservation set this process knows about (spec.md §4.5).
func (s *Service) reservedInputs(walletID string) (map[string]string, error) {
	reserved := make(map[string]string)

	proposals, err := s.store.ListProposals(walletID)
	if err != nil {
		return nil, err
	}
	for _, p := range proposals {
		switch p.Status {
		case model.StatusPending, model.StatusAccepted:
			for _, in := range p.Inputs {
				reserved[inputKey(in)] = p.ID
			}
		}
	}

	entries, err := s.store.RecentBroadcastLog(walletID, time.Now().Add(-broadcastLogWindow), recentBroadcastLogCap)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		for _, in := range e.Inputs {
			reserved[inputKey(in)] = e.ProposalID
		}
	}

	return reserved, nil
}

func inputKey(in model.Input) string {
	return in.Unit + ":" + strconv.Itoa(in.MessageIndex) + ":" + strconv.Itoa(in.OutputIndex)
}

// GetUTXOs returns every UTXO the explorer reports for the wallet's
// addresses, each annotated with whether this process currently has it
// reserved against an in-flight proposal.
func (s *Service) GetUTXOs(walletID string, addresses []string, asset string) ([]Entry, error) {
	raw, err := s.explorer.GetUTXOs(addresses, asset)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reservedInputs(walletID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(raw))
	for i, u := range raw {
		key := inputKey(model.Input{Unit: u.Unit, MessageIndex: u.MessageIndex, OutputIndex: u.OutputIndex})
		e := Entry{UTXO: u}
		if by, ok := reserved[key]; ok {
			e.Locked = true
			e.LockedBy = by
		}
		out[i] = e
	}
	return out, nil
}

// Spendable filters GetUTXOs down to unreserved outputs, the set a new
// proposal's coin selection is allowed to draw from.
func (s *Service) Spendable(walletID string, addresses []string, asset string) ([]explorer.UTXO, error) {
	entries, err := s.GetUTXOs(walletID, addresses, asset)
	if err != nil {
		return nil, err
	}
	out := make([]explorer.UTXO, 0, len(entries))
	for _, e := range entries {
		if !e.Locked {
			out = append(out, e.UTXO)
		}
	}
	return out, nil
}

// GetBalance reports stable and pending totals over a wallet's full
// address set, unfiltered by reservation (spec.md §4.5: balance always
// reflects the ledger, reservation only affects what's spendable).
func (s *Service) GetBalance(addresses []string, asset string) (stable, pending uint64, err error) {
	return s.explorer.GetBalance(addresses, asset)
}
