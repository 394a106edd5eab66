package utxosvc

import (
	"testing"
	"time"

	"github.com/obyte-wallet/walletd/internal/explorer"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store/memstore"
)

func TestGetUTXOsMarksReservedFromPendingProposal(t *testing.T) {
	st := memstore.New()
	exp := explorer.NewMem()
	svc := New(st, exp)

	exp.AddUTXO(explorer.UTXO{Unit: "u1", MessageIndex: 0, OutputIndex: 0, Address: "addrA", Amount: 100})
	exp.AddUTXO(explorer.UTXO{Unit: "u2", MessageIndex: 0, OutputIndex: 0, Address: "addrA", Amount: 200})

	if err := st.PutProposal(&model.TxProposal{
		ID: "p1", WalletID: "w1", Status: model.StatusPending,
		Inputs: []model.Input{{Unit: "u1", MessageIndex: 0, OutputIndex: 0}},
	}); err != nil {
		t.Fatalf("PutProposal: %v", err)
	}

	out, err := svc.GetUTXOs("w1", []string{"addrA"}, "")
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 utxos, got %d", len(out))
	}
	for _, e := range out {
		if e.Unit == "u1" && !e.Locked {
			t.Fatalf("expected u1 to be locked by pending proposal p1, got %+v", e)
		}
		if e.Unit == "u2" && e.Locked {
			t.Fatalf("expected u2 to be unlocked, got %+v", e)
		}
	}
}

func TestGetUTXOsMarksReservedFromRecentBroadcast(t *testing.T) {
	st := memstore.New()
	exp := explorer.NewMem()
	svc := New(st, exp)

	exp.AddUTXO(explorer.UTXO{Unit: "u1", MessageIndex: 0, OutputIndex: 0, Address: "addrA", Amount: 100})
	if err := st.AppendBroadcastLog(&model.BroadcastLogEntry{
		ProposalID: "p2", WalletID: "w1", BroadcastedOn: time.Now(),
		Inputs: []model.Input{{Unit: "u1", MessageIndex: 0, OutputIndex: 0}},
	}); err != nil {
		t.Fatalf("AppendBroadcastLog: %v", err)
	}

	out, err := svc.GetUTXOs("w1", []string{"addrA"}, "")
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(out) != 1 || !out[0].Locked || out[0].LockedBy != "p2" {
		t.Fatalf("expected u1 locked by p2, got %+v", out)
	}
}

func TestSpendableExcludesLocked(t *testing.T) {
	st := memstore.New()
	exp := explorer.NewMem()
	svc := New(st, exp)

	exp.AddUTXO(explorer.UTXO{Unit: "u1", MessageIndex: 0, OutputIndex: 0, Address: "addrA", Amount: 100})
	exp.AddUTXO(explorer.UTXO{Unit: "u2", MessageIndex: 0, OutputIndex: 0, Address: "addrA", Amount: 200})
	if err := st.PutProposal(&model.TxProposal{
		ID: "p1", WalletID: "w1", Status: model.StatusAccepted,
		Inputs: []model.Input{{Unit: "u1", MessageIndex: 0, OutputIndex: 0}},
	}); err != nil {
		t.Fatalf("PutProposal: %v", err)
	}

	out, err := svc.Spendable("w1", []string{"addrA"}, "")
	if err != nil {
		t.Fatalf("Spendable: %v", err)
	}
	if len(out) != 1 || out[0].Unit != "u2" {
		t.Fatalf("expected only u2 to be spendable, got %+v", out)
	}
}

func TestGetBalanceDelegatesToExplorer(t *testing.T) {
	st := memstore.New()
	exp := explorer.NewMem()
	svc := New(st, exp)

	exp.AddUTXO(explorer.UTXO{Unit: "u1", Address: "addrA", Amount: 50, Stable: true})
	exp.AddUTXO(explorer.UTXO{Unit: "u2", Address: "addrA", Amount: 25, Stable: false})

	stable, pending, err := svc.GetBalance([]string{"addrA"}, "")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if stable != 50 || pending != 25 {
		t.Fatalf("GetBalance = (%d, %d), want (50, 25)", stable, pending)
	}
}

func TestGetUTXOsResolvedByAsset(t *testing.T) {
	st := memstore.New()
	exp := explorer.NewMem()
	svc := New(st, exp)

	exp.AddUTXO(explorer.UTXO{Unit: "u1", Address: "addrA", Amount: 1, Asset: "base"})
	exp.AddUTXO(explorer.UTXO{Unit: "u2", Address: "addrA", Amount: 2, Asset: "token1"})

	out, err := svc.GetUTXOs("w1", []string{"addrA"}, "token1")
	if err != nil {
		t.Fatalf("GetUTXOs: %v", err)
	}
	if len(out) != 1 || out[0].Unit != "u2" {
		t.Fatalf("expected asset filter to keep only u2, got %+v", out)
	}
}
