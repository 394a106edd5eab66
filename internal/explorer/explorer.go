// Package explorer defines the read-authoritative ledger-explorer
// collaborator of spec.md §6 plus an in-memory reference fake used by
// tests and wired by both walletd serve and walletserver.
package explorer

import (
	"sort"
	"time"
)

// UTXO mirrors the explorer's getUtxos response shape (spec.md §6).
type UTXO struct {
	Unit         string
	MessageIndex int
	OutputIndex  int
	Address      string
	Amount       uint64
	Asset        string
	Denomination int
	Stable       bool
	Time         time.Time
}

// TxRecord is the explorer's getTransaction response shape.
type TxRecord struct {
	Unit string
	Raw  map[string]interface{}
}

// TxHistoryEntry mirrors one row of the explorer's getTxHistory response
// (spec.md §6): RowID is the cursor field lastRowId paginates against.
type TxHistoryEntry struct {
	RowID   int64
	Unit    string
	Address string
	Amount  uint64
	Asset   string
	Stable  bool
	Time    time.Time
}

// Explorer is the read API over ledger state (spec.md §6).
type Explorer interface {
	GetUTXOs(addresses []string, asset string) ([]UTXO, error)
	GetBalance(addresses []string, asset string) (stable, pending uint64, err error)
	GetAddressActivity(address string) (bool, error)
	GetTransaction(unit string) (*TxRecord, error)
	GetTxHistory(addresses []string, asset string, limit int, lastRowID int64) ([]TxHistoryEntry, error)
}

// MemExplorer is an in-memory Explorer fake: addresses are "active" if
// explicitly primed, UTXOs are whatever the caller seeded, and
// GetTransaction looks up units explicitly registered as broadcast.
type MemExplorer struct {
	activity map[string]bool
	utxos    map[string][]UTXO // by address
	txs      map[string]*TxRecord
	history  map[string][]TxHistoryEntry // by address, insertion order
}

// NewMem constructs an empty in-memory explorer fake.
func NewMem() *MemExplorer {
	return &MemExplorer{
		activity: make(map[string]bool),
		utxos:    make(map[string][]UTXO),
		txs:      make(map[string]*TxRecord),
		history:  make(map[string][]TxHistoryEntry),
	}
}

// SetActivity primes whether address has observed on-chain activity.
func (m *MemExplorer) SetActivity(address string, active bool) { m.activity[address] = active }

// AddUTXO seeds a spendable output for address.
func (m *MemExplorer) AddUTXO(u UTXO) { m.utxos[u.Address] = append(m.utxos[u.Address], u) }

// SetTransaction primes a unit as visible on the ledger (used to simulate
// broadcast-by-third-party in spec.md §4.4's scenario 5).
func (m *MemExplorer) SetTransaction(unit string, raw map[string]interface{}) {
	m.txs[unit] = &TxRecord{Unit: unit, Raw: raw}
}

// AddHistory seeds a historical entry for e.Address.
func (m *MemExplorer) AddHistory(e TxHistoryEntry) {
	m.history[e.Address] = append(m.history[e.Address], e)
}

func (m *MemExplorer) GetUTXOs(addresses []string, asset string) ([]UTXO, error) {
	var out []UTXO
	for _, a := range addresses {
		for _, u := range m.utxos[a] {
			if asset == "" || u.Asset == asset {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (m *MemExplorer) GetBalance(addresses []string, asset string) (uint64, uint64, error) {
	utxos, _ := m.GetUTXOs(addresses, asset)
	var stable, pending uint64
	for _, u := range utxos {
		if u.Stable {
			stable += u.Amount
		} else {
			pending += u.Amount
		}
	}
	return stable, pending, nil
}

func (m *MemExplorer) GetAddressActivity(address string) (bool, error) {
	return m.activity[address], nil
}

func (m *MemExplorer) GetTransaction(unit string) (*TxRecord, error) {
	return m.txs[unit], nil
}

// GetTxHistory returns entries for addresses with RowID > lastRowID,
// ascending by RowID, truncated to limit (0 means unlimited).
func (m *MemExplorer) GetTxHistory(addresses []string, asset string, limit int, lastRowID int64) ([]TxHistoryEntry, error) {
	var out []TxHistoryEntry
	for _, a := range addresses {
		for _, e := range m.history[a] {
			if e.RowID <= lastRowID {
				continue
			}
			if asset != "" && e.Asset != asset {
				continue
			}
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
