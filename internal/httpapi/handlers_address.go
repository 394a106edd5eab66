package httpapi

import (
	"net/http"
	"strconv"

	"github.com/obyte-wallet/walletd/internal/walleterr"
)

type createAddressRequest struct {
	IgnoreMaxGap bool `json:"ignoreMaxGap"`
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in createAddressRequest
	_ = readJSON(r, &in) // empty body is valid: defaults apply
	addr, err := s.addrs.CreateAddress(r.Context(), identity.WalletID, in.IgnoreMaxGap)
	if err != nil {
		writeError(w, err)
		return
	}
	s.broker.AddAddress(identity.WalletID, addr.Address)
	writeJSON(w, http.StatusCreated, addr)
}

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	addrs, err := s.store.ListAddresses(identity.WalletID, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if rev := r.URL.Query().Get("reverse"); rev == "true" {
		for i, j := 0, len(addrs)-1; i < j; i, j = i+1, j-1 {
			addrs[i], addrs[j] = addrs[j], addrs[i]
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n >= 0 && n < len(addrs) {
			addrs = addrs[:n]
		}
	}
	writeJSON(w, http.StatusOK, addrs)
}

type scanRequest struct {
	Power  bool `json:"power"`
	Stride int  `json:"stride"`
}

func (s *Server) handleScanAddresses(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in scanRequest
	_ = readJSON(r, &in)
	var err error
	if in.Power {
		err = s.addrs.PowerScan(r.Context(), identity.WalletID, false, in.Stride)
		if err == nil {
			err = s.addrs.PowerScan(r.Context(), identity.WalletID, true, in.Stride)
		}
	} else {
		err = s.addrs.Scan(r.Context(), identity.WalletID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	addrs := splitCSV(r.URL.Query().Get("addresses"))
	if addrs == nil {
		all, err := walletAddressStrings(s, identity.WalletID)
		if err != nil {
			writeError(w, err)
			return
		}
		addrs = all
	}
	asset := r.URL.Query().Get("asset")
	stable, pending, err := s.utxos.GetBalance(addrs, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"stable": stable, "pending": pending})
}

func (s *Server) handleUTXOs(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	addrs := splitCSV(r.URL.Query().Get("addresses"))
	if addrs == nil {
		all, err := walletAddressStrings(s, identity.WalletID)
		if err != nil {
			writeError(w, err)
			return
		}
		addrs = all
	}
	asset := r.URL.Query().Get("asset")
	entries, err := s.utxos.GetUTXOs(identity.WalletID, addrs, asset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTxHistory(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	addrs := splitCSV(r.URL.Query().Get("addresses"))
	if addrs == nil {
		all, err := walletAddressStrings(s, identity.WalletID)
		if err != nil {
			writeError(w, err)
			return
		}
		addrs = all
	}
	asset := r.URL.Query().Get("asset")

	limit := s.cfg.Limits.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := parseInt64(v)
		if err != nil || n <= 0 {
			writeError(w, walleterr.New(walleterr.InvalidAddress, "limit must be a positive integer"))
			return
		}
		if int(n) > s.cfg.Limits.HistoryLimit {
			writeError(w, walleterr.New(walleterr.HistoryLimitExceeded, "limit exceeds HISTORY_LIMIT"))
			return
		}
		limit = int(n)
	}

	var lastRowID int64
	if v := r.URL.Query().Get("lastRowId"); v != "" {
		n, err := parseInt64(v)
		if err != nil {
			writeError(w, walleterr.New(walleterr.InvalidAddress, "lastRowId must be an integer"))
			return
		}
		lastRowID = n
	}

	entries, err := s.explorer.GetTxHistory(addrs, asset, limit, lastRowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func walletAddressStrings(s *Server, walletID string) ([]string, error) {
	recv, err := s.store.ListAddresses(walletID, false)
	if err != nil {
		return nil, err
	}
	change, err := s.store.ListAddresses(walletID, true)
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
