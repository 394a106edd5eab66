package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

func (s *Server) hubBroadcastRaw(rawTx string) error {
	return s.hub.BroadcastJoint(map[string]interface{}{"raw": rawTx})
}

func parseInt64(v string) (int64, error) {
	return strconv.ParseInt(v, 10, 64)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset := chi.URLParam(r, "asset")
	a, err := s.store.GetAsset(asset)
	if err != nil {
		writeError(w, walleterr.New(walleterr.InvalidAddress, "asset not found"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleFiatRate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	provider := r.URL.Query().Get("provider")
	ts := time.Now()
	if tsStr := r.URL.Query().Get("ts"); tsStr != "" {
		if ms, err := parseInt64(tsStr); err == nil {
			ts = time.UnixMilli(ms)
		}
	}
	rate, err := s.fiat.Get(code, provider, ts)
	if err != nil {
		writeError(w, walleterr.New(walleterr.InvalidAddress, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// handleNotificationsWS upgrades the connection and streams live
// notifications for the caller's wallet, an alternative to polling
// GET /notifications (SPEC_FULL.md domain-stack section).
func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	if err := s.broker.ServeWS(w, r, identity.WalletID); err != nil {
		walletlog.L().WithError(err).Warn("httpapi: notifications websocket closed with error")
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	minTS := parseUnixQuery(r, "timeSpan")
	var afterID int64
	if v := r.URL.Query().Get("notificationId"); v != "" {
		if n, err := parseInt64(v); err == nil {
			afterID = n
		}
	}
	notifications, err := s.broker.List(identity.WalletID, minTS, afterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

type pushSubscribeRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r)
	var in pushSubscribeRequest
	if err := readJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	sub := &model.PushSubscription{Token: in.Token, CopayerID: identity.CopayerID, Platform: in.Platform, CreatedOn: time.Now()}
	if err := s.store.PutPushSubscription(sub); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.store.DeletePushSubscription(token); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
