// Package session implements spec.md §4.1: signature- and session-token
// authentication of copayer requests, plus sliding-expiration sessions.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/obyte-wallet/walletd/internal/cryptoutil"
	"github.com/obyte-wallet/walletd/internal/model"
	"github.com/obyte-wallet/walletd/internal/store"
	"github.com/obyte-wallet/walletd/internal/walleterr"
	"github.com/obyte-wallet/walletd/internal/walletlog"
)

// Service authenticates requests and manages login sessions.
type Service struct {
	store      store.Store
	expiration time.Duration
	minVersion string
}

// New constructs a session service.
func New(st store.Store, expiration time.Duration, minVersion string) *Service {
	return &Service{store: st, expiration: expiration, minVersion: minVersion}
}

// Identity is the authenticated caller, resolved from either a
// signature or a session token.
type Identity struct {
	CopayerID      string
	WalletID       string
	IsSupportStaff bool
}

// CanonicalMessage builds the "method | url | body" string verified
// against x-signature, per spec.md §4.1.
func CanonicalMessage(method, url string, body []byte) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s", method, url, string(body)))
}

// AuthBySignature verifies (copayerID, message, signature) against the
// copayer's request-public-key history. overrideWalletID, when set, lets
// support staff operate on an explicit wallet id (spec.md §4.1).
func (s *Service) AuthBySignature(copayerID, message, signature, overrideWalletID string) (*Identity, error) {
	lookup, err := s.store.GetCopayerLookup(copayerID)
	if err != nil {
		return nil, walleterr.NotAuthorizedf("Copayer not found")
	}
	if !cryptoutil.VerifyAny(lookup.RequestPubKeys, []byte(message), signature) {
		return nil, walleterr.NotAuthorizedf("Invalid signature")
	}
	walletID := lookup.WalletID
	if lookup.IsSupportStaff && overrideWalletID != "" {
		walletID = overrideWalletID
	}
	return &Identity{CopayerID: copayerID, WalletID: walletID, IsSupportStaff: lookup.IsSupportStaff}, nil
}

// Login creates (or slides) a session for copayerID, verified the same
// way as AuthBySignature. Repeated logins while the prior session is
// still valid return the same token (spec.md §4.1).
func (s *Service) Login(copayerID, message, signature string) (*model.Session, error) {
	lookup, err := s.store.GetCopayerLookup(copayerID)
	if err != nil {
		return nil, walleterr.NotAuthorizedf("Copayer not found")
	}
	if !cryptoutil.VerifyAny(lookup.RequestPubKeys, []byte(message), signature) {
		return nil, walleterr.NotAuthorizedf("Invalid signature")
	}

	now := time.Now()
	// best-effort reuse: walk is not indexed, acceptable for the
	// reference in-memory store; a real driver would index by copayerId.
	if existing := s.findActiveSession(copayerID, now); existing != nil {
		existing.ExpiresOn = now.Add(s.expiration)
		_ = s.store.PutSession(existing)
		return existing, nil
	}

	sess := &model.Session{
		ID:        uuid.NewString(),
		CopayerID: copayerID,
		WalletID:  lookup.WalletID,
		CreatedOn: now,
		ExpiresOn: now.Add(s.expiration),
	}
	if err := s.store.PutSession(sess); err != nil {
		return nil, err
	}
	walletlog.L().WithField("copayerId", copayerID).Info("session: login")
	return sess, nil
}

func (s *Service) findActiveSession(copayerID string, now time.Time) *model.Session {
	sessions, _ := s.store.ListSessionsByCopayer(copayerID)
	for i := range sessions {
		if sessions[i].ExpiresOn.After(now) {
			return &sessions[i]
		}
	}
	return nil
}

// Logout deletes a session immediately.
func (s *Service) Logout(sessionID string) error {
	return s.store.DeleteSession(sessionID)
}

// AuthBySession verifies a session token and slides its expiration
// forward, per spec.md §3 "sliding expiration window".
func (s *Service) AuthBySession(sessionID, overrideWalletID string) (*Identity, error) {
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, walleterr.NotAuthorizedf("Session expired")
	}
	now := time.Now()
	if now.After(sess.ExpiresOn) {
		_ = s.store.DeleteSession(sessionID)
		return nil, walleterr.NotAuthorizedf("Session expired")
	}
	sess.ExpiresOn = now.Add(s.expiration)
	_ = s.store.PutSession(sess)

	lookup, err := s.store.GetCopayerLookup(sess.CopayerID)
	if err != nil {
		return nil, walleterr.NotAuthorizedf("Copayer not found")
	}
	walletID := sess.WalletID
	if lookup.IsSupportStaff && overrideWalletID != "" {
		walletID = overrideWalletID
	}
	return &Identity{CopayerID: sess.CopayerID, WalletID: walletID, IsSupportStaff: lookup.IsSupportStaff}, nil
}

// CheckClientVersion enforces the minimum-supported floor, returning
// UPGRADE_NEEDED when the caller is older.
func (s *Service) CheckClientVersion(clientVersion string) error {
	if s.minVersion == "" || clientVersion == "" {
		return nil
	}
	if clientVersion < s.minVersion {
		return walleterr.New(walleterr.UpgradeNeeded, "client version below minimum supported")
	}
	return nil
}
