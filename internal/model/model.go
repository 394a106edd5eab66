// Package model holds the persisted entity shapes of the wallet
// coordination service. These are plain structs independent of any
// storage engine; internal/store defines how they are kept.
package model

import "time"

// DerivationStrategy selects how a wallet derives its address paths.
type DerivationStrategy string

const (
	StrategyLegacy DerivationStrategy = "legacy"
	StrategyBIP44  DerivationStrategy = "bip44"
)

// AddressType distinguishes single-signature from shared (multisig) wallets.
type AddressType string

const (
	AddressNormal AddressType = "normal"
	AddressShared AddressType = "shared"
)

// ScanStatus tracks the wallet's address-scan state machine (spec.md §4.3).
type ScanStatus string

const (
	ScanIdle    ScanStatus = "idle"
	ScanRunning ScanStatus = "running"
	ScanSuccess ScanStatus = "success"
	ScanError   ScanStatus = "error"
)

// WalletStatus tracks wallet formation (spec.md §4.2).
type WalletStatus string

const (
	WalletPending  WalletStatus = "pending"
	WalletComplete WalletStatus = "complete"
)

// Wallet is a shared or single-signature multisig wallet definition.
type Wallet struct {
	ID                  string             `bson:"_id" json:"id"`
	Name                string             `json:"name"`
	M                   int                `json:"m"`
	N                   int                `json:"n"`
	Coin                string             `json:"coin"`
	Network             string             `json:"network"`
	DerivationStrategy  DerivationStrategy `json:"derivationStrategy"`
	AddressType         AddressType        `json:"addressType"`
	SingleAddress       bool               `json:"singleAddress"`
	PubKey              string             `json:"pubKey"` // creation key, verifies join signatures
	DefinitionTemplate  []interface{}      `json:"definitionTemplate"`
	CopayerIDs          []string           `json:"copayerIds"`
	PublicKeyRing       []PubKeyRingEntry  `json:"publicKeyRing"`
	ScanStatus          ScanStatus         `json:"scanStatus"`
	Status              WalletStatus       `json:"status"`
	CreatedOn           time.Time          `json:"createdOn"`
}

// PubKeyRingEntry binds a copayer's xpub into the wallet's frozen key ring.
type PubKeyRingEntry struct {
	XPubKey       string `json:"xPubKey"`
	RequestPubKey string `json:"requestPubKey"`
	DeviceID      string `json:"deviceId"`
}

// Copayer is a participant of exactly one wallet.
type Copayer struct {
	ID               string    `bson:"_id" json:"id"`
	WalletID         string    `json:"walletId"`
	Name             string    `json:"name"`
	XPubKey          string    `json:"xPubKey"`
	RequestPubKeys   []RequestPubKey `json:"requestPubKeys"` // index 0 = current
	Account          uint32    `json:"account"`
	DeviceID         string    `json:"deviceId"`
	CustomData       string    `json:"customData,omitempty"`
	IsSupportStaff   bool      `json:"isSupportStaff"`
	CreatedOn        time.Time `json:"createdOn"`
}

// RequestPubKey is one entry in a copayer's key-rotation history.
type RequestPubKey struct {
	Key       string    `json:"key"`
	Signature string    `json:"signature"`
	AddedOn   time.Time `json:"addedOn"`
}

// Address is a derived receive/change address owned by a wallet.
type Address struct {
	Address       string            `bson:"_id" json:"address"`
	WalletID      string            `json:"walletId"`
	IsChange      bool              `json:"isChange"`
	Path          string            `json:"path"` // m/change/index
	Index         uint32            `json:"index"`
	Type          AddressType       `json:"type"`
	Definition    []interface{}     `json:"definition"`
	SigningPaths  map[string]string `json:"signingPaths"` // pubkey -> signing path
	HasActivity   bool              `json:"hasActivity"`
	CreatedOn     time.Time         `json:"createdOn"`
}

// ProposalApp enumerates the supported proposal discriminators (spec.md §3).
type ProposalApp string

const (
	AppPayment                 ProposalApp = "payment"
	AppData                    ProposalApp = "data"
	AppText                    ProposalApp = "text"
	AppProfile                 ProposalApp = "profile"
	AppPoll                    ProposalApp = "poll"
	AppVote                    ProposalApp = "vote"
	AppDataFeed                ProposalApp = "data_feed"
	AppAttestation             ProposalApp = "attestation"
	AppAsset                   ProposalApp = "asset"
	AppAssetAttestors          ProposalApp = "asset_attestors"
	AppAddressDefinitionChange ProposalApp = "address_definition_change"
	AppDefinitionTemplate      ProposalApp = "definition_template"
)

// ProposalStatus is the life-cycle state of a transaction proposal (spec.md §4.4).
type ProposalStatus string

const (
	StatusTemporary   ProposalStatus = "temporary"
	StatusPending     ProposalStatus = "pending"
	StatusAccepted    ProposalStatus = "accepted"
	StatusRejected    ProposalStatus = "rejected"
	StatusBroadcasted ProposalStatus = "broadcasted"
	StatusStable      ProposalStatus = "stable"
)

// Output is a single payment destination.
type Output struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
	Message string `json:"message,omitempty"`
}

// Input is a UTXO reference consumed by a draft joint.
type Input struct {
	Unit        string `json:"unit"`
	MessageIndex int   `json:"messageIndex"`
	OutputIndex int    `json:"outputIndex"`
	Address     string `json:"address"`
	Amount      uint64 `json:"amount"`
}

// SigningInfo records, per author address, the derivation and signing
// paths a copayer needs in order to co-sign a draft joint.
type SigningInfo struct {
	WalletID     string   `json:"walletId"`
	Path         string   `json:"path"`
	SigningPaths []string `json:"signingPaths"`
}

// ProposalAction is one copayer's accept/reject vote on a proposal.
type ProposalAction struct {
	CopayerID  string            `json:"copayerId"`
	Type       string            `json:"type"` // accept|reject
	Signatures map[string]string `json:"signatures,omitempty"` // address -> signature
	XPubKey    string            `json:"xPubKey"`
	Comment    string            `json:"comment,omitempty"`
	CreatedOn  time.Time         `json:"createdOn"`
}

// TxProposal is a draft/in-flight/finalised multisig spend (or other app payload).
type TxProposal struct {
	ID                  string                 `bson:"_id" json:"id"`
	WalletID            string                 `json:"walletId"`
	CreatorID           string                 `json:"creatorId"`
	App                 ProposalApp            `json:"app"`
	Outputs             []Output               `json:"outputs,omitempty"`
	Payload             map[string]interface{} `json:"payload,omitempty"`
	ChangeAddress       string                 `json:"changeAddress,omitempty"`
	Inputs              []Input                `json:"inputs"`
	DraftJoint          map[string]interface{} `json:"draftJoint"`
	SigningInfo         map[string]SigningInfo `json:"signingInfo"`
	RequiredSignatures  int                    `json:"requiredSignatures"`
	RequiredRejections  int                    `json:"requiredRejections"`
	Status              ProposalStatus         `json:"status"`
	DryRun              bool                   `json:"dryRun,omitempty"`
	Actions             []ProposalAction       `json:"actions"`
	TxID                string                 `json:"txid,omitempty"`
	BroadcastedOn       *time.Time             `json:"broadcastedOn,omitempty"`
	Stable              bool                   `json:"stable"`
	StableOn            *time.Time             `json:"stableOn,omitempty"`
	CreatedOn           time.Time              `json:"createdOn"`
}

// AcceptCount returns the number of accept actions recorded so far.
func (p *TxProposal) AcceptCount() int {
	n := 0
	for _, a := range p.Actions {
		if a.Type == "accept" {
			n++
		}
	}
	return n
}

// RejectCount returns the number of reject actions recorded so far.
func (p *TxProposal) RejectCount() int {
	n := 0
	for _, a := range p.Actions {
		if a.Type == "reject" {
			n++
		}
	}
	return n
}

// ActedBy reports whether copayerID already cast an action on this proposal.
func (p *TxProposal) ActedBy(copayerID string) bool {
	for _, a := range p.Actions {
		if a.CopayerID == copayerID {
			return true
		}
	}
	return false
}

// Notification is an append-only, per-wallet, strictly ordered event.
type Notification struct {
	ID        int64       `json:"id"` // storage-assigned, strictly increasing per wallet
	Ticker    int64       `json:"ticker"` // in-process monotonic tiebreaker
	Type      string      `json:"type"`
	WalletID  string      `json:"walletId"`
	CreatorID string      `json:"creatorId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	CreatedOn time.Time   `json:"createdOn"`
}

// Session is a per-copayer sliding-expiration auth token.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	CopayerID string    `json:"copayerId"`
	WalletID  string    `json:"walletId"`
	CreatedOn time.Time `json:"createdOn"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// TxNote is a free-text annotation on a (broadcast) transaction.
type TxNote struct {
	TxID      string    `bson:"_id" json:"txid"`
	WalletID  string    `json:"walletId"`
	Body      string    `json:"body"`
	EditedBy  string    `json:"editedBy"`
	EditedOn  time.Time `json:"editedOn"`
}

// TxConfirmationSubscription is a single-shot watch on a txid's stabilisation.
type TxConfirmationSubscription struct {
	ID        string `bson:"_id" json:"id"`
	CopayerID string `json:"copayerId"`
	WalletID  string `json:"walletId"`
	TxID      string `json:"txid"`
	Active    bool   `json:"active"`
	CreatedOn time.Time `json:"createdOn"`
}

// PushSubscription is a device token registered for push notifications.
type PushSubscription struct {
	Token      string `bson:"_id" json:"token"`
	CopayerID  string `json:"copayerId"`
	Platform   string `json:"platform"`
	CreatedOn  time.Time `json:"createdOn"`
}

// Preferences are per-copayer display/notification settings.
type Preferences struct {
	CopayerID    string `bson:"_id" json:"copayerId"`
	Email        string `json:"email,omitempty"`
	Language     string `json:"language,omitempty"`
	Unit         string `json:"unit,omitempty"`
}

// AssetMetadata is a registry-published asset description ingested from the ledger.
type AssetMetadata struct {
	Asset       string `bson:"_id" json:"asset"`
	Name        string `json:"name"`
	Suffixed    bool   `json:"suffixed"`
	RegisteredBy string `json:"registeredBy"`
}

// CopayerLookup is the global (cross-wallet) index used by session auth.
type CopayerLookup struct {
	CopayerID      string   `bson:"_id" json:"copayerId"`
	WalletID       string   `json:"walletId"`
	RequestPubKeys []string `json:"requestPubKeys"`
	IsSupportStaff bool     `json:"isSupportStaff"`
}

// BroadcastLogEntry records a proposal broadcast for the 24h spent-UTXO view.
type BroadcastLogEntry struct {
	ProposalID string    `json:"proposalId"`
	WalletID   string    `json:"walletId"`
	Inputs     []Input   `json:"inputs"`
	BroadcastedOn time.Time `json:"broadcastedOn"`
}
