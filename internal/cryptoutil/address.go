package cryptoutil

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/crypto/ripemd160"
)

// Definition is the boolean multisig clause produced by DeriveAddress,
// mirroring spec.md §3's "multisig definition": for n=1 a single-
// signature clause, for n>1 an "r of set" clause over n "sig"
// sub-clauses keyed by copayer device id.
type Definition struct {
	Kind     string       `json:"kind"` // "sig" | "r_of_set"
	PubKey   string       `json:"pubKey,omitempty"`
	Required int          `json:"required,omitempty"`
	Set      []SigClause  `json:"set,omitempty"`
}

// SigClause is one member clause of an r_of_set definition.
type SigClause struct {
	DeviceID string `json:"deviceId"`
	PubKey   string `json:"pubKey"`
}

// CopayerKey names one copayer's device id alongside its account-level xpub,
// the inputs DeriveAddress needs from the frozen public-key ring.
type CopayerKey struct {
	DeviceID string
	XPub     *XPub
}

// DerivedAddress is the deterministic result of deriving one m/change/index
// path over a wallet's public-key ring (spec.md §8 "Determinism").
type DerivedAddress struct {
	Address      string
	Definition   Definition
	SigningPaths map[string]string // pubkey hex -> signing path string
}

// DeriveAddress computes the address, multisig definition and per-pubkey
// signing-path map for path m/change/index over the given ring, required
// signatures m. It is a pure function of (ring, change, index, m): any
// implementer produces the identical address string (spec.md §8).
func DeriveAddress(ring []CopayerKey, m int, change bool, index uint32) (*DerivedAddress, error) {
	if len(ring) == 0 {
		return nil, fmt.Errorf("cryptoutil: empty public key ring")
	}
	pathStr := path(change, index)

	if len(ring) == 1 {
		child, err := DerivePath(ring[0].XPub, change, index)
		if err != nil {
			return nil, err
		}
		pk := pubHex(child)
		def := Definition{Kind: "sig", PubKey: pk}
		addr := hashDefinition(def)
		return &DerivedAddress{
			Address:    addr,
			Definition: def,
			SigningPaths: map[string]string{
				pk: pathStr,
			},
		}, nil
	}

	set := make([]SigClause, len(ring))
	signingPaths := make(map[string]string, len(ring))
	for i, ck := range ring {
		child, err := DerivePath(ck.XPub, change, index)
		if err != nil {
			return nil, fmt.Errorf("cryptoutil: derive copayer %d: %w", i, err)
		}
		pk := pubHex(child)
		set[i] = SigClause{DeviceID: ck.DeviceID, PubKey: pk}
		signingPaths[pk] = pathStr
	}
	sort.Slice(set, func(i, j int) bool { return set[i].DeviceID < set[j].DeviceID })

	def := Definition{Kind: "r_of_set", Required: m, Set: set}
	addr := hashDefinition(def)
	return &DerivedAddress{Address: addr, Definition: def, SigningPaths: signingPaths}, nil
}

func path(change bool, index uint32) string {
	c := 0
	if change {
		c = 1
	}
	return fmt.Sprintf("m/%d/%d", c, index)
}

func pubHex(x *XPub) string {
	return fmt.Sprintf("%x", x.PubKey)
}

// hashDefinition canonicalises the definition to JSON and hashes it
// SHA-256 -> RIPEMD-160, the same two-stage hash the teacher's
// core/wallet.go uses to turn a single public key into an address,
// generalised here to hash a whole multisig clause instead of one key.
func hashDefinition(def Definition) string {
	canon, _ := json.Marshal(def)
	sha := sha256.Sum256(canon)
	r := ripemd160.New()
	r.Write(sha[:])
	return "obw1" + fmt.Sprintf("%x", r.Sum(nil))
}

// BuildDefinitionTemplate returns the wallet-level template (before any
// per-path substitution) recorded on the Wallet record, following
// spec.md §3's "definitionTemplate describing the multisig condition".
func BuildDefinitionTemplate(n, m int, deviceIDs []string) []interface{} {
	if n == 1 {
		return []interface{}{"sig", "placeholder"}
	}
	set := make([]interface{}, len(deviceIDs))
	for i, d := range deviceIDs {
		set[i] = []interface{}{"sig", d}
	}
	return []interface{}{"r_of_set", m, set}
}
