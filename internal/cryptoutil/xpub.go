// Package cryptoutil implements the deterministic derivation, multisig
// definition construction, address hashing and signature verification
// the coordination service needs without ever touching a private key.
//
// It generalises the teacher's core/wallet.go HD-derivation scaffold
// (HMAC-SHA512 hardened ed25519 derivation, SHA-256/RIPEMD-160
// address hashing) from "server holds the seed" to "server holds only an
// xpub": everything past the account level here is BIP32-style
// *public*-key-only (unhardened) child derivation over secp256k1, using
// github.com/btcsuite/btcd/btcec/v2's curve as a plain elliptic.Curve and
// doing point (de)compression by hand, since the pack does not carry a
// BIP32/xpub-serialization library.
package cryptoutil

import (
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

const hardenedOffset uint32 = 0x80000000

func curve() elliptic.Curve { return btcec.S256() }

// XPub is an extended public key: a compressed secp256k1 point plus a
// 32-byte chain code. The service never needs XPub's real BIP32 wire
// serialization (base58check); it is kept as a hex pair, which is all
// that copayer registration and address derivation require.
type XPub struct {
	PubKey    []byte // 33-byte compressed point
	ChainCode []byte // 32 bytes
}

// String returns a stable opaque encoding: "<66 hex>:<64 hex>".
func (x *XPub) String() string {
	return hex.EncodeToString(x.PubKey) + ":" + hex.EncodeToString(x.ChainCode)
}

// ParseXPub parses the String() encoding back into an XPub, validating
// that the public key is a point on the curve.
func ParseXPub(s string) (*XPub, error) {
	if len(s) < 67 || s[66] != ':' {
		return nil, errors.New("cryptoutil: malformed xpub")
	}
	pub, err := hex.DecodeString(s[:66])
	if err != nil || len(pub) != 33 {
		return nil, errors.New("cryptoutil: malformed xpub pubkey")
	}
	cc, err := hex.DecodeString(s[67:])
	if err != nil || len(cc) != 32 {
		return nil, errors.New("cryptoutil: malformed xpub chain code")
	}
	if _, _, err := decompressPoint(pub); err != nil {
		return nil, err
	}
	return &XPub{PubKey: pub, ChainCode: cc}, nil
}

// Equal reports whether two xpubs denote the same key material.
func (x *XPub) Equal(o *XPub) bool {
	if x == nil || o == nil {
		return x == o
	}
	return hex.EncodeToString(x.PubKey) == hex.EncodeToString(o.PubKey)
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func compressPoint(x, y *big.Int) []byte {
	out := make([]byte, 33)
	if y.Bit(0) == 0 {
		out[0] = 0x02
	} else {
		out[0] = 0x03
	}
	xb := x.Bytes()
	copy(out[33-len(xb):], xb)
	return out
}

func decompressPoint(data []byte) (x, y *big.Int, err error) {
	if len(data) != 33 || (data[0] != 2 && data[0] != 3) {
		return nil, nil, errors.New("cryptoutil: invalid compressed point")
	}
	c := curve()
	params := c.Params()
	x = new(big.Int).SetBytes(data[1:])
	if x.Cmp(params.P) >= 0 {
		return nil, nil, errors.New("cryptoutil: x out of range")
	}
	// y^2 = x^3 + 7 mod p  (secp256k1: a=0, b=7)
	ySq := new(big.Int).Exp(x, big.NewInt(3), params.P)
	ySq.Add(ySq, params.B)
	ySq.Mod(ySq, params.P)
	y = new(big.Int).ModSqrt(ySq, params.P)
	if y == nil {
		return nil, nil, errors.New("cryptoutil: point not on curve")
	}
	if y.Bit(0) != uint(data[0]&1) {
		y = new(big.Int).Sub(params.P, y)
	}
	if !c.IsOnCurve(x, y) {
		return nil, nil, errors.New("cryptoutil: point not on curve")
	}
	return x, y, nil
}

// MasterXPubFromSeed derives the master extended key pair from a BIP-39
// seed. The master *private* scalar is returned only so tests (acting as
// a copayer, which legitimately holds the seed) can derive hardened
// account keys; the coordination service itself never calls this.
func MasterXPubFromSeed(seed []byte) (priv *big.Int, chainCode []byte, err error) {
	if len(seed) < 16 {
		return nil, nil, errors.New("cryptoutil: seed too short")
	}
	I := hmacSHA512([]byte("Bitcoin seed"), seed)
	priv = new(big.Int).SetBytes(I[:32])
	if priv.Sign() == 0 || priv.Cmp(curve().Params().N) >= 0 {
		return nil, nil, errors.New("cryptoutil: invalid master key")
	}
	return priv, I[32:], nil
}

// DeriveHardenedChildPriv derives a hardened child private scalar, for
// building copayer account keys in tests (m/44'/coin'/account').
func DeriveHardenedChildPriv(parentPriv *big.Int, parentChain []byte, index uint32) (childPriv *big.Int, childChain []byte, err error) {
	idx := index | hardenedOffset
	data := make([]byte, 1+32+4)
	pb := parentPriv.Bytes()
	copy(data[1+32-len(pb):33], pb)
	binary.BigEndian.PutUint32(data[33:], idx)
	I := hmacSHA512(parentChain, data)
	il := new(big.Int).SetBytes(I[:32])
	n := curve().Params().N
	childPriv = new(big.Int).Add(il, parentPriv)
	childPriv.Mod(childPriv, n)
	if il.Cmp(n) >= 0 || childPriv.Sign() == 0 {
		return nil, nil, errors.New("cryptoutil: invalid hardened child")
	}
	return childPriv, I[32:], nil
}

// PubKeyFromPriv returns the compressed public key for a private scalar.
func PubKeyFromPriv(priv *big.Int) []byte {
	c := curve()
	x, y := c.ScalarBaseMult(priv.Bytes())
	return compressPoint(x, y)
}

// DeriveChildPubKey performs BIP32 public (unhardened) child derivation:
// childPub = parentPub + (IL * G), childChain = IR, where
// I = HMAC-SHA512(parentChain, serP(parentPub) || index_be).
// index must be < 2^31 (hardened children cannot be derived from a
// public key alone).
func DeriveChildPubKey(parent *XPub, index uint32) (*XPub, error) {
	if index >= hardenedOffset {
		return nil, errors.New("cryptoutil: cannot derive hardened child from xpub")
	}
	px, py, err := decompressPoint(parent.PubKey)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 33+4)
	copy(data, parent.PubKey)
	binary.BigEndian.PutUint32(data[33:], index)
	I := hmacSHA512(parent.ChainCode, data)
	il := new(big.Int).SetBytes(I[:32])
	c := curve()
	n := c.Params().N
	if il.Cmp(n) >= 0 {
		return nil, errors.New("cryptoutil: invalid IL, derive next index")
	}
	ilx, ily := c.ScalarBaseMult(I[:32])
	cx, cy := c.Add(px, py, ilx, ily)
	if cx.Sign() == 0 && cy.Sign() == 0 {
		return nil, errors.New("cryptoutil: derived point at infinity")
	}
	return &XPub{PubKey: compressPoint(cx, cy), ChainCode: I[32:]}, nil
}

// DerivePath walks change then index from an account-level xpub, matching
// the wallet's m/change/index address path (spec.md §4.3).
func DerivePath(account *XPub, change bool, index uint32) (*XPub, error) {
	changeIdx := uint32(0)
	if change {
		changeIdx = 1
	}
	lvl1, err := DeriveChildPubKey(account, changeIdx)
	if err != nil {
		return nil, err
	}
	return DeriveChildPubKey(lvl1, index)
}
