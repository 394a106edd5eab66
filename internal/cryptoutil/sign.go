package cryptoutil

import (
	"crypto/ecdsa"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
)

// Sign produces a fixed-length r||s hex signature over SHA-256(message)
// under priv. It exists so tests (standing in for a copayer's local
// wallet) can produce signatures the service then verifies; the service
// process itself never calls Sign.
func Sign(priv *big.Int, message []byte) (string, error) {
	h := sha256.Sum256(message)
	c := curve()
	x, y := c.ScalarBaseMult(priv.Bytes())
	key := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: c, X: x, Y: y},
		D:         priv,
	}
	r, s, err := ecdsa.Sign(crand.Reader, key, h[:])
	if err != nil {
		return "", err
	}
	buf := make([]byte, 64)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(buf[32-len(rb):32], rb)
	copy(buf[64-len(sb):], sb)
	return hex.EncodeToString(buf), nil
}

// Verify checks a Sign-produced hex signature against a compressed
// public-key hex string over SHA-256(message).
func Verify(pubKeyHex string, message []byte, sigHex string) (bool, error) {
	pubBytes, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pubBytes) != 33 {
		return false, errors.New("cryptoutil: bad public key")
	}
	x, y, err := decompressPoint(pubBytes)
	if err != nil {
		return false, err
	}
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil || len(sigBytes) != 64 {
		return false, errors.New("cryptoutil: bad signature encoding")
	}
	r := new(big.Int).SetBytes(sigBytes[:32])
	s := new(big.Int).SetBytes(sigBytes[32:])
	h := sha256.Sum256(message)
	pub := &ecdsa.PublicKey{Curve: curve(), X: x, Y: y}
	return ecdsa.Verify(pub, h[:], r, s), nil
}

// VerifyAny checks sigHex against message under any of the given candidate
// public keys, used by session auth (spec.md §4.1: "some key in the
// copayer's request-public-key history").
func VerifyAny(pubKeysHex []string, message []byte, sigHex string) bool {
	for _, pk := range pubKeysHex {
		if ok, err := Verify(pk, message, sigHex); err == nil && ok {
			return true
		}
	}
	return false
}
