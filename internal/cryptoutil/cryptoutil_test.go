package cryptoutil

import (
	"fmt"
	"testing"

	"github.com/tyler-smith/go-bip39"
)

// mnemonicFixture mints a deterministic mnemonic/seed pair the way a real
// copayer's wallet would, standing in for the private-key holder the
// coordination service itself never has access to.
func mnemonicFixture(t *testing.T) []byte {
	t.Helper()
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		t.Fatalf("NewEntropy: %v", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	return bip39.NewSeed(mnemonic, "")
}

func TestMasterXPubFromSeedDerivesFromMnemonic(t *testing.T) {
	seed := mnemonicFixture(t)
	priv, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	if priv.Sign() == 0 {
		t.Fatal("expected a non-zero master private scalar")
	}
	if len(chain) != 32 {
		t.Fatalf("expected a 32-byte chain code, got %d", len(chain))
	}
}

func TestMasterXPubFromSeedRejectsShortSeed(t *testing.T) {
	if _, _, err := MasterXPubFromSeed([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a seed shorter than 16 bytes")
	}
}

func TestMasterXPubFromSeedIsDeterministic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	if !bip39.IsMnemonicValid(mnemonic) {
		t.Fatal("expected the fixture mnemonic to be valid")
	}
	seed := bip39.NewSeed(mnemonic, "")

	priv1, chain1, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("first derivation: %v", err)
	}
	priv2, chain2, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}
	if priv1.Cmp(priv2) != 0 {
		t.Fatal("expected the same seed to always derive the same master key")
	}
	if fmt.Sprintf("%x", chain1) != fmt.Sprintf("%x", chain2) {
		t.Fatal("expected the same seed to always derive the same chain code")
	}
}

func TestDeriveHardenedChildPrivThenPubKeyFromPriv(t *testing.T) {
	seed := mnemonicFixture(t)
	master, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	accountPriv, accountChain, err := DeriveHardenedChildPriv(master, chain, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv: %v", err)
	}
	if len(accountChain) != 32 {
		t.Fatalf("expected a 32-byte account chain code, got %d", len(accountChain))
	}
	pub := PubKeyFromPriv(accountPriv)
	if len(pub) != 33 {
		t.Fatalf("expected a 33-byte compressed pubkey, got %d", len(pub))
	}
}

func TestXPubStringRoundTripsThroughParseXPub(t *testing.T) {
	seed := mnemonicFixture(t)
	master, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	accountPriv, accountChain, err := DeriveHardenedChildPriv(master, chain, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv: %v", err)
	}
	xpub := &XPub{PubKey: PubKeyFromPriv(accountPriv), ChainCode: accountChain}

	s := xpub.String()
	parsed, err := ParseXPub(s)
	if err != nil {
		t.Fatalf("ParseXPub: %v", err)
	}
	if !xpub.Equal(parsed) {
		t.Fatalf("expected the round-tripped xpub to be equal, got %s vs %s", s, parsed.String())
	}
}

func TestParseXPubRejectsMalformedInput(t *testing.T) {
	cases := []string{"", "not-an-xpub", "00:00", string(make([]byte, 200))}
	for _, c := range cases {
		if _, err := ParseXPub(c); err == nil {
			t.Fatalf("expected ParseXPub(%q) to fail", c)
		}
	}
}

func TestDeriveChildPubKeyRejectsHardenedIndex(t *testing.T) {
	seed := mnemonicFixture(t)
	master, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	accountPriv, accountChain, err := DeriveHardenedChildPriv(master, chain, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv: %v", err)
	}
	xpub := &XPub{PubKey: PubKeyFromPriv(accountPriv), ChainCode: accountChain}
	if _, err := DeriveChildPubKey(xpub, hardenedOffset); err == nil {
		t.Fatal("expected hardened index derivation from an xpub to fail")
	}
}

func TestDerivePathProducesDistinctAddressesPerPath(t *testing.T) {
	seed := mnemonicFixture(t)
	master, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	accountPriv, accountChain, err := DeriveHardenedChildPriv(master, chain, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv: %v", err)
	}
	xpub := &XPub{PubKey: PubKeyFromPriv(accountPriv), ChainCode: accountChain}

	external0, err := DerivePath(xpub, false, 0)
	if err != nil {
		t.Fatalf("DerivePath external/0: %v", err)
	}
	external1, err := DerivePath(xpub, false, 1)
	if err != nil {
		t.Fatalf("DerivePath external/1: %v", err)
	}
	change0, err := DerivePath(xpub, true, 0)
	if err != nil {
		t.Fatalf("DerivePath change/0: %v", err)
	}
	if external0.Equal(external1) || external0.Equal(change0) {
		t.Fatal("expected distinct paths to derive distinct public keys")
	}
}

func TestDeriveAddressSingleSignature(t *testing.T) {
	seed := mnemonicFixture(t)
	master, chain, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	accountPriv, accountChain, err := DeriveHardenedChildPriv(master, chain, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv: %v", err)
	}
	xpub := &XPub{PubKey: PubKeyFromPriv(accountPriv), ChainCode: accountChain}

	ring := []CopayerKey{{DeviceID: "dev1", XPub: xpub}}
	da, err := DeriveAddress(ring, 1, false, 0)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if da.Definition.Kind != "sig" {
		t.Fatalf("expected a single-sig definition, got %q", da.Definition.Kind)
	}
	if da.Address == "" || da.Address[:4] != "obw1" {
		t.Fatalf("expected an obw1-prefixed address, got %q", da.Address)
	}
}

func TestDeriveAddressMultisigSortsSetByDeviceID(t *testing.T) {
	seed1 := mnemonicFixture(t)
	m1, c1, err := MasterXPubFromSeed(seed1)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed 1: %v", err)
	}
	a1, ac1, err := DeriveHardenedChildPriv(m1, c1, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv 1: %v", err)
	}
	xpub1 := &XPub{PubKey: PubKeyFromPriv(a1), ChainCode: ac1}

	seed2 := mnemonicFixture(t)
	m2, c2, err := MasterXPubFromSeed(seed2)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed 2: %v", err)
	}
	a2, ac2, err := DeriveHardenedChildPriv(m2, c2, 0)
	if err != nil {
		t.Fatalf("DeriveHardenedChildPriv 2: %v", err)
	}
	xpub2 := &XPub{PubKey: PubKeyFromPriv(a2), ChainCode: ac2}

	ring := []CopayerKey{
		{DeviceID: "zeta", XPub: xpub1},
		{DeviceID: "alpha", XPub: xpub2},
	}
	da, err := DeriveAddress(ring, 2, false, 0)
	if err != nil {
		t.Fatalf("DeriveAddress: %v", err)
	}
	if da.Definition.Kind != "r_of_set" || da.Definition.Required != 2 {
		t.Fatalf("expected a 2-of-set definition, got %+v", da.Definition)
	}
	if len(da.Definition.Set) != 2 || da.Definition.Set[0].DeviceID != "alpha" || da.Definition.Set[1].DeviceID != "zeta" {
		t.Fatalf("expected the clause set sorted by device id, got %+v", da.Definition.Set)
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	seed := mnemonicFixture(t)
	priv, _, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	msg := []byte("canonical-message-to-sign")
	sig, err := Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pubHex := fmt.Sprintf("%x", PubKeyFromPriv(priv))
	ok, err := Verify(pubHex, msg, sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected a freshly produced signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	seed := mnemonicFixture(t)
	priv, _, err := MasterXPubFromSeed(seed)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed: %v", err)
	}
	sig, err := Sign(priv, []byte("original"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pubHex := fmt.Sprintf("%x", PubKeyFromPriv(priv))
	ok, err := Verify(pubHex, []byte("tampered"), sig)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected verification of a tampered message to fail")
	}
}

func TestVerifyAnyMatchesAnyCandidateKey(t *testing.T) {
	seed1 := mnemonicFixture(t)
	priv1, _, err := MasterXPubFromSeed(seed1)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed 1: %v", err)
	}
	seed2 := mnemonicFixture(t)
	priv2, _, err := MasterXPubFromSeed(seed2)
	if err != nil {
		t.Fatalf("MasterXPubFromSeed 2: %v", err)
	}
	msg := []byte("login-message")
	sig, err := Sign(priv2, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	pub1 := fmt.Sprintf("%x", PubKeyFromPriv(priv1))
	pub2 := fmt.Sprintf("%x", PubKeyFromPriv(priv2))
	if !VerifyAny([]string{pub1, pub2}, msg, sig) {
		t.Fatal("expected VerifyAny to match the second candidate key")
	}
	if VerifyAny([]string{pub1}, msg, sig) {
		t.Fatal("expected VerifyAny to fail when the signing key is not among the candidates")
	}
}

func TestBuildDefinitionTemplateSingleSig(t *testing.T) {
	tmpl := BuildDefinitionTemplate(1, 1, []string{"dev1"})
	if len(tmpl) != 2 || tmpl[0] != "sig" {
		t.Fatalf("expected a [\"sig\", \"placeholder\"] template, got %+v", tmpl)
	}
}

func TestBuildDefinitionTemplateMultisig(t *testing.T) {
	tmpl := BuildDefinitionTemplate(3, 2, []string{"dev1", "dev2", "dev3"})
	if len(tmpl) != 3 || tmpl[0] != "r_of_set" || tmpl[1] != 2 {
		t.Fatalf("expected an [\"r_of_set\", 2, [...]] template, got %+v", tmpl)
	}
	set, ok := tmpl[2].([]interface{})
	if !ok || len(set) != 3 {
		t.Fatalf("expected a 3-member clause set, got %+v", tmpl[2])
	}
}
