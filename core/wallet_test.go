package core

import "testing"

func TestNewRandomWalletAndMnemonicRoundTrip(t *testing.T) {
	w, mnemonic, err := NewRandomWallet(128)
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	if mnemonic == "" {
		t.Fatal("expected a non-empty recovery mnemonic")
	}

	recovered, err := WalletFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("WalletFromMnemonic: %v", err)
	}
	if string(w.Seed()) != string(recovered.Seed()) {
		t.Fatal("expected the recovered wallet's seed to match the original")
	}
}

func TestNewRandomWalletRejectsBadEntropySize(t *testing.T) {
	if _, _, err := NewRandomWallet(100); err == nil {
		t.Fatal("expected an error for an unsupported entropy size")
	}
}

func TestWalletFromMnemonicRejectsBadChecksum(t *testing.T) {
	bad := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"
	if _, err := WalletFromMnemonic(bad, ""); err == nil {
		t.Fatal("expected an invalid checksum mnemonic to be rejected")
	}
}

func TestPrivateKeyDerivationIsDeterministic(t *testing.T) {
	w, _, err := NewRandomWallet(256)
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	priv1, pub1, err := w.PrivateKey(0, 0)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	priv2, pub2, err := w.PrivateKey(0, 0)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	if string(priv1) != string(priv2) || string(pub1) != string(pub2) {
		t.Fatal("expected repeated derivation at the same path to be deterministic")
	}

	priv3, _, err := w.PrivateKey(0, 1)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	if string(priv1) == string(priv3) {
		t.Fatal("expected different indices to derive different keys")
	}
}

func TestNewAddressUsesNetworkPrefix(t *testing.T) {
	w, _, err := NewRandomWallet(128)
	if err != nil {
		t.Fatalf("NewRandomWallet: %v", err)
	}
	addr, err := w.NewAddress("UAT", 0, 0)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if len(addr) < len("UAT") || addr[:3] != "UAT" {
		t.Fatalf("address %q does not carry the requested UAT prefix", addr)
	}

	testnetAddr, err := w.NewAddress("LOS", 0, 0)
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if testnetAddr[:3] != "LOS" {
		t.Fatalf("address %q does not carry the requested LOS prefix", testnetAddr)
	}
	if addr[3:] != testnetAddr[3:] {
		t.Fatal("expected the address hash suffix to be identical across network prefixes for the same key")
	}
}

func TestRandomMnemonicEntropyRejectsNonMultipleOf32(t *testing.T) {
	if _, err := RandomMnemonicEntropy(100); err == nil {
		t.Fatal("expected an error for entropy bits not a multiple of 32")
	}
}

func TestWipeZeroesBuffer(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Wipe(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %d, want 0 after Wipe", i, v)
		}
	}
}
