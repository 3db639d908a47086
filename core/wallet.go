package core

// HD wallet key derivation, retained from the node's bootstrap tooling: it
// derives genesis and validator keys deterministically from a mnemonic. It
// is not a wallet key-storage product — that surface stays out of scope —
// only a key generator. Within this repository its HD derivation is called
// by the tests only (core/genesis.go reads accounts from a JSON file and
// does not derive keys); the ledger reuses its address hashing
// (pubKeyHash160Raw).
//
// Derivation: SLIP-0010 hardened children only, path m / account' / index',
// ed25519 does not support unhardened derivation so the change level is
// omitted.
//
// Import hygiene: this file depends only on crypto, bip39/ripemd160 and
// logrus — it does not import the ledger or consensus packages.

import (
	"crypto/ed25519"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ripemd160"
)

// hmacSHA512Seed derives child key material per SLIP-0010.
func hmacSHA512Seed(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

const (
	hardenedOffset uint32 = 0x80000000
	masterHMACKey         = "ed25519 seed" // SLIP-0010 master-key string
)

var walletLogger = log.New()

func SetWalletLogger(l *log.Logger) { walletLogger = l }

// HDWallet keeps master key material in memory only; callers must Wipe
// derived secrets after use.
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
	logger      *log.Logger
}

// Seed returns a copy of the wallet's master seed.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

// NewRandomWallet generates entropyBits (128/256) of entropy and returns the
// derived wallet plus its recovery mnemonic.
func NewRandomWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed, walletLogger)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// WalletFromMnemonic imports an existing BIP-39 phrase.
func WalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed, walletLogger)
}

func NewHDWalletFromSeed(seed []byte, lg *log.Logger) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}
	if lg == nil {
		lg = walletLogger
	}
	I := hmacSHA512Seed([]byte(masterHMACKey), seed)
	w := &HDWallet{
		seed:        seed,
		masterKey:   I[:32],
		masterChain: I[32:],
		logger:      lg,
	}
	lg.Infof("wallet: master key initialised (%d bytes seed)", len(seed))
	return w, nil
}

func derivePrivate(parentKey, parentChain []byte, index uint32) (key, ccode []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("non-hardened derivation not supported for ed25519")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)
	I := hmacSHA512Seed(parentChain, data)
	return I[:32], I[32:], nil
}

// PrivateKey derives the ed25519 key pair at path m / account' / index'.
func (w *HDWallet) PrivateKey(account, index uint32) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	account |= hardenedOffset
	index |= hardenedOffset
	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, account)
	if err != nil {
		return nil, nil, err
	}
	k2, _, err := derivePrivate(k1, c1, index)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(k2)
	pub := priv.Public().(ed25519.PublicKey)
	return priv, pub, nil
}

// pubKeyHash160 mirrors Bitcoin-style address hashing: SHA-256 then
// RIPEMD-160, truncated to 20 bytes.
func pubKeyHash160(pub ed25519.PublicKey) []byte {
	return pubKeyHash160Raw(pub)
}

// pubKeyHash160Raw is the byte-slice-accepting form used for both ed25519
// and Dilithium3 public keys, since a Record's PublicKey field is
// algorithm-agnostic.
func pubKeyHash160Raw(pub []byte) []byte {
	sha := sha256.Sum256(pub)
	r := ripemd160.New()
	r.Write(sha[:])
	return r.Sum(nil)
}

// AddressForNetwork formats a public key as a network-prefixed address
// string ("UAT"/"LOS" + hex-encoded 20-byte hash), matching the wire
// encoding's ASCII address convention.
func AddressForNetwork(prefix string, pub ed25519.PublicKey) Address {
	return Address(prefix + hex.EncodeToString(pubKeyHash160(pub)))
}

// NewAddress derives account+index and returns its address under the given
// network prefix ("UAT" or "LOS").
func (w *HDWallet) NewAddress(prefix string, account, index uint32) (Address, error) {
	_, pub, err := w.PrivateKey(account, index)
	if err != nil {
		return "", err
	}
	return AddressForNetwork(prefix, pub), nil
}

// RandomMnemonicEntropy produces cryptographically secure random entropy.
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, errors.New("entropy bits must be multiple of 32")
	}
	b := make([]byte, bits/8)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe zeroes a byte slice in place (best effort).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
