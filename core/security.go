// SPDX-License-Identifier: Apache-2.0
// Package core – shared security primitives for the node's cryptographic
// backends.
//
// Exposes:
//   - Sign / Verify      – Ed25519 (wallets) + BLS12-381 (validators).
//   - BLS aggregation    – checkpoint quorum-signature aggregation.
//   - Dilithium3         – post-quantum record signing backend.
//   - ComputeMAC/VerifyMAC – keyed SHA3-256 consensus message authentication.
//
// All crypto comes from the Go standard library, golang.org/x/crypto/sha3,
// herumi BLS, or circl (battle-tested).
package core

import (
	"crypto"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log"

	mode3 "github.com/cloudflare/circl/sign/dilithium/mode3"
	bls "github.com/herumi/bls-eth-go-binary/bls"

	"golang.org/x/crypto/sha3"
)

//---------------------------------------------------------------------
// Package-level init – BLS curve setup
//---------------------------------------------------------------------

func init() {
	if err := bls.Init(bls.BLS12_381); err != nil {
		panic(fmt.Errorf("bls init: %w", err))
	}
}

//---------------------------------------------------------------------
// Logger
//---------------------------------------------------------------------

var secLogger = log.New(io.Discard, "[security] ", log.LstdFlags)

func SetSecurityLogger(l *log.Logger) { secLogger = l }

//---------------------------------------------------------------------
// Sign / Verify – Ed25519 (default) & BLS12-381 (validators)
//---------------------------------------------------------------------

type KeyAlgo uint8

const (
	AlgoEd25519 KeyAlgo = iota
	AlgoBLS
	AlgoDilithium3
)

// SignRecord and VerifyRecord round out Sign/Verify with the Dilithium3
// branch, giving the node the {keypair, sign, verify, derive-address}
// capability set with a post-quantum-capable backend required for record
// signatures and validator identities.
func SignRecord(algo KeyAlgo, priv interface{}, msg []byte) ([]byte, error) {
	if algo == AlgoDilithium3 {
		sk, ok := priv.([]byte)
		if !ok {
			return nil, errors.New("invalid dilithium3 private key type")
		}
		return DilithiumSign(sk, msg)
	}
	return Sign(algo, priv, msg)
}

func VerifyRecord(algo KeyAlgo, pub interface{}, msg, sig []byte) (bool, error) {
	if algo == AlgoDilithium3 {
		pk, ok := pub.([]byte)
		if !ok {
			return false, errors.New("invalid dilithium3 public key type")
		}
		return DilithiumVerify(pk, msg, sig)
	}
	return Verify(algo, pub, msg, sig)
}

// Sign signs msg with priv.
// - For Ed25519: priv must be ed25519.PrivateKey.
// - For BLS:     priv must be *bls.SecretKey.
func Sign(algo KeyAlgo, priv interface{}, msg []byte) ([]byte, error) {
	switch algo {
	case AlgoEd25519:
		pk, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("invalid ed25519 private key type")
		}
		return ed25519.Sign(pk, msg), nil

	case AlgoBLS:
		sk, ok := priv.(*bls.SecretKey)
		if !ok {
			return nil, errors.New("invalid BLS secret key type")
		}
		sig := sk.SignByte(msg) // *bls.Sign
		return sig.Serialize(), nil

	default:
		return nil, errors.New("unknown algo")
	}
}

// Verify checks sig for msg with pub.
// pub may be ed25519.PublicKey, *bls.PublicKey, or compressed []byte (BLS).
func Verify(algo KeyAlgo, pub interface{}, msg, sig []byte) (bool, error) {
	switch algo {
	case AlgoEd25519:
		pk, ok := pub.(ed25519.PublicKey)
		if !ok {
			return false, errors.New("invalid ed25519 pubkey type")
		}
		return ed25519.Verify(pk, msg, sig), nil

	case AlgoBLS:
		var pk bls.PublicKey
		switch v := pub.(type) {
		case *bls.PublicKey:
			pk = *v
		case []byte:
			if err := pk.Deserialize(v); err != nil {
				return false, err
			}
		default:
			return false, errors.New("invalid BLS pubkey type")
		}

		var s bls.Sign
		if err := s.Deserialize(sig); err != nil {
			return false, err
		}
		return s.VerifyByte(&pk, msg), nil

	default:
		return false, errors.New("unknown algo")
	}
}

//---------------------------------------------------------------------
// BLS aggregation helpers
//---------------------------------------------------------------------

// AggregateBLSSigs merges multiple **compressed** BLS signatures.
func AggregateBLSSigs(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, errors.New("no sigs to aggregate")
	}
	var agg bls.Sign
	for i, raw := range sigs {
		var s bls.Sign
		if err := s.Deserialize(raw); err != nil {
			return nil, fmt.Errorf("sig %d: %w", i, err)
		}
		if i == 0 {
			agg = s
		} else {
			agg.Add(&s)
		}
	}
	return agg.Serialize(), nil
}

// AggregateBLSPubKeys merges multiple **compressed** BLS public keys into the
// single aggregate key VerifyAggregated expects as pubAgg.
func AggregateBLSPubKeys(pubs [][]byte) ([]byte, error) {
	if len(pubs) == 0 {
		return nil, errors.New("no pubkeys to aggregate")
	}
	var agg bls.PublicKey
	for i, raw := range pubs {
		var pk bls.PublicKey
		if err := pk.Deserialize(raw); err != nil {
			return nil, fmt.Errorf("pubkey %d: %w", i, err)
		}
		if i == 0 {
			agg = pk
		} else {
			agg.Add(&pk)
		}
	}
	return agg.Serialize(), nil
}

// VerifyAggregated verifies an aggregated sig for identical msg.
func VerifyAggregated(aggSig, pubAgg, msg []byte) (bool, error) {
	var pk bls.PublicKey
	if err := pk.Deserialize(pubAgg); err != nil {
		return false, err
	}
	var sig bls.Sign
	if err := sig.Deserialize(aggSig); err != nil {
		return false, err
	}
	return sig.VerifyByte(&pk, msg), nil
}

//---------------------------------------------------------------------
// Quantum-Resistant Cryptography (Dilithium3)
//---------------------------------------------------------------------

// DilithiumKeypair generates a Dilithium3 key pair.
func DilithiumKeypair() (pub, priv []byte, err error) {
	pk, sk, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return pk.Bytes(), sk.Bytes(), nil
}

// DilithiumSign signs msg with a packed Dilithium3 private key.
func DilithiumSign(priv, msg []byte) ([]byte, error) {
	var sk mode3.PrivateKey
	if err := sk.UnmarshalBinary(priv); err != nil {
		return nil, err
	}
	return sk.Sign(rand.Reader, msg, crypto.Hash(0))
}

// DilithiumVerify verifies a signature produced by DilithiumSign.
func DilithiumVerify(pub, msg, sig []byte) (bool, error) {
	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(pub); err != nil {
		return false, err
	}
	return mode3.Verify(&pk, msg, sig), nil
}

//---------------------------------------------------------------------
// Consensus message authentication – keyed SHA3-256 (HMAC)
//---------------------------------------------------------------------

// ComputeMAC returns a keyed digest of fields, suitable as a consensus
// message's mac. SHA3 (Keccak family) is used instead of a plain
// shared-secret-prefixed Merkle-Damgard hash to avoid length-extension
// forgery: an attacker who knows H(secret||m) cannot derive H(secret||m||x)
// without the secret, which a naive SHA-256(secret||m) construction would
// not guarantee.
func ComputeMAC(secret []byte, fields ...[]byte) []byte {
	h := hmac.New(sha3.New256, secret)
	for _, f := range fields {
		h.Write(f)
	}
	return h.Sum(nil)
}

// VerifyMAC recomputes the MAC and compares in constant time.
func VerifyMAC(secret, mac []byte, fields ...[]byte) bool {
	want := ComputeMAC(secret, fields...)
	return subtle.ConstantTimeCompare(want, mac) == 1
}
