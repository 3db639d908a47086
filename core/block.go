package core

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// RecordKind is the tagged-union discriminant for the five record variants.
// All per-kind behavior is dispatched from Ledger.ProcessBlock's single
// apply routine so no invariant can be bypassed by adding a new kind
// elsewhere.
type RecordKind uint8

const (
	KindSend RecordKind = iota
	KindReceive
	KindChange
	KindMint
	KindSlash
)

func (k RecordKind) String() string {
	switch k {
	case KindSend:
		return "Send"
	case KindReceive:
		return "Receive"
	case KindChange:
		return "Change"
	case KindMint:
		return "Mint"
	case KindSlash:
		return "Slash"
	default:
		return "Unknown"
	}
}

// MinWorkLeadingZeroBits is the anti-spam proof-of-work threshold: the
// signing hash must have at least this many leading zero bits, counted
// MSB-first over the big-endian digest bytes. This is an anti-spam gate,
// not consensus proof-of-work.
const MinWorkLeadingZeroBits = 16

// Record is one typed state-transition entry on an account's chain (the
// wire/JSON name is historically "block" in this codebase's lineage; the
// type name Record reflects what it actually models).
type Record struct {
	Account   Address    `json:"account"`
	Previous  string     `json:"previous"`
	Kind      RecordKind `json:"kind"`
	Amount    *big.Int   `json:"amount"`
	Link      string     `json:"link"`
	Signature []byte     `json:"signature"`
	PublicKey []byte     `json:"public_key"`
	Work      uint64     `json:"work"`
	Timestamp int64      `json:"timestamp"`
	Fee       *big.Int   `json:"fee,omitempty"`
}

// Block is an alias kept for external interface naming: external
// collaborators (wallets, the consensus network adapter) speak of
// "blocks" on the wire even though each one is a single account-chain
// record.
type Block = Record

func amountOrZero(a *big.Int) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	return a
}

// SigningHash is the domain-separated digest over every field except the
// signature, prefixed by the chain-id for domain separation. It is the
// message both signed and proof-of-worked.
func (r *Record) SigningHash(chainID NetworkID) Hash {
	h := sha3.New256()
	h.Write([]byte{byte(chainID)})
	h.Write([]byte(r.Account))
	h.Write([]byte(r.Previous))
	h.Write([]byte{byte(r.Kind)})
	h.Write(amountOrZero(r.Amount).Bytes())
	h.Write([]byte(r.Link))
	h.Write(r.PublicKey)
	var workBuf [8]byte
	binary.BigEndian.PutUint64(workBuf[:], r.Work)
	h.Write(workBuf[:])
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(r.Timestamp))
	h.Write(tsBuf[:])
	h.Write(amountOrZero(r.Fee).Bytes())
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// RecordID is the digest of signing-hash concatenated with signature; it is
// globally unique and is the key records are stored and referenced by.
func (r *Record) RecordID(chainID NetworkID) Hash {
	sh := r.SigningHash(chainID)
	h := sha3.New256()
	h.Write(sh[:])
	h.Write(r.Signature)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// VerifySignature returns false on an empty signature or key; otherwise it
// delegates to the record's declared algorithm against the signing hash.
// algo selects which capability backs public_key/signature: classical
// ed25519 by default, or the post-quantum Dilithium3 backend when the
// public key length indicates it.
func (r *Record) VerifySignature(chainID NetworkID) bool {
	if len(r.Signature) == 0 || len(r.PublicKey) == 0 {
		return false
	}
	sh := r.SigningHash(chainID)
	algo := algoForKeyLen(len(r.PublicKey))
	ok, err := VerifyRecord(algo, keyAsVerifyArg(algo, r.PublicKey), sh[:], r.Signature)
	if err != nil {
		return false
	}
	return ok
}

// VerifyWork returns true iff the signing hash has at least
// MinWorkLeadingZeroBits leading zero bits.
func (r *Record) VerifyWork(chainID NetworkID) bool {
	sh := r.SigningHash(chainID)
	return leadingZeroBits(sh[:]) >= MinWorkLeadingZeroBits
}

func leadingZeroBits(b []byte) int {
	count := 0
	for _, by := range b {
		if by == 0 {
			count += 8
			continue
		}
		for mask := byte(0x80); mask > 0; mask >>= 1 {
			if by&mask != 0 {
				return count
			}
			count++
		}
	}
	return count
}

// algoForKeyLen disambiguates ed25519 (32-byte) from Dilithium3 (much
// larger) public keys so a single Record can carry either capability.
func algoForKeyLen(n int) KeyAlgo {
	if n == 32 {
		return AlgoEd25519
	}
	return AlgoDilithium3
}

func keyAsVerifyArg(algo KeyAlgo, raw []byte) interface{} {
	if algo == AlgoEd25519 {
		return ed25519.PublicKey(raw)
	}
	return raw
}

// HasSystemMintPrefix reports whether a Mint record's link carries one of
// the system-generated provenance prefixes exempt from the anti-whale mint
// cap (I5).
func HasSystemMintPrefix(link string) bool {
	return hasPrefix(link, "REWARD:") || hasPrefix(link, "FEE_REWARD:")
}

// HasTestnetFaucetPrefix reports whether a Mint record's link carries one of
// the testnet-only faucet provenance prefixes.
func HasTestnetFaucetPrefix(link string) bool {
	return hasPrefix(link, "FAUCET:") || hasPrefix(link, "TESTNET:") || hasPrefix(link, "Src:")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// WireEncode renders a record as a pipe-delimited text line in a fixed field
// order (account, previous, kind, amount, link, work, timestamp, fee) for
// reproducible comparison in tests. The output is not JSON, and the public
// key and signature are not included.
func (r *Record) WireEncode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s|%s|%d|%s|%s|%d|%d|%s",
		r.Account, r.Previous, r.Kind, amountOrZero(r.Amount).String(), r.Link,
		r.Work, r.Timestamp, amountOrZero(r.Fee).String())
	return buf.Bytes()
}
