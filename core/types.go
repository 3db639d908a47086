// Package core implements the consensus- and state-critical path of an
// unauthority node: the block-lattice ledger, the aBFT consensus engine,
// finality checkpoints, and the validator reward pool.
package core

import (
	"encoding/hex"
	"fmt"
)

// Address is an ASCII account identifier carrying a network prefix, e.g.
// "UAT1a2b3c..." on mainnet or "LOS1a2b3c..." on testnet. Records reference
// accounts and predecessors by these strings (and by Hash below) rather than
// by pointer, so the ledger's account/record graph is content-addressed and
// free of in-memory reference cycles.
type Address string

// Hash is a 32-byte cryptographic digest, hex-encoded on the wire.
type Hash [32]byte

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) Short() string {
	full := h.Hex()
	if len(full) <= 8 {
		return full
	}
	return fmt.Sprintf("%s..%s", full[:4], full[len(full)-4:])
}

func (h Hash) IsZero() bool { return h == Hash{} }

// HashFromHex decodes a lower-case hex digest into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ZeroRecordID is the sentinel "previous" value for the first record on an
// account's chain.
const ZeroRecordID = "0"

// NetworkID distinguishes mainnet from testnet builds, per the genesis
// file's network_id field.
type NetworkID uint8

const (
	NetworkMainnet NetworkID = 1
	NetworkTestnet NetworkID = 2
)

func (n NetworkID) String() string {
	switch n {
	case NetworkMainnet:
		return "mainnet"
	case NetworkTestnet:
		return "testnet"
	default:
		return "unknown"
	}
}

// AddressPrefix returns the network's address prefix ("UAT" on mainnet,
// "LOS" on testnet), the single source of truth for the mapping every
// address-deriving/validating call site (core/ledger.go, core/wallet.go's
// callers, cmd/unaud) must agree on.
func (n NetworkID) AddressPrefix() string {
	if n == NetworkTestnet {
		return "LOS"
	}
	return "UAT"
}
