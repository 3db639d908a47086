package core

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/sha3"
)

// CheckpointInterval is the block-height spacing between finality
// checkpoints.
const CheckpointInterval uint64 = 1000

// QuorumNumerator/QuorumDenominator express the 67% checkpoint quorum
// requirement as an integer ratio so quorum arithmetic never touches a
// float on this consensus-observable path.
const (
	QuorumNumerator   = 67
	QuorumDenominator = 100
)

// FinalityCheckpoint is an immutable, quorum-signed anchor: once stored, no
// block at or before its height can be reorganized.
type FinalityCheckpoint struct {
	Height         uint64
	BlockHash      string
	Timestamp      int64
	ValidatorCount uint32
	StateRoot      string
	SignatureCount uint32

	// AggregatedSignature and AggregatePublicKey carry the BLS-aggregated
	// quorum certificate: one compressed signature and one compressed
	// public key standing in for every signer that voted to finalize this
	// height, rather than SignatureCount individual signatures.
	AggregatedSignature []byte `json:",omitempty"`
	AggregatePublicKey  []byte `json:",omitempty"`
}

// SigningMessage is the canonical byte sequence validators sign to vote for
// this checkpoint.
func (c *FinalityCheckpoint) SigningMessage() []byte {
	return []byte(fmt.Sprintf("checkpoint:%d:%s:%s", c.Height, c.BlockHash, c.StateRoot))
}

// AttachAggregateSignature merges per-validator BLS signatures and public
// keys into the checkpoint's single quorum certificate.
func (c *FinalityCheckpoint) AttachAggregateSignature(sigs, pubs [][]byte) error {
	aggSig, err := AggregateBLSSigs(sigs)
	if err != nil {
		return fmt.Errorf("aggregate checkpoint signatures: %w", err)
	}
	aggPub, err := AggregateBLSPubKeys(pubs)
	if err != nil {
		return fmt.Errorf("aggregate checkpoint pubkeys: %w", err)
	}
	c.AggregatedSignature = aggSig
	c.AggregatePublicKey = aggPub
	return nil
}

// VerifyAggregateSignature checks the checkpoint's BLS quorum certificate
// against its own signing message. It returns false, nil if no certificate
// is attached (e.g. a checkpoint loaded before certificates were adopted).
func (c *FinalityCheckpoint) VerifyAggregateSignature() (bool, error) {
	if len(c.AggregatedSignature) == 0 || len(c.AggregatePublicKey) == 0 {
		return false, nil
	}
	return VerifyAggregated(c.AggregatedSignature, c.AggregatePublicKey, c.SigningMessage())
}

// ID returns the checkpoint's content-derived identifier.
func (c *FinalityCheckpoint) ID() string {
	h := sha3.New256()
	var hb [8]byte
	for i := 0; i < 8; i++ {
		hb[i] = byte(c.Height >> (8 * i))
	}
	h.Write(hb[:])
	h.Write([]byte(c.BlockHash))
	h.Write([]byte(c.StateRoot))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// requiredSignatures is the integer-ceiling 67% quorum threshold.
func requiredSignatures(validatorCount uint32) uint32 {
	n := uint64(validatorCount) * QuorumNumerator
	return uint32((n + QuorumDenominator - 1) / QuorumDenominator)
}

// VerifyQuorum reports whether the checkpoint carries at least 67% of
// validator_count signatures.
func (c *FinalityCheckpoint) VerifyQuorum() bool {
	return c.SignatureCount >= requiredSignatures(c.ValidatorCount)
}

// IsValidInterval reports whether height is aligned to CheckpointInterval.
func (c *FinalityCheckpoint) IsValidInterval() bool {
	return c.Height%CheckpointInterval == 0
}

// CheckpointStore holds immutable finality checkpoints keyed by height. It
// is the in-memory counterpart to the persistence binder's checkpoints
// bucket; NewCheckpointStore starts empty and LoadAll rehydrates it from
// checkpoints read from disk.
type CheckpointStore struct {
	mu                    sync.RWMutex
	byHeight              map[uint64]FinalityCheckpoint
	latestCheckpointHeight uint64
}

// NewCheckpointStore returns an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{byHeight: make(map[uint64]FinalityCheckpoint)}
}

// LoadAll seeds the store from previously persisted checkpoints (used on
// node restart with the checkpoints the persistence binder loaded).
func (s *CheckpointStore) LoadAll(checkpoints []FinalityCheckpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range checkpoints {
		s.byHeight[cp.Height] = cp
		if cp.Height > s.latestCheckpointHeight {
			s.latestCheckpointHeight = cp.Height
		}
	}
}

// Store validates and inserts a checkpoint. Checkpoints are immutable once
// stored: re-storing the same height overwrites only if the caller has
// already ensured no commitment was made against the prior value (the
// store itself does not prevent overwrite, matching the underlying KV
// binder's last-write-wins semantics at this layer).
func (s *CheckpointStore) Store(cp FinalityCheckpoint) error {
	if !cp.IsValidInterval() {
		return fmt.Errorf("%w: height %d not aligned to %d", ErrUnalignedHeight, cp.Height, CheckpointInterval)
	}
	if !cp.VerifyQuorum() {
		return fmt.Errorf("%w: %d/%d signatures", ErrInsufficientSignatures, cp.SignatureCount, cp.ValidatorCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHeight[cp.Height] = cp
	if cp.Height > s.latestCheckpointHeight {
		s.latestCheckpointHeight = cp.Height
	}
	return nil
}

// Get returns the checkpoint at height, if any.
func (s *CheckpointStore) Get(height uint64) (FinalityCheckpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.byHeight[height]
	return cp, ok
}

// Latest returns the highest-height stored checkpoint.
func (s *CheckpointStore) Latest() (FinalityCheckpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latestCheckpointHeight == 0 {
		return FinalityCheckpoint{}, false
	}
	cp, ok := s.byHeight[s.latestCheckpointHeight]
	return cp, ok
}

// ValidateBlockAgainstCheckpoint enforces the long-range-attack guarantee:
// no block height may precede the latest checkpoint; a block claiming the
// checkpoint's own height must carry its exact hash; and a block in the band
// between the latest checkpoint and the next checkpoint boundary must chain
// from a parent at or after the latest checkpoint height, so a fork that
// forged its way back before the checkpoint cannot resurface inside the next
// interval either.
func (s *CheckpointStore) ValidateBlockAgainstCheckpoint(blockHeight, parentHeight uint64, blockHash string) error {
	latest, ok := s.Latest()
	if !ok {
		return nil
	}
	if blockHeight < latest.Height {
		return fmt.Errorf("%w: height %d precedes checkpoint %d", ErrLongRangeAttack, blockHeight, latest.Height)
	}
	if blockHeight == latest.Height && blockHash != latest.BlockHash {
		return fmt.Errorf("%w: at height %d", ErrCheckpointMismatch, blockHeight)
	}
	if blockHeight > latest.Height && blockHeight < latest.Height+CheckpointInterval && parentHeight < latest.Height {
		return fmt.Errorf("%w: height %d has parent %d before checkpoint %d", ErrLongRangeAttack, blockHeight, parentHeight, latest.Height)
	}
	return nil
}

// ShouldCreateCheckpoint reports whether height is a new, not-yet-stored
// checkpoint boundary.
func (s *CheckpointStore) ShouldCreateCheckpoint(height uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return height%CheckpointInterval == 0 && height > s.latestCheckpointHeight
}

// All returns every stored checkpoint ordered by ascending height.
func (s *CheckpointStore) All() []FinalityCheckpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FinalityCheckpoint, 0, len(s.byHeight))
	for _, cp := range s.byHeight {
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

// Prune keeps only the keepLast most recent checkpoints, returning the
// number removed. With keepLast >= 1 the latest checkpoint is always kept;
// keepLast == 0 removes every checkpoint.
func (s *CheckpointStore) Prune(keepLast int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.byHeight) <= keepLast {
		return 0
	}
	heights := make([]uint64, 0, len(s.byHeight))
	for h := range s.byHeight {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })

	removed := 0
	for _, h := range heights[keepLast:] {
		delete(s.byHeight, h)
		removed++
	}
	return removed
}

// CheckpointStats summarizes the store for status/diagnostic reporting.
type CheckpointStats struct {
	TotalCheckpoints       int
	LatestCheckpointHeight uint64
	CheckpointInterval     uint64
}

// Stats returns the current store statistics.
func (s *CheckpointStore) Stats() CheckpointStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CheckpointStats{
		TotalCheckpoints:       len(s.byHeight),
		LatestCheckpointHeight: s.latestCheckpointHeight,
		CheckpointInterval:     CheckpointInterval,
	}
}

// BuildStateRoot derives a checkpoint's state_root as the Merkle root of the
// given account-state leaves (typically the ledger's serialized accounts in
// address order), reusing the kept Merkle-tree builder.
func BuildStateRoot(accountLeaves [][]byte) (string, error) {
	if len(accountLeaves) == 0 {
		return Hash{}.Hex(), nil
	}
	tree, err := BuildMerkleTree(accountLeaves)
	if err != nil {
		return "", err
	}
	root := tree[len(tree)-1][0]
	var h Hash
	copy(h[:], root[:])
	return h.Hex(), nil
}

// NewCheckpointFromQuorum assembles a checkpoint from a QuorumTracker's vote
// count, the caller providing the canonical height/hash/state root.
func NewCheckpointFromQuorum(height uint64, blockHash, stateRoot string, validatorCount uint32, qt *QuorumTracker, timestamp int64) FinalityCheckpoint {
	sigCount := uint32(0)
	if qt != nil {
		qt.mu.Lock()
		sigCount = uint32(len(qt.votes))
		qt.mu.Unlock()
	}
	return FinalityCheckpoint{
		Height:         height,
		BlockHash:      blockHash,
		Timestamp:      timestamp,
		ValidatorCount: validatorCount,
		StateRoot:      stateRoot,
		SignatureCount: sigCount,
	}
}
