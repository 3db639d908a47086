package core

import (
	"errors"
	"testing"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

func TestRequiredSignaturesCeiling(t *testing.T) {
	cases := []struct {
		n    uint32
		want uint32
	}{
		{3, 3}, {4, 3}, {7, 5}, {10, 7}, {100, 67},
	}
	for _, c := range cases {
		if got := requiredSignatures(c.n); got != c.want {
			t.Errorf("requiredSignatures(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestVerifyQuorum(t *testing.T) {
	cp := FinalityCheckpoint{ValidatorCount: 7, SignatureCount: 5}
	if !cp.VerifyQuorum() {
		t.Fatal("5/7 signatures should satisfy 67% quorum")
	}
	cp.SignatureCount = 4
	if cp.VerifyQuorum() {
		t.Fatal("4/7 signatures should not satisfy 67% quorum")
	}
}

func TestIsValidInterval(t *testing.T) {
	cp := FinalityCheckpoint{Height: 2000}
	if !cp.IsValidInterval() {
		t.Fatal("height 2000 should be aligned to interval 1000")
	}
	cp.Height = 2500
	if cp.IsValidInterval() {
		t.Fatal("height 2500 should not be aligned to interval 1000")
	}
}

func TestCheckpointStoreRejectsUnalignedHeight(t *testing.T) {
	s := NewCheckpointStore()
	cp := FinalityCheckpoint{Height: 1500, ValidatorCount: 4, SignatureCount: 4}
	if err := s.Store(cp); !errors.Is(err, ErrUnalignedHeight) {
		t.Fatalf("expected ErrUnalignedHeight, got %v", err)
	}
}

func TestCheckpointStoreRejectsInsufficientSignatures(t *testing.T) {
	s := NewCheckpointStore()
	cp := FinalityCheckpoint{Height: 1000, ValidatorCount: 7, SignatureCount: 1}
	if err := s.Store(cp); !errors.Is(err, ErrInsufficientSignatures) {
		t.Fatalf("expected ErrInsufficientSignatures, got %v", err)
	}
}

func TestCheckpointStoreAcceptsValidCheckpoint(t *testing.T) {
	s := NewCheckpointStore()
	cp := FinalityCheckpoint{Height: 1000, ValidatorCount: 7, SignatureCount: 5, BlockHash: "hash1000"}
	if err := s.Store(cp); err != nil {
		t.Fatalf("expected valid checkpoint to store, got %v", err)
	}
	latest, ok := s.Latest()
	if !ok || latest.Height != 1000 {
		t.Fatal("expected latest checkpoint at height 1000")
	}
}

// TestScenarioS4LongRangeAttack: a checkpoint at height 1000 rejects any
// block at height 500.
func TestScenarioS4LongRangeAttack(t *testing.T) {
	s := NewCheckpointStore()
	cp := FinalityCheckpoint{Height: 1000, ValidatorCount: 7, SignatureCount: 5, BlockHash: "h_1000"}
	if err := s.Store(cp); err != nil {
		t.Fatalf("store checkpoint: %v", err)
	}

	if err := s.ValidateBlockAgainstCheckpoint(500, 499, "anything"); !errors.Is(err, ErrLongRangeAttack) {
		t.Fatalf("expected ErrLongRangeAttack, got %v", err)
	}
	if err := s.ValidateBlockAgainstCheckpoint(1000, 999, "different-hash"); !errors.Is(err, ErrCheckpointMismatch) {
		t.Fatalf("expected ErrCheckpointMismatch, got %v", err)
	}
	if err := s.ValidateBlockAgainstCheckpoint(1000, 999, "h_1000"); err != nil {
		t.Fatalf("expected matching hash at checkpoint height to pass, got %v", err)
	}
	if err := s.ValidateBlockAgainstCheckpoint(1500, 1499, "anything"); err != nil {
		t.Fatalf("expected block beyond checkpoint height to pass, got %v", err)
	}

	// A block inside the next checkpoint interval whose parent chains from
	// before the checkpoint height is a long-range fork resurfacing one
	// interval late, not a legitimate continuation.
	if err := s.ValidateBlockAgainstCheckpoint(1500, 900, "anything"); !errors.Is(err, ErrLongRangeAttack) {
		t.Fatalf("expected ErrLongRangeAttack for a parent before the checkpoint, got %v", err)
	}
	if err := s.ValidateBlockAgainstCheckpoint(1999, 1000, "anything"); err != nil {
		t.Fatalf("expected a parent at the checkpoint height to pass, got %v", err)
	}
}

func TestCheckpointStorePrune(t *testing.T) {
	s := NewCheckpointStore()
	for h := uint64(1000); h <= 5000; h += 1000 {
		cp := FinalityCheckpoint{Height: h, ValidatorCount: 4, SignatureCount: 3}
		if err := s.Store(cp); err != nil {
			t.Fatalf("store %d: %v", h, err)
		}
	}
	removed := s.Prune(2)
	if removed != 3 {
		t.Fatalf("Prune(2) removed %d, want 3", removed)
	}
	if len(s.All()) != 2 {
		t.Fatalf("expected 2 checkpoints remaining, got %d", len(s.All()))
	}
	latest, _ := s.Latest()
	if latest.Height != 5000 {
		t.Fatal("Prune must never remove the latest checkpoint")
	}
}

func TestAttachAndVerifyAggregateSignature(t *testing.T) {
	var sk1, sk2 bls.SecretKey
	sk1.SetByCSPRNG()
	sk2.SetByCSPRNG()

	cp := FinalityCheckpoint{Height: 1000, BlockHash: "h_1000", StateRoot: "root_1000"}
	msg := cp.SigningMessage()

	sig1 := sk1.SignByte(msg)
	sig2 := sk2.SignByte(msg)
	pub1 := sk1.GetPublicKey()
	pub2 := sk2.GetPublicKey()

	err := cp.AttachAggregateSignature([][]byte{sig1.Serialize(), sig2.Serialize()}, [][]byte{pub1.Serialize(), pub2.Serialize()})
	if err != nil {
		t.Fatalf("attach aggregate signature: %v", err)
	}

	ok, err := cp.VerifyAggregateSignature()
	if err != nil {
		t.Fatalf("verify aggregate signature: %v", err)
	}
	if !ok {
		t.Fatal("expected aggregated signature to verify")
	}

	cp.StateRoot = "tampered"
	ok, err = cp.VerifyAggregateSignature()
	if err != nil {
		t.Fatalf("verify aggregate signature after tamper: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail after the signed message changed")
	}
}

func TestVerifyAggregateSignatureAbsent(t *testing.T) {
	cp := FinalityCheckpoint{Height: 1000, BlockHash: "h"}
	ok, err := cp.VerifyAggregateSignature()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected false for a checkpoint with no attached certificate")
	}
}

func TestBuildStateRootEmptyLeaves(t *testing.T) {
	root, err := BuildStateRoot(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root != (Hash{}).Hex() {
		t.Fatalf("expected zero hash for empty leaves, got %s", root)
	}
}

func TestBuildStateRootNonEmpty(t *testing.T) {
	root, err := BuildStateRoot([][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root == (Hash{}).Hex() {
		t.Fatal("expected a non-zero state root for non-empty leaves")
	}
}

func TestNewCheckpointFromQuorum(t *testing.T) {
	qt := NewQuorumTracker(7, 5)
	qt.AddVote(Address("v1"))
	qt.AddVote(Address("v2"))
	qt.AddVote(Address("v1")) // duplicate, must not double count

	cp := NewCheckpointFromQuorum(1000, "h_1000", "root", 7, qt, 1700000000)
	if cp.SignatureCount != 2 {
		t.Fatalf("SignatureCount = %d, want 2 (duplicate vote must not count twice)", cp.SignatureCount)
	}
}
