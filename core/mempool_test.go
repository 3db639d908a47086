package core

import (
	"math/big"
	"testing"
	"time"
)

func sampleMempoolRecord(account Address, nonce int64) Record {
	return Record{
		Account:   account,
		Previous:  ZeroRecordID,
		Kind:      KindSend,
		Amount:    big.NewInt(1),
		Link:      "somewhere",
		Timestamp: nonce,
	}
}

func TestMempoolAddAndGet(t *testing.T) {
	m := NewMempool(10)
	r := sampleMempoolRecord("addr1", 1)
	id, err := m.Add(NetworkMainnet, r, big.NewInt(100))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	entry, ok := m.Get(id)
	if !ok {
		t.Fatal("expected entry to be retrievable after add")
	}
	if entry.Nonce != 1 {
		t.Fatalf("first entry for a fresh account should get nonce 1, got %d", entry.Nonce)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}

func TestMempoolRejectsDuplicate(t *testing.T) {
	m := NewMempool(10)
	r := sampleMempoolRecord("addr1", 1)
	if _, err := m.Add(NetworkMainnet, r, big.NewInt(100)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := m.Add(NetworkMainnet, r, big.NewInt(100)); err != ErrDuplicateRecord {
		t.Fatalf("expected ErrDuplicateRecord on resubmission, got %v", err)
	}
}

func TestMempoolEvictsLowestFeeWhenFull(t *testing.T) {
	m := NewMempool(2)
	lowID, err := m.Add(NetworkMainnet, sampleMempoolRecord("low", 1), big.NewInt(10))
	if err != nil {
		t.Fatalf("add low: %v", err)
	}
	if _, err := m.Add(NetworkMainnet, sampleMempoolRecord("high", 1), big.NewInt(1000)); err != nil {
		t.Fatalf("add high: %v", err)
	}
	// Pool is now full at 2; adding a third must evict the lowest fee entry.
	if _, err := m.Add(NetworkMainnet, sampleMempoolRecord("mid", 1), big.NewInt(500)); err != nil {
		t.Fatalf("add mid: %v", err)
	}
	if _, ok := m.Get(lowID); ok {
		t.Fatal("expected the lowest-fee entry to have been evicted")
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (capacity enforced)", m.Len())
	}
}

func TestMempoolNonceAssignment(t *testing.T) {
	m := NewMempool(10)
	if _, err := m.Add(NetworkMainnet, sampleMempoolRecord("addr1", 1), big.NewInt(5)); err != nil {
		t.Fatalf("add 1: %v", err)
	}
	if _, err := m.Add(NetworkMainnet, sampleMempoolRecord("addr1", 2), big.NewInt(5)); err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if n := m.GetNonce("addr1"); n != 2 {
		t.Fatalf("GetNonce = %d, want 2", n)
	}
	if !m.HasNonce("addr1", 1) || !m.HasNonce("addr1", 2) {
		t.Fatal("expected both assigned nonces to be present")
	}
	if m.HasNonce("addr1", 3) {
		t.Fatal("unassigned nonce should not be reported as present")
	}
}

func TestMempoolGetNextFIFOOrder(t *testing.T) {
	m := NewMempool(10)
	idA, _ := m.Add(NetworkMainnet, sampleMempoolRecord("a", 1), big.NewInt(5))
	idB, _ := m.Add(NetworkMainnet, sampleMempoolRecord("b", 1), big.NewInt(5))

	next := m.GetNext(10)
	if len(next) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(next))
	}
	gotA := next[0].Record.RecordID(NetworkMainnet).Hex()
	gotB := next[1].Record.RecordID(NetworkMainnet).Hex()
	if gotA != idA || gotB != idB {
		t.Fatal("expected GetNext to preserve FIFO admission order")
	}
}

func TestMempoolCleanupExpired(t *testing.T) {
	m := NewMempool(10)
	if _, err := m.Add(NetworkMainnet, sampleMempoolRecord("addr1", 1), big.NewInt(5)); err != nil {
		t.Fatalf("add: %v", err)
	}

	original := nowUnix
	defer func() { nowUnix = original }()
	nowUnix = func() int64 { return time.Now().Unix() + int64(2*time.Hour.Seconds()) }

	removed := m.CleanupExpired()
	if removed != 1 {
		t.Fatalf("CleanupExpired removed %d, want 1", removed)
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after cleanup, want 0", m.Len())
	}
}

func TestMempoolStats(t *testing.T) {
	m := NewMempool(10)
	m.Add(NetworkMainnet, sampleMempoolRecord("a", 1), big.NewInt(100))
	m.Add(NetworkMainnet, sampleMempoolRecord("b", 1), big.NewInt(200))

	stats := m.Stats()
	if stats.PendingCount != 2 {
		t.Fatalf("PendingCount = %d, want 2", stats.PendingCount)
	}
	if stats.TotalFees.Int64() != 300 {
		t.Fatalf("TotalFees = %s, want 300", stats.TotalFees)
	}
	if stats.AvgFee.Int64() != 150 {
		t.Fatalf("AvgFee = %s, want 150", stats.AvgFee)
	}
}

func TestMempoolClear(t *testing.T) {
	m := NewMempool(10)
	m.Add(NetworkMainnet, sampleMempoolRecord("a", 1), big.NewInt(5))
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", m.Len())
	}
	if m.GetNonce("a") != 0 {
		t.Fatal("Clear should reset nonce tracking")
	}
}
