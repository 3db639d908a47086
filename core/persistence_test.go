package core

import (
	"math/big"
	"path/filepath"
	"testing"
)

func openTestBinder(t *testing.T) *PersistenceBinder {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	binder, err := OpenPersistenceBinder(path)
	if err != nil {
		t.Fatalf("open persistence binder: %v", err)
	}
	t.Cleanup(func() { _ = binder.Close() })
	return binder
}

// TestScenarioP7LedgerRoundTrip: serializing the ledger, loading it back,
// and restoring produces the same ledger byte-for-byte in its observable
// fields.
func TestScenarioP7LedgerRoundTrip(t *testing.T) {
	binder := openTestBinder(t)

	l := NewLedger(LedgerConfig{ChainID: NetworkMainnet, TotalSupply: big.NewInt(1_000_000)}, nil)
	signer := newTestSigner(t, NetworkMainnet)
	r := &Record{Account: signer.addr, Previous: ZeroRecordID, Kind: KindMint, Amount: big.NewInt(500), Link: "REWARD:0:1", Timestamp: 1700000000}
	mineAndSign(t, r, l.cfg.ChainID, signer)
	if _, err := l.ProcessBlock(r); err != nil {
		t.Fatalf("process block: %v", err)
	}

	snap := l.Snapshot()
	if err := binder.CommitLedgerSnapshot(snap); err != nil {
		t.Fatalf("commit snapshot: %v", err)
	}

	loaded, err := binder.LoadLedgerSnapshot()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	restored := NewLedger(LedgerConfig{ChainID: NetworkMainnet, TotalSupply: big.NewInt(1_000_000)}, nil)
	restored.Restore(loaded)

	origAcc, ok := l.GetAccount(signer.addr)
	if !ok {
		t.Fatal("expected original account to exist")
	}
	restoredAcc, ok := restored.GetAccount(signer.addr)
	if !ok {
		t.Fatal("expected restored account to exist")
	}
	if origAcc.Balance.Cmp(restoredAcc.Balance) != 0 || origAcc.Head != restoredAcc.Head || origAcc.BlockCount != restoredAcc.BlockCount {
		t.Fatalf("round trip mismatch: %+v != %+v", origAcc, restoredAcc)
	}
	if restored.RemainingSupply().Cmp(l.RemainingSupply()) != 0 {
		t.Fatal("remaining supply mismatch after round trip")
	}
}

func TestPersistenceCheckpointRoundTrip(t *testing.T) {
	binder := openTestBinder(t)
	cp := FinalityCheckpoint{Height: 1000, BlockHash: "h1000", ValidatorCount: 7, SignatureCount: 5, StateRoot: "root1"}
	if err := binder.CommitCheckpoint(cp); err != nil {
		t.Fatalf("commit checkpoint: %v", err)
	}
	loaded, err := binder.LoadCheckpoints()
	if err != nil {
		t.Fatalf("load checkpoints: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Height != 1000 || loaded[0].BlockHash != "h1000" {
		t.Fatalf("unexpected loaded checkpoints: %+v", loaded)
	}
}

func TestPersistenceFaucetCooldownRoundTrip(t *testing.T) {
	binder := openTestBinder(t)
	addr := Address("UATfaucetuser001")
	if _, ok := binder.FaucetCooldown(addr); ok {
		t.Fatal("expected no cooldown before one is set")
	}
	if err := binder.SetFaucetCooldown(addr, 1700003600); err != nil {
		t.Fatalf("set cooldown: %v", err)
	}
	until, ok := binder.FaucetCooldown(addr)
	if !ok || until != 1700003600 {
		t.Fatalf("FaucetCooldown = %d, %v, want 1700003600, true", until, ok)
	}
}

func TestPersistenceKnownPeersRoundTrip(t *testing.T) {
	binder := openTestBinder(t)
	peer := KnownPeer{Address: "10.0.0.1:9000", LastSeen: 1700000000, Reputation: 10}
	if err := binder.UpsertKnownPeer(peer); err != nil {
		t.Fatalf("upsert peer: %v", err)
	}
	peers, err := binder.KnownPeers()
	if err != nil {
		t.Fatalf("load peers: %v", err)
	}
	if len(peers) != 1 || peers[0].Address != peer.Address || peers[0].Reputation != 10 {
		t.Fatalf("unexpected loaded peers: %+v", peers)
	}

	peer.Reputation = 20
	if err := binder.UpsertKnownPeer(peer); err != nil {
		t.Fatalf("update peer: %v", err)
	}
	peers, _ = binder.KnownPeers()
	if len(peers) != 1 || peers[0].Reputation != 20 {
		t.Fatalf("expected the upsert to update in place, got %+v", peers)
	}
}
