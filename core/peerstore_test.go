package core

import "testing"

func TestPeerStoreSeenAndGet(t *testing.T) {
	s, err := NewPeerStore(nil)
	if err != nil {
		t.Fatalf("new peer store: %v", err)
	}
	if err := s.Seen("10.0.0.1:9000", 1700000000); err != nil {
		t.Fatalf("seen: %v", err)
	}
	p, ok := s.Get("10.0.0.1:9000")
	if !ok || p.LastSeen != 1700000000 {
		t.Fatalf("unexpected peer state: %+v, %v", p, ok)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestPeerStoreReputationClamped(t *testing.T) {
	s, _ := NewPeerStore(nil)
	for i := 0; i < 20; i++ {
		if err := s.AdjustReputation("peer1", 20); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	p, _ := s.Get("peer1")
	if p.Reputation != 100 {
		t.Fatalf("reputation = %d, want clamped at 100", p.Reputation)
	}

	for i := 0; i < 20; i++ {
		if err := s.AdjustReputation("peer1", -20); err != nil {
			t.Fatalf("adjust: %v", err)
		}
	}
	p, _ = s.Get("peer1")
	if p.Reputation != -100 {
		t.Fatalf("reputation = %d, want clamped at -100", p.Reputation)
	}
}

func TestPeerStoreReputable(t *testing.T) {
	s, _ := NewPeerStore(nil)
	s.Seen("good", 1700000000)
	s.Seen("bad", 1700000000)
	s.AdjustReputation("bad", -50)

	reputable := s.Reputable()
	if len(reputable) != 1 || reputable[0].Address != "good" {
		t.Fatalf("expected only the non-negative-reputation peer, got %+v", reputable)
	}
}

func TestPeerStorePersistsThroughBinder(t *testing.T) {
	binder := openTestBinder(t)
	s1, err := NewPeerStore(binder)
	if err != nil {
		t.Fatalf("new peer store: %v", err)
	}
	if err := s1.Seen("10.0.0.1:9000", 1700000000); err != nil {
		t.Fatalf("seen: %v", err)
	}

	s2, err := NewPeerStore(binder)
	if err != nil {
		t.Fatalf("reload peer store: %v", err)
	}
	if s2.Len() != 1 {
		t.Fatalf("expected the reloaded store to see the persisted peer, Len() = %d", s2.Len())
	}
}
