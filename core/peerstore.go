package core

import "sync"

// maxPeerReputation and minPeerReputation bound a peer's score so repeated
// good or bad behavior cannot push it unboundedly in either direction.
const (
	maxPeerReputation = 100
	minPeerReputation = -100
)

// PeerStore is the node's in-memory view of known network contacts,
// durably backed by a PersistenceBinder so restarts don't force a fresh
// discovery crawl.
type PeerStore struct {
	mu     sync.RWMutex
	binder *PersistenceBinder
	peers  map[string]KnownPeer
}

// NewPeerStore constructs a store, loading any peers already persisted in
// binder (binder may be nil for an in-memory-only store, e.g. in tests).
func NewPeerStore(binder *PersistenceBinder) (*PeerStore, error) {
	s := &PeerStore{binder: binder, peers: make(map[string]KnownPeer)}
	if binder == nil {
		return s, nil
	}
	loaded, err := binder.KnownPeers()
	if err != nil {
		return nil, err
	}
	for _, p := range loaded {
		s.peers[p.Address] = p
	}
	return s, nil
}

// Seen records or refreshes a peer's last-seen timestamp.
func (s *PeerStore) Seen(address string, now int64) error {
	s.mu.Lock()
	p, ok := s.peers[address]
	if !ok {
		p = KnownPeer{Address: address}
	}
	p.LastSeen = now
	s.peers[address] = p
	s.mu.Unlock()
	return s.persist(p)
}

// AdjustReputation bumps a peer's reputation by delta, clamped to
// [minPeerReputation, maxPeerReputation].
func (s *PeerStore) AdjustReputation(address string, delta int) error {
	s.mu.Lock()
	p, ok := s.peers[address]
	if !ok {
		p = KnownPeer{Address: address}
	}
	p.Reputation += delta
	if p.Reputation > maxPeerReputation {
		p.Reputation = maxPeerReputation
	}
	if p.Reputation < minPeerReputation {
		p.Reputation = minPeerReputation
	}
	s.peers[address] = p
	s.mu.Unlock()
	return s.persist(p)
}

func (s *PeerStore) persist(p KnownPeer) error {
	if s.binder == nil {
		return nil
	}
	return s.binder.UpsertKnownPeer(p)
}

// Get returns a known peer by address.
func (s *PeerStore) Get(address string) (KnownPeer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[address]
	return p, ok
}

// All returns every known peer, unordered.
func (s *PeerStore) All() []KnownPeer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KnownPeer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

// Reputable returns every known peer whose reputation is non-negative,
// suitable for preferential dialing.
func (s *PeerStore) Reputable() []KnownPeer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KnownPeer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.Reputation >= 0 {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of known peers.
func (s *PeerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
