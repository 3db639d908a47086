package core

import (
	"container/list"
	"math/big"
	"sync"
	"time"
)

// mempoolExpiry is how long an unconfirmed entry may sit in the pool before
// CleanupExpired reclaims it.
const mempoolExpiry = time.Hour

// MempoolEntry wraps a pending record with its admission bookkeeping.
type MempoolEntry struct {
	Record    Record
	Fee       *big.Int
	Timestamp int64
	Nonce     uint64
}

// Mempool is a FIFO-ordered, fee-evicting holding area for records awaiting
// inclusion. It is safe for concurrent use.
type Mempool struct {
	mu sync.Mutex

	maxSize int

	entries map[string]*list.Element // record id -> queue element
	queue   *list.List               // of string record ids, oldest first
	nonces  map[Address]uint64
}

// NewMempool returns an empty pool bounded at maxSize entries.
func NewMempool(maxSize int) *Mempool {
	return &Mempool{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		queue:   list.New(),
		nonces:  make(map[Address]uint64),
	}
}

// Add admits r at the given fee, evicting the lowest-fee entry first if the
// pool is full. It assigns the next per-account nonce and returns the
// record's id.
func (m *Mempool) Add(chainID NetworkID, r Record, fee *big.Int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := r.RecordID(chainID).Hex()
	if _, exists := m.entries[id]; exists {
		return "", ErrDuplicateRecord
	}

	if len(m.entries) >= m.maxSize {
		if err := m.evictLowestFeeLocked(); err != nil {
			return "", err
		}
	}

	nonce := m.nonces[r.Account] + 1
	entry := &MempoolEntry{
		Record:    r,
		Fee:       new(big.Int).Set(amountOrZero(fee)),
		Timestamp: nowUnix(),
		Nonce:     nonce,
	}
	el := m.queue.PushBack(entryNode{id: id, entry: entry})
	m.entries[id] = el
	m.nonces[r.Account] = nonce
	return id, nil
}

// entryNode is the concrete value stored in the queue's list.Element so
// Remove can find both the id (for map deletion) and the entry (for fee
// comparisons) without a second lookup.
type entryNode struct {
	id    string
	entry *MempoolEntry
}

// Remove evicts the entry with the given id, if present.
func (m *Mempool) Remove(id string) (*MempoolEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id)
}

func (m *Mempool) removeLocked(id string) (*MempoolEntry, bool) {
	el, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	m.queue.Remove(el)
	delete(m.entries, id)
	return el.Value.(entryNode).entry, true
}

// Get returns the entry with the given id, if present.
func (m *Mempool) Get(id string) (*MempoolEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return el.Value.(entryNode).entry, true
}

// GetNext returns up to count entries in FIFO admission order, for block
// proposal assembly.
func (m *Mempool) GetNext(count int) []MempoolEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MempoolEntry, 0, count)
	for el := m.queue.Front(); el != nil && len(out) < count; el = el.Next() {
		out = append(out, *el.Value.(entryNode).entry)
	}
	return out
}

// HasNonce reports whether an entry for account at the given nonce is
// already pending.
func (m *Mempool) HasNonce(account Address, nonce uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for el := m.queue.Front(); el != nil; el = el.Next() {
		n := el.Value.(entryNode)
		if n.entry.Record.Account == account && n.entry.Nonce == nonce {
			return true
		}
	}
	return false
}

// GetNonce returns the highest nonce assigned to account so far, or 0.
func (m *Mempool) GetNonce(account Address) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonces[account]
}

func (m *Mempool) evictLowestFeeLocked() error {
	if m.queue.Len() == 0 {
		return ErrMempoolEmpty
	}
	var lowestID string
	var lowestFee *big.Int
	for el := m.queue.Front(); el != nil; el = el.Next() {
		n := el.Value.(entryNode)
		if lowestFee == nil || n.entry.Fee.Cmp(lowestFee) < 0 {
			lowestFee = n.entry.Fee
			lowestID = n.id
		}
	}
	m.removeLocked(lowestID)
	return nil
}

// CleanupExpired removes every entry older than mempoolExpiry, returning the
// number removed.
func (m *Mempool) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := nowUnix()
	var expired []string
	for el := m.queue.Front(); el != nil; el = el.Next() {
		n := el.Value.(entryNode)
		if now-n.entry.Timestamp > int64(mempoolExpiry.Seconds()) {
			expired = append(expired, n.id)
		}
	}
	for _, id := range expired {
		m.removeLocked(id)
	}
	return len(expired)
}

// MempoolStats summarizes pool occupancy for diagnostics.
type MempoolStats struct {
	PendingCount int
	TotalFees    *big.Int
	AvgFee       *big.Int
}

// Stats computes current pool statistics.
func (m *Mempool) Stats() MempoolStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := big.NewInt(0)
	count := 0
	for el := m.queue.Front(); el != nil; el = el.Next() {
		n := el.Value.(entryNode)
		total.Add(total, n.entry.Fee)
		count++
	}
	avg := big.NewInt(0)
	if count > 0 {
		avg = new(big.Int).Div(total, big.NewInt(int64(count)))
	}
	return MempoolStats{PendingCount: count, TotalFees: total, AvgFee: avg}
}

// Len returns the current number of pending entries.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Clear empties the pool.
func (m *Mempool) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*list.Element)
	m.queue = list.New()
	m.nonces = make(map[Address]uint64)
}
