package core

import (
	"encoding/binary"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/sha3"
)

// ConsensusMessageType enumerates the aBFT protocol's four message kinds.
type ConsensusMessageType uint8

const (
	MsgPrePrepare ConsensusMessageType = iota
	MsgPrepare
	MsgCommit
	MsgViewChange
)

func (t ConsensusMessageType) String() string {
	switch t {
	case MsgPrePrepare:
		return "PrePrepare"
	case MsgPrepare:
		return "Prepare"
	case MsgCommit:
		return "Commit"
	case MsgViewChange:
		return "ViewChange"
	default:
		return "Unknown"
	}
}

// ConsensusProposal is the payload a leader proposes for a given sequence;
// it carries enough of the underlying record set to compute a content
// hash, without this package needing to know about network transport.
type ConsensusProposal struct {
	Height     uint64
	Timestamp  int64
	Data       []byte
	Proposer   Address
	ParentHash string
}

// Hash returns the proposal's content digest, reusing the record-hashing
// primitive so consensus and ledger content-addressing share one scheme.
func (p *ConsensusProposal) Hash() Hash {
	h := Hash{}
	sh := sha3.New256()
	var hb [8]byte
	binary.BigEndian.PutUint64(hb[:], p.Height)
	sh.Write(hb[:])
	binary.BigEndian.PutUint64(hb[:], uint64(p.Timestamp))
	sh.Write(hb[:])
	sh.Write(p.Data)
	sh.Write([]byte(p.Proposer))
	sh.Write([]byte(p.ParentHash))
	copy(h[:], sh.Sum(nil))
	return h
}

// ConsensusMessage is a MAC-authenticated protocol message.
type ConsensusMessage struct {
	Type      ConsensusMessageType
	View      uint64
	Sequence  uint64
	BlockHash string
	Sender    Address
	Timestamp int64
	MAC       []byte
}

// NewConsensusMessage constructs and MACs a message under sharedSecret. An
// empty secret is accepted (matching the unauthenticated compatibility
// mode the reference protocol allows), but production deployments must
// supply one.
func NewConsensusMessage(msgType ConsensusMessageType, view, sequence uint64, blockHash string, sender Address, sharedSecret []byte, timestamp int64) ConsensusMessage {
	msg := ConsensusMessage{
		Type:      msgType,
		View:      view,
		Sequence:  sequence,
		BlockHash: blockHash,
		Sender:    sender,
		Timestamp: timestamp,
	}
	msg.MAC = msg.computeMAC(sharedSecret)
	return msg
}

func (m *ConsensusMessage) fields() [][]byte {
	var viewBuf, seqBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(viewBuf[:], m.View)
	binary.BigEndian.PutUint64(seqBuf[:], m.Sequence)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(m.Timestamp))
	return [][]byte{
		{byte(m.Type)},
		viewBuf[:],
		seqBuf[:],
		[]byte(m.BlockHash),
		[]byte(m.Sender),
		tsBuf[:],
	}
}

func (m *ConsensusMessage) computeMAC(secret []byte) []byte {
	return ComputeMAC(secret, m.fields()...)
}

// VerifyMAC checks the message's MAC under sharedSecret.
func (m *ConsensusMessage) VerifyMAC(sharedSecret []byte) bool {
	return VerifyMAC(sharedSecret, m.MAC, m.fields()...)
}

// ValidatorState is a replica's local consensus phase.
type ValidatorState uint8

const (
	StateNormal ValidatorState = iota
	StateViewChanging
	StateLocked
)

func (s ValidatorState) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateViewChanging:
		return "ViewChanging"
	case StateLocked:
		return "Locked"
	default:
		return "Unknown"
	}
}

const maxFinalizedBlocks = 10_000

// ABFTConsensus runs one replica's view of the Pre-prepare/Prepare/Commit
// state machine. All mutating methods take the instance's lock, so a
// single ABFTConsensus may be driven concurrently by a network adapter's
// message-dispatch goroutines.
type ABFTConsensus struct {
	mu sync.Mutex

	ValidatorID     Address
	TotalValidators int
	FMaxFaulty      int
	SharedSecret    []byte

	view     uint64
	sequence uint64
	state    ValidatorState

	lockedProposal *ConsensusProposal
	lockedView     uint64

	prePrepareMessages map[uint64]ConsensusMessage
	prepareVotes       map[uint64][]ConsensusMessage
	commitVotes        map[uint64][]ConsensusMessage

	finalized         []ConsensusProposal
	finalityTimestamp int64

	blockTimeoutMS      uint64
	viewChangeTimeoutMS uint64

	blocksFinalized uint64
	viewChanges     uint64

	logger *log.Logger
}

// NewABFTConsensus constructs a replica for validatorID among
// totalValidators peers.
func NewABFTConsensus(validatorID Address, totalValidators int, sharedSecret []byte, logger *log.Logger) *ABFTConsensus {
	if logger == nil {
		logger = log.New()
	}
	return &ABFTConsensus{
		ValidatorID:         validatorID,
		TotalValidators:     totalValidators,
		FMaxFaulty:          (totalValidators - 1) / 3,
		SharedSecret:        sharedSecret,
		prePrepareMessages:  make(map[uint64]ConsensusMessage),
		prepareVotes:        make(map[uint64][]ConsensusMessage),
		commitVotes:         make(map[uint64][]ConsensusMessage),
		blockTimeoutMS:      3000,
		viewChangeTimeoutMS: 5000,
		logger:              logger,
	}
}

// QuorumThreshold is 2*f_max_faulty + 1, the number of matching votes
// needed to advance a phase.
func (c *ABFTConsensus) QuorumThreshold() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quorumThresholdLocked()
}

func (c *ABFTConsensus) quorumThresholdLocked() int {
	return 2*c.FMaxFaulty + 1
}

// PrePrepare is called by the leader to propose proposal for the next
// sequence number, locking this replica onto it.
func (c *ABFTConsensus) PrePrepare(proposal ConsensusProposal, now int64) (ConsensusMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateViewChanging {
		return ConsensusMessage{}, fmt.Errorf("%w: view change in progress", ErrWrongView)
	}

	c.sequence++
	blockHash := proposal.Hash().Hex()

	msg := NewConsensusMessage(MsgPrePrepare, c.view, c.sequence, blockHash, c.ValidatorID, c.SharedSecret, now)
	if _, exists := c.prePrepareMessages[c.sequence]; exists {
		return ConsensusMessage{}, ErrDoublePrePrepare
	}
	c.prePrepareMessages[c.sequence] = msg

	c.lockedProposal = &proposal
	c.lockedView = c.view
	c.state = StateLocked

	return msg, nil
}

// Prepare records a validated Prepare vote from a peer.
func (c *ABFTConsensus) Prepare(msg ConsensusMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !msg.VerifyMAC(c.SharedSecret) {
		return ErrMacInvalid
	}
	if msg.View != c.view {
		return fmt.Errorf("%w: %d vs %d", ErrWrongView, msg.View, c.view)
	}
	c.prepareVotes[msg.Sequence] = append(c.prepareVotes[msg.Sequence], msg)
	return nil
}

// CanCommit reports whether sequence has accumulated enough Prepare votes
// to enter the Commit phase.
func (c *ABFTConsensus) CanCommit(sequence uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prepareVotes[sequence]) >= c.quorumThresholdLocked()
}

// Commit records a Commit vote and finalizes the locked proposal once
// quorum is reached, returning true iff finalization occurred on this
// call.
func (c *ABFTConsensus) Commit(msg ConsensusMessage, now int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !msg.VerifyMAC(c.SharedSecret) {
		return false, ErrMacInvalid
	}

	c.commitVotes[msg.Sequence] = append(c.commitVotes[msg.Sequence], msg)
	if len(c.commitVotes[msg.Sequence]) >= c.quorumThresholdLocked() {
		return c.finalizeLocked(msg.Sequence, now)
	}
	return false, nil
}

func (c *ABFTConsensus) finalizeLocked(sequence uint64, now int64) (bool, error) {
	if c.lockedProposal == nil {
		return false, ErrNoLockedBlock
	}
	c.finalized = append(c.finalized, *c.lockedProposal)
	if len(c.finalized) > maxFinalizedBlocks {
		c.finalized = c.finalized[len(c.finalized)-maxFinalizedBlocks:]
	}
	c.blocksFinalized++
	c.finalityTimestamp = now

	delete(c.prepareVotes, sequence)
	delete(c.commitVotes, sequence)

	c.state = StateNormal
	c.lockedProposal = nil
	c.logger.Infof("consensus: finalized sequence %d in view %d", sequence, c.view)
	return true, nil
}

// InitiateViewChange begins a leader replacement round.
func (c *ABFTConsensus) InitiateViewChange(now int64) ConsensusMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateViewChanging
	c.view++
	c.viewChanges++

	return NewConsensusMessage(MsgViewChange, c.view, c.sequence, "", c.ValidatorID, c.SharedSecret, now)
}

// CompleteViewChange adopts newView and returns the replica to Normal
// operation, discarding in-flight votes from the abandoned view.
func (c *ABFTConsensus) CompleteViewChange(newView uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if newView < c.view {
		return fmt.Errorf("%w: %d < %d", ErrInvalidViewChange, newView, c.view)
	}
	c.view = newView
	c.state = StateNormal
	c.prepareVotes = make(map[uint64][]ConsensusMessage)
	c.commitVotes = make(map[uint64][]ConsensusMessage)
	return nil
}

// Leader returns the round-robin leader address for the given view. The
// caller supplies the ordered validator set since this package has no
// registry of its own.
func Leader(view uint64, validators []Address) Address {
	if len(validators) == 0 {
		return ""
	}
	return validators[int(view)%len(validators)]
}

// IsLeader reports whether this replica is the current view's leader.
func (c *ABFTConsensus) IsLeader(validators []Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Leader(c.view, validators) == c.ValidatorID
}

// IsByzantineSafe reports whether the standard BFT safety bound (3f <
// n) holds for the replica's current configuration.
func (c *ABFTConsensus) IsByzantineSafe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return 3*c.FMaxFaulty < c.TotalValidators
}

// CalculateFinalityTimeMS returns one third of the block timeout: the
// per-phase budget when all three phases complete within one block timeout.
func (c *ABFTConsensus) CalculateFinalityTimeMS() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockTimeoutMS / 3
}

// ConsensusStats is a diagnostic snapshot of a replica's progress.
type ConsensusStats struct {
	CurrentView          uint64
	CurrentSequence      uint64
	BlocksFinalized      uint64
	ViewChanges          uint64
	ConsensusState       string
	TotalValidators      int
	MaxFaultyValidators  int
	QuorumThreshold      int
}

// Stats reports the replica's current state.
func (c *ABFTConsensus) Stats() ConsensusStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConsensusStats{
		CurrentView:         c.view,
		CurrentSequence:     c.sequence,
		BlocksFinalized:     c.blocksFinalized,
		ViewChanges:         c.viewChanges,
		ConsensusState:      c.state.String(),
		TotalValidators:     c.TotalValidators,
		MaxFaultyValidators: c.FMaxFaulty,
		QuorumThreshold:     c.quorumThresholdLocked(),
	}
}

// LastFinalized returns the most recently finalized proposal, if any.
func (c *ABFTConsensus) LastFinalized() (ConsensusProposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.finalized) == 0 {
		return ConsensusProposal{}, false
	}
	return c.finalized[len(c.finalized)-1], true
}

// View returns the replica's current view number.
func (c *ABFTConsensus) View() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// State returns the replica's current phase.
func (c *ABFTConsensus) State() ValidatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
