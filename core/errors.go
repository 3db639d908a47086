package core

import "errors"

// Validation failures surfaced by Block.Verify and Ledger.ProcessBlock.
var (
	ErrInvalidWork          = errors.New("invalid work: insufficient leading zero bits")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrAuthorizationMismatch = errors.New("signer does not match account")
	ErrMalformedField       = errors.New("malformed record field")
	ErrFeeTooLow            = errors.New("fee below minimum transaction fee")
)

// Chain continuity failures.
var (
	ErrPreviousMismatch      = errors.New("previous does not match account head")
	ErrTimestampOutOfRange   = errors.New("timestamp too far in the future")
	ErrTimestampNotMonotonic = errors.New("timestamp precedes previous record")
)

// Supply and amount failures.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSupplyExhausted     = errors.New("remaining supply exhausted")
	ErrAntiWhaleMintCap    = errors.New("mint amount exceeds anti-whale cap")
	ErrAmountZero          = errors.New("amount must be non-zero")
)

// Receive-specific failures.
var (
	ErrLinkedSendNotFound = errors.New("linked send record not found")
	ErrLinkedSendNotSend  = errors.New("linked record is not a send")
	ErrRecipientMismatch  = errors.New("linked send does not name this account as recipient")
	ErrAmountMismatch     = errors.New("receive amount does not match linked send")
	ErrAlreadyClaimed     = errors.New("linked send already claimed")
)

// Slash-specific failures.
var (
	ErrNotValidator      = errors.New("signer is not a registered validator")
	ErrStakeBelowMinimum = errors.New("validator stake below minimum")
)

// Consensus failures.
var (
	ErrWrongView         = errors.New("message view does not match replica view")
	ErrMacInvalid        = errors.New("message authentication code invalid")
	ErrNoLockedBlock     = errors.New("no locked block for sequence")
	ErrInvalidViewChange = errors.New("invalid view change target")
	ErrDoublePrePrepare  = errors.New("duplicate pre-prepare for sequence")
)

// Checkpoint failures.
var (
	ErrLongRangeAttack       = errors.New("block height precedes latest checkpoint")
	ErrCheckpointMismatch    = errors.New("block id conflicts with checkpoint at same height")
	ErrInsufficientSignatures = errors.New("checkpoint lacks quorum signatures")
	ErrUnalignedHeight       = errors.New("height is not a multiple of the checkpoint interval")
)

// Persistence failures.
var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrTransactionAborted   = errors.New("persistence transaction aborted")
)

// Mempool and other admission failures.
var (
	ErrDuplicateRecord    = errors.New("record already present in mempool")
	ErrMempoolEmpty       = errors.New("mempool is empty")
	ErrBurnLimitExceeded  = errors.New("burn limit exceeded for window")
)
