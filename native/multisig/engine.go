package multisig

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftlend/core/events"
	"nftlend/core/types"
	"nftlend/native/params"
)

var (
	errNilState           = errors.New("multisig engine: state not configured")
	errNilParams          = errors.New("multisig engine: parameter store not configured")
	errAlreadyInitialized = errors.New("multisig engine: multisig already initialized")
	errNotInitialized     = errors.New("multisig engine: multisig not initialized")
	errUniqueOwners       = errors.New("multisig engine: owners must be unique")
	errInvalidOwnersLen   = errors.New("multisig engine: invalid owners length")
	errInvalidThreshold   = errors.New("multisig engine: invalid threshold")
	errInvalidOwner       = errors.New("multisig engine: caller is not an owner")
	errTransactionExists  = errors.New("multisig engine: transaction already proposed")
	errTransactionMissing = errors.New("multisig engine: transaction not found")
	errAlreadyExecuted    = errors.New("multisig engine: transaction already executed")
	errNotEnoughSigners   = errors.New("multisig engine: not enough signers")
	errStaleTransaction   = errors.New("multisig engine: transaction sequence number is stale")
	errUnknownCommand     = errors.New("multisig engine: unknown command kind")
	errMissingParams      = errors.New("multisig engine: command params not set")
)

const seedTransaction = "multisig_transaction"

type engineState interface {
	MultisigGet() (*Multisig, bool, error)
	MultisigPut(ms *Multisig) error
	TransactionGet(id TxID) (*Transaction, bool, error)
	TransactionPut(tx *Transaction) error
}

// Engine gates every privileged platform mutation behind the threshold
// propose/approve/execute protocol. The privileged mutators have no direct
// entry point; they are reachable only through Execute.
type Engine struct {
	state   engineState
	params  *params.Store
	emitter events.Emitter
}

// NewEngine constructs a governance engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetParams wires the platform parameter store mutated by executed commands.
func (e *Engine) SetParams(store *params.Store) {
	if e == nil {
		return
	}
	e.params = store
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(multisigEvent{evt: event})
}

// Initialize creates the singleton governance root. It fails if the root
// already exists, so a deployment can never grow a second one.
func (e *Engine) Initialize(owners []types.Address, threshold uint64) (*Multisig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok, err := e.state.MultisigGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, errAlreadyInitialized
	}
	if err := validateOwners(owners); err != nil {
		return nil, err
	}
	if threshold == 0 || threshold > uint64(len(owners)) {
		return nil, errInvalidThreshold
	}

	ms := &Multisig{
		Threshold: threshold,
		Seqno:     0,
		Owners:    append([]types.Address(nil), owners...),
	}
	if err := e.state.MultisigPut(ms); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(ms))
	return ms.Clone(), nil
}

// Owners returns the current governance owner set.
func (e *Engine) Owners() ([]types.Address, error) {
	ms, err := e.load()
	if err != nil {
		return nil, err
	}
	return append([]types.Address(nil), ms.Owners...), nil
}

// Multisig returns a copy of the governance root record.
func (e *Engine) Multisig() (*Multisig, error) {
	ms, err := e.load()
	if err != nil {
		return nil, err
	}
	return ms.Clone(), nil
}

// CreateTransaction proposes a governance command. The command is validated
// against the current owner set up front; malformed commands never enter the
// approval pipeline. The proposer's approval is recorded implicitly.
func (e *Engine) CreateTransaction(proposer types.Address, cmd Command) (*Transaction, error) {
	ms, err := e.load()
	if err != nil {
		return nil, err
	}
	ownerIdx := ownerIndex(ms.Owners, proposer)
	if ownerIdx < 0 {
		return nil, errInvalidOwner
	}
	if err := e.validateCommand(ms, cmd); err != nil {
		return nil, err
	}

	id, err := transactionID(ms.Seqno, proposer, cmd)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.TransactionGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, errTransactionExists
	}

	approvals := make([]bool, len(ms.Owners))
	approvals[ownerIdx] = true
	tx := &Transaction{
		ID:        id,
		Proposer:  proposer,
		Command:   cmd.Clone(),
		Approvals: approvals,
		Seqno:     ms.Seqno,
	}
	if err := e.state.TransactionPut(tx); err != nil {
		return nil, err
	}
	return tx.Clone(), nil
}

// Approve records an owner's approval on a pending transaction. Re-approving
// is a no-op rather than an error.
func (e *Engine) Approve(owner types.Address, id TxID) (*Transaction, error) {
	ms, err := e.load()
	if err != nil {
		return nil, err
	}
	tx, ok, err := e.state.TransactionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errTransactionMissing
	}
	if tx.Seqno != ms.Seqno {
		return nil, errStaleTransaction
	}
	ownerIdx := ownerIndex(ms.Owners, owner)
	if ownerIdx < 0 {
		return nil, errInvalidOwner
	}
	tx.Approvals[ownerIdx] = true
	if err := e.state.TransactionPut(tx); err != nil {
		return nil, err
	}
	return tx.Clone(), nil
}

// Execute applies the transaction's command once enough owners approved it.
// A transaction executes at most once, and never after the owner set it was
// proposed against has been superseded.
func (e *Engine) Execute(id TxID) (*Transaction, error) {
	ms, err := e.load()
	if err != nil {
		return nil, err
	}
	tx, ok, err := e.state.TransactionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errTransactionMissing
	}
	if tx.Executed {
		return nil, errAlreadyExecuted
	}
	if tx.Seqno != ms.Seqno {
		return nil, errStaleTransaction
	}
	if tx.ApprovalCount() < ms.Threshold {
		return nil, errNotEnoughSigners
	}

	if err := e.apply(ms, tx.Command); err != nil {
		return nil, err
	}
	tx.Executed = true
	if err := e.state.TransactionPut(tx); err != nil {
		return nil, err
	}
	return tx.Clone(), nil
}

// Transaction returns a copy of the stored transaction record.
func (e *Engine) Transaction(id TxID) (*Transaction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	tx, ok, err := e.state.TransactionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errTransactionMissing
	}
	return tx.Clone(), nil
}

func (e *Engine) load() (*Multisig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ms, ok, err := e.state.MultisigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotInitialized
	}
	return ms, nil
}

func (e *Engine) validateCommand(ms *Multisig, cmd Command) error {
	switch cmd.Kind {
	case CommandSetOwners:
		return validateOwners(cmd.Owners)
	case CommandChangeThreshold:
		if cmd.Threshold == 0 || cmd.Threshold > uint64(len(ms.Owners)) {
			return errInvalidThreshold
		}
		return nil
	case CommandSetOwnersAndThreshold:
		if err := validateOwners(cmd.Owners); err != nil {
			return err
		}
		if cmd.Threshold == 0 || cmd.Threshold > uint64(len(cmd.Owners)) {
			return errInvalidThreshold
		}
		return nil
	case CommandSetPlatformParams:
		if e.params == nil {
			return errNilParams
		}
		if cmd.Params == nil {
			return errMissingParams
		}
		return nil
	default:
		return errUnknownCommand
	}
}

func (e *Engine) apply(ms *Multisig, cmd Command) error {
	switch cmd.Kind {
	case CommandSetOwners:
		return e.setOwners(ms, cmd.Owners)
	case CommandChangeThreshold:
		return e.changeThreshold(ms, cmd.Threshold)
	case CommandSetOwnersAndThreshold:
		if err := e.setOwners(ms, cmd.Owners); err != nil {
			return err
		}
		return e.changeThreshold(ms, cmd.Threshold)
	case CommandSetPlatformParams:
		if e.params == nil {
			return errNilParams
		}
		if cmd.Params == nil {
			return errMissingParams
		}
		return e.params.SetPlatform(*cmd.Params)
	default:
		return errUnknownCommand
	}
}

// setOwners replaces the owner set, clamps the threshold down to the new
// owner count when needed and bumps the sequence number, invalidating every
// pending transaction.
func (e *Engine) setOwners(ms *Multisig, owners []types.Address) error {
	if err := validateOwners(owners); err != nil {
		return err
	}
	oldOwners := append([]types.Address(nil), ms.Owners...)
	if uint64(len(owners)) < ms.Threshold {
		ms.Threshold = uint64(len(owners))
	}
	ms.Owners = append([]types.Address(nil), owners...)
	ms.Seqno++
	if err := e.state.MultisigPut(ms); err != nil {
		return err
	}
	e.emit(NewOwnersUpdatedEvent(oldOwners, ms.Owners))
	return nil
}

func (e *Engine) changeThreshold(ms *Multisig, threshold uint64) error {
	if threshold == 0 || threshold > uint64(len(ms.Owners)) {
		return errInvalidThreshold
	}
	ms.Threshold = threshold
	return e.state.MultisigPut(ms)
}

func validateOwners(owners []types.Address) error {
	if len(owners) == 0 || len(owners) > maxOwners {
		return errInvalidOwnersLen
	}
	seen := make(map[types.Address]struct{}, len(owners))
	for _, owner := range owners {
		if _, ok := seen[owner]; ok {
			return errUniqueOwners
		}
		seen[owner] = struct{}{}
	}
	return nil
}

func ownerIndex(owners []types.Address, addr types.Address) int {
	for i, owner := range owners {
		if owner == addr {
			return i
		}
	}
	return -1
}

func transactionID(seqno uint32, proposer types.Address, cmd Command) (TxID, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return TxID{}, err
	}
	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], seqno)
	return TxID(ethcrypto.Keccak256Hash([]byte(seedTransaction), seq[:], proposer[:], payload)), nil
}
