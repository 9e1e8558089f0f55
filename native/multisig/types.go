package multisig

import (
	"encoding/hex"

	"nftlend/core/types"
	"nftlend/native/params"
)

// TxID addresses one stored governance transaction.
type TxID [32]byte

// Hex returns the lowercase hex encoding of the transaction id.
func (id TxID) Hex() string { return hex.EncodeToString(id[:]) }

// maxOwners bounds the governance owner set.
const maxOwners = 100

// Multisig is the single governance root for a deployment. Seqno increments
// exactly once per owner-set change; pending transactions proposed against an
// older owner set can never execute.
type Multisig struct {
	Threshold uint64          `json:"threshold"`
	Seqno     uint32          `json:"seqno"`
	Owners    []types.Address `json:"owners"`
}

// Clone returns a deep copy of the multisig record.
func (m *Multisig) Clone() *Multisig {
	if m == nil {
		return nil
	}
	out := *m
	out.Owners = append([]types.Address(nil), m.Owners...)
	return &out
}

// CommandKind tags the closed set of privileged operations a governance
// transaction may carry. Relaying opaque payloads to arbitrary targets is
// deliberately not supported.
type CommandKind uint8

const (
	// CommandSetOwners replaces the owner set.
	CommandSetOwners CommandKind = iota + 1
	// CommandChangeThreshold updates the approval threshold.
	CommandChangeThreshold
	// CommandSetOwnersAndThreshold replaces the owner set and updates the
	// threshold in one step.
	CommandSetOwnersAndThreshold
	// CommandSetPlatformParams rewrites the platform lending parameters.
	CommandSetPlatformParams
)

func (k CommandKind) String() string {
	switch k {
	case CommandSetOwners:
		return "set_owners"
	case CommandChangeThreshold:
		return "change_threshold"
	case CommandSetOwnersAndThreshold:
		return "set_owners_and_threshold"
	case CommandSetPlatformParams:
		return "set_platform_params"
	default:
		return "unknown"
	}
}

// Command is the tagged payload of a governance transaction. Only the fields
// relevant to Kind are populated; the rest stay zero.
type Command struct {
	Kind      CommandKind            `json:"kind"`
	Owners    []types.Address        `json:"owners,omitempty"`
	Threshold uint64                 `json:"threshold,omitempty"`
	Params    *params.PlatformParams `json:"params,omitempty"`
}

// Clone returns a deep copy of the command.
func (c Command) Clone() Command {
	out := c
	out.Owners = append([]types.Address(nil), c.Owners...)
	if c.Params != nil {
		p := *c.Params
		out.Params = &p
	}
	return out
}

// Transaction is one propose/approve/execute round. Approvals[i] is true iff
// the owner at index i of the owner set snapshot approved the transaction.
type Transaction struct {
	ID        TxID          `json:"id"`
	Proposer  types.Address `json:"proposer"`
	Command   Command       `json:"command"`
	Approvals []bool        `json:"approvals"`
	Executed  bool          `json:"executed"`
	Seqno     uint32        `json:"seqno"`
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	out := *t
	out.Command = t.Command.Clone()
	out.Approvals = append([]bool(nil), t.Approvals...)
	return &out
}

// ApprovalCount reports how many owners approved the transaction.
func (t *Transaction) ApprovalCount() uint64 {
	if t == nil {
		return 0
	}
	var count uint64
	for _, approved := range t.Approvals {
		if approved {
			count++
		}
	}
	return count
}
