package multisig

import (
	"strconv"
	"strings"

	"nftlend/core/types"
)

const (
	// EventTypeMultisigCreated is emitted once at governance initialization.
	EventTypeMultisigCreated = "multisig.created"
	// EventTypeOwnersUpdated is emitted when the owner set changes.
	EventTypeOwnersUpdated = "multisig.owners_updated"
)

type multisigEvent struct {
	evt *types.Event
}

func (e multisigEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e multisigEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent returns the canonical event payload emitted when the
// governance root is initialized.
func NewCreatedEvent(ms *Multisig) *types.Event {
	attrs := map[string]string{}
	if ms != nil {
		attrs["threshold"] = strconv.FormatUint(ms.Threshold, 10)
		attrs["seqno"] = strconv.FormatUint(uint64(ms.Seqno), 10)
		attrs["owners"] = joinOwners(ms.Owners)
	}
	return &types.Event{Type: EventTypeMultisigCreated, Attributes: attrs}
}

// NewOwnersUpdatedEvent returns the canonical event payload emitted when the
// owner set is replaced.
func NewOwnersUpdatedEvent(oldOwners, newOwners []types.Address) *types.Event {
	return &types.Event{
		Type: EventTypeOwnersUpdated,
		Attributes: map[string]string{
			"oldOwners": joinOwners(oldOwners),
			"newOwners": joinOwners(newOwners),
		},
	}
}

func joinOwners(owners []types.Address) string {
	parts := make([]string, 0, len(owners))
	for _, owner := range owners {
		parts = append(parts, owner.Hex())
	}
	return strings.Join(parts, ",")
}
