package dca

import (
	"math/big"
	"strconv"

	coretypes "dcaengine/core/types"
	"dcaengine/crypto"
)

const (
	EventTypePositionCreated   = "dca.position.created"
	EventTypePositionsBatched  = "dca.position.created_batched"
	EventTypePositionModified  = "dca.position.modified"
	EventTypePositionTerminate = "dca.position.terminated"
	EventTypePositionWithdrawn = "dca.position.withdrawn"
	EventTypeOwnerUpdated      = "dca.position.owner_updated"
	EventTypeSwapped           = "dca.swap.executed"
	EventTypeBlankSwapped      = "dca.swap.blank"
)

// dcaEvent adapts the attribute-map payload to the events.Emitter
// interface.
type dcaEvent struct {
	evt *coretypes.Event
}

func (d dcaEvent) EventType() string {
	if d.evt == nil {
		return ""
	}
	return d.evt.Type
}

// Payload returns the underlying attribute-map event.
func (d dcaEvent) Payload() *coretypes.Event { return d.evt }

func positionAttrs(p *Position) map[string]string {
	attrs := make(map[string]string)
	if p == nil {
		return attrs
	}
	attrs["positionId"] = strconv.FormatUint(p.ID, 10)
	attrs["owner"] = p.Owner.String()
	attrs["from"] = p.From.String()
	attrs["to"] = p.To.String()
	attrs["mask"] = strconv.FormatUint(uint64(p.Mask), 10)
	attrs["rate"] = p.Rate.String()
	attrs["startingSwap"] = strconv.FormatUint(p.StartingSwap, 10)
	attrs["finalSwap"] = strconv.FormatUint(p.FinalSwap, 10)
	return attrs
}

func newCreatedEvent(p *Position, amount *big.Int) *coretypes.Event {
	attrs := positionAttrs(p)
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &coretypes.Event{Type: EventTypePositionCreated, Attributes: attrs}
}

func newCreatedBatchEvent(positions []*Position) *coretypes.Event {
	attrs := make(map[string]string)
	ids := ""
	for i, p := range positions {
		if i > 0 {
			ids += ","
		}
		ids += strconv.FormatUint(p.ID, 10)
	}
	attrs["positionIds"] = ids
	attrs["count"] = strconv.Itoa(len(positions))
	if len(positions) > 0 {
		attrs["owner"] = positions[0].Owner.String()
	}
	return &coretypes.Event{Type: EventTypePositionsBatched, Attributes: attrs}
}

func newModifiedEvent(p *Position, amount *big.Int, increase bool) *coretypes.Event {
	attrs := positionAttrs(p)
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	attrs["increase"] = strconv.FormatBool(increase)
	return &coretypes.Event{Type: EventTypePositionModified, Attributes: attrs}
}

func newTerminatedEvent(p *Position, recipient crypto.Address, unswapped, swapped *big.Int) *coretypes.Event {
	attrs := positionAttrs(p)
	attrs["recipient"] = recipient.String()
	attrs["unswapped"] = unswapped.String()
	attrs["swapped"] = swapped.String()
	return &coretypes.Event{Type: EventTypePositionTerminate, Attributes: attrs}
}

func newWithdrawnEvent(p *Position, recipient crypto.Address, swapped *big.Int) *coretypes.Event {
	attrs := positionAttrs(p)
	attrs["recipient"] = recipient.String()
	attrs["swapped"] = swapped.String()
	return &coretypes.Event{Type: EventTypePositionWithdrawn, Attributes: attrs}
}

func newOwnerUpdatedEvent(p *Position, previous crypto.Address) *coretypes.Event {
	attrs := positionAttrs(p)
	attrs["previousOwner"] = previous.String()
	return &coretypes.Event{Type: EventTypeOwnerUpdated, Attributes: attrs}
}

func newSwappedEvent(batchID string, pair PairKey, intervals uint8, totalInput, delivered *big.Int) *coretypes.Event {
	attrs := map[string]string{
		"batchId":   batchID,
		"from":      pair.From.String(),
		"to":        pair.To.String(),
		"intervals": strconv.FormatUint(uint64(intervals), 10),
		"input":     totalInput.String(),
		"delivered": delivered.String(),
	}
	return &coretypes.Event{Type: EventTypeSwapped, Attributes: attrs}
}

func newBlankSwappedEvent(batchID string, key TripleKey) *coretypes.Event {
	attrs := map[string]string{
		"batchId": batchID,
		"from":    key.From.String(),
		"to":      key.To.String(),
		"mask":    strconv.FormatUint(uint64(key.Mask), 10),
	}
	return &coretypes.Event{Type: EventTypeBlankSwapped, Attributes: attrs}
}
