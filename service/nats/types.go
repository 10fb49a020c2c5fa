package nats

import (
	"time"

	"github.com/brojonat/solscope/service/solana"
)

// InspectionEvent announces a decoded transaction.
// This is published to the subject "inspections.{network}" in JetStream.
type InspectionEvent struct {
	// Transaction identifiers
	Signature string `json:"signature"`
	Network   string `json:"network"`
	Slot      uint64 `json:"slot"`

	// Execution outcome
	BlockTime   *time.Time `json:"block_time,omitempty"`
	Fee         uint64     `json:"fee"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	PriorityFee *uint64    `json:"priority_fee,omitempty"`

	// Decoded content
	InstructionTypes []string `json:"instruction_types"`
	Programs         []string `json:"programs"`
	SolTransferred   uint64   `json:"sol_transferred"`
	Memos            []string `json:"memos,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromTransactionData summarizes a decoded transaction for publishing.
func FromTransactionData(network solana.Network, data *solana.TransactionData) *InspectionEvent {
	event := &InspectionEvent{
		Signature:        data.Signature.String(),
		Network:          string(network),
		Slot:             data.Slot,
		BlockTime:        data.BlockTime,
		Fee:              data.Fee,
		Success:          !data.Status.Failed,
		Error:            data.Status.Reason,
		PriorityFee:      data.PriorityFee,
		InstructionTypes: make([]string, len(data.Instructions)),
		Programs:         data.ProgramNames(),
		SolTransferred:   data.TotalSolTransferred(),
		Memos:            data.Memos,
		PublishedAt:      time.Now().UTC(),
	}
	for i, ix := range data.Instructions {
		event.InstructionTypes[i] = ix.InstructionType
	}
	if event.Programs == nil {
		event.Programs = []string{}
	}
	return event
}

// Subject returns the JetStream subject the event is published to.
func (e *InspectionEvent) Subject() string {
	return SubjectPrefix + e.Network
}
