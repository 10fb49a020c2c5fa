package solana

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTransactionNotFound is returned when the node has no record for a signature.
var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionRecord is a confirmed transaction as returned by the getTransaction
// RPC method with "json" or "jsonParsed" encoding.
type TransactionRecord struct {
	Slot        uint64             `json:"slot"`
	BlockTime   *int64             `json:"blockTime"`
	Meta        *TransactionMeta   `json:"meta"`
	Transaction EncodedTransaction `json:"transaction"`
	Version     json.RawMessage    `json:"version,omitempty"`
}

// TransactionMeta is the execution metadata attached to a confirmed transaction.
type TransactionMeta struct {
	Err                  json.RawMessage     `json:"err"`
	Fee                  uint64              `json:"fee"`
	PreBalances          []uint64            `json:"preBalances"`
	PostBalances         []uint64            `json:"postBalances"`
	InnerInstructions    []InnerInstructions `json:"innerInstructions"`
	LogMessages          []string            `json:"logMessages"`
	ComputeUnitsConsumed *uint64             `json:"computeUnitsConsumed,omitempty"`
}

// Failed reports whether the meta carries an execution error.
func (m *TransactionMeta) Failed() bool {
	return !isJSONNull(m.Err)
}

// InnerInstructions groups the instructions emitted while executing the
// top-level instruction at Index.
type InnerInstructions struct {
	Index        int          `json:"index"`
	Instructions Instructions `json:"instructions"`
}

// EncodedTransaction holds the signatures and message of a transaction.
// Message is nil when the record used a binary encoding.
type EncodedTransaction struct {
	Signatures []string `json:"signatures"`
	Message    Message  `json:"message"`
}

// Message is either a *CompiledMessage or a *ParsedMessage.
type Message interface {
	isMessage()
}

// MessageHeader carries the counts that partition the account list into
// signer and writable ranges.
type MessageHeader struct {
	NumRequiredSignatures       uint8 `json:"numRequiredSignatures"`
	NumReadonlySignedAccounts   uint8 `json:"numReadonlySignedAccounts"`
	NumReadonlyUnsignedAccounts uint8 `json:"numReadonlyUnsignedAccounts"`
}

// CompiledMessage is the "json" encoding: instructions refer to accounts by index.
type CompiledMessage struct {
	Header          MessageHeader `json:"header"`
	AccountKeys     []string      `json:"accountKeys"`
	RecentBlockhash string        `json:"recentBlockhash"`
	Instructions    Instructions  `json:"instructions"`
}

// ParsedAccountKey is an account list entry of the "jsonParsed" encoding.
type ParsedAccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Source   string `json:"source,omitempty"`
}

// ParsedMessage is the "jsonParsed" encoding: account roles are given per key and
// instructions of well-known programs arrive already decoded.
type ParsedMessage struct {
	AccountKeys     []ParsedAccountKey `json:"accountKeys"`
	RecentBlockhash string             `json:"recentBlockhash"`
	Instructions    Instructions       `json:"instructions"`
}

func (*CompiledMessage) isMessage() {}
func (*ParsedMessage) isMessage()   {}

// Instruction is one of *CompiledInstruction, *ParsedInstruction or
// *PartiallyDecodedInstruction.
type Instruction interface {
	isInstruction()
}

// CompiledInstruction references its program and accounts by index into the
// message account list. Data is base58.
type CompiledInstruction struct {
	ProgramIDIndex uint16   `json:"programIdIndex"`
	Accounts       []uint16 `json:"accounts"`
	Data           string   `json:"data"`
	StackHeight    *uint32  `json:"stackHeight,omitempty"`
}

// ParsedInstruction is an instruction the node decoded into a {type, info}
// object (or, for some programs, a bare JSON value).
type ParsedInstruction struct {
	Program     string          `json:"program"`
	ProgramID   string          `json:"programId"`
	Parsed      json.RawMessage `json:"parsed"`
	StackHeight *uint32         `json:"stackHeight,omitempty"`
}

// PartiallyDecodedInstruction is an instruction of a program the node has no
// parser for: addresses are resolved but Data is still base58.
type PartiallyDecodedInstruction struct {
	ProgramID   string   `json:"programId"`
	Accounts    []string `json:"accounts"`
	Data        string   `json:"data"`
	StackHeight *uint32  `json:"stackHeight,omitempty"`
}

func (*CompiledInstruction) isInstruction()         {}
func (*ParsedInstruction) isInstruction()           {}
func (*PartiallyDecodedInstruction) isInstruction() {}

// Instructions decodes a JSON instruction array into its concrete variants.
type Instructions []Instruction

// UnmarshalJSON picks the instruction variant from the keys present:
// programIdIndex means compiled, parsed means parsed, anything else is
// partially decoded.
func (ixs *Instructions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Instructions, 0, len(raw))
	for i, r := range raw {
		ix, err := decodeInstruction(r)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, ix)
	}
	*ixs = out
	return nil
}

func decodeInstruction(data []byte) (Instruction, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, ok := probe["programIdIndex"]; ok {
		var ix CompiledInstruction
		if err := json.Unmarshal(data, &ix); err != nil {
			return nil, err
		}
		return &ix, nil
	}
	if _, ok := probe["parsed"]; ok {
		var ix ParsedInstruction
		if err := json.Unmarshal(data, &ix); err != nil {
			return nil, err
		}
		return &ix, nil
	}

	var ix PartiallyDecodedInstruction
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, err
	}
	return &ix, nil
}

// UnmarshalJSON accepts both JSON encodings of a transaction. Binary encodings
// (["<payload>", "base64"]) decode to a transaction with no message.
func (t *EncodedTransaction) UnmarshalJSON(data []byte) error {
	*t = EncodedTransaction{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var raw struct {
		Signatures []string        `json:"signatures"`
		Message    json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	t.Signatures = raw.Signatures
	if isJSONNull(raw.Message) {
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw.Message, &probe); err != nil {
		return fmt.Errorf("message: %w", err)
	}

	if _, ok := probe["header"]; ok {
		var msg CompiledMessage
		if err := json.Unmarshal(raw.Message, &msg); err != nil {
			return fmt.Errorf("compiled message: %w", err)
		}
		t.Message = &msg
		return nil
	}

	var msg ParsedMessage
	if err := json.Unmarshal(raw.Message, &msg); err != nil {
		return fmt.Errorf("parsed message: %w", err)
	}
	t.Message = &msg
	return nil
}

// ParseTransactionRecord decodes a getTransaction result. A JSON null result
// yields ErrTransactionNotFound.
func ParseTransactionRecord(data []byte) (*TransactionRecord, error) {
	if isJSONNull(data) {
		return nil, ErrTransactionNotFound
	}

	var rec TransactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode transaction record: %w", err)
	}
	return &rec, nil
}

func isJSONNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
