package solana

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidProgramIndex is returned when a compiled instruction's program
// index is outside the account list.
var ErrInvalidProgramIndex = errors.New("invalid program id index")

// UnknownCompiledInstruction labels a compiled instruction inside a parsed
// message whose program could not be resolved.
const UnknownCompiledInstruction = "Unknown (Compiled)"

// Degradation reasons reported to Normalizer.OnDegraded.
const (
	DegradedInvalidProgramID   = "invalid_program_id"
	DegradedInvalidAccountKey  = "invalid_account_key"
	DegradedAccountOutOfRange  = "account_index_out_of_range"
	DegradedUnresolvedCompiled = "unresolved_compiled_instruction"
)

// Normalizer converts instructions of either message encoding into
// InstructionInfo, resolving references against one transaction's accounts.
type Normalizer struct {
	classifier *Classifier
	accounts   []AccountMeta
	index      map[solana.PublicKey]int
	invalid    map[int]bool

	// OnDegraded, when set, is called each time a field falls back to a placeholder.
	OnDegraded func(reason string)
}

// NewNormalizer returns a Normalizer over the resolved account list.
func NewNormalizer(classifier *Classifier, accounts []AccountMeta) *Normalizer {
	n := &Normalizer{
		classifier: classifier,
		accounts:   accounts,
		invalid:    map[int]bool{},
	}
	n.buildIndex()
	return n
}

// MarkInvalidAccounts records account positions whose key was not a valid
// address. An instruction whose program is one of them is left unresolved,
// and their placeholder keys are never matched by address.
func (n *Normalizer) MarkInvalidAccounts(indices ...int) {
	for _, i := range indices {
		n.invalid[i] = true
	}
	n.buildIndex()
}

func (n *Normalizer) buildIndex() {
	n.index = make(map[solana.PublicKey]int, len(n.accounts))
	for i, a := range n.accounts {
		if n.invalid[i] {
			continue
		}
		if _, ok := n.index[a.Pubkey]; !ok {
			n.index[a.Pubkey] = i
		}
	}
}

// unresolvedProgram is the InstructionInfo of an instruction whose program
// key is not a valid address.
func unresolvedProgram(rawData string, accounts []AccountMeta) InstructionInfo {
	return InstructionInfo{
		InstructionType: UnknownInstruction,
		RawData:         rawData,
		Accounts:        accounts,
		unresolved:      true,
	}
}

// Normalize dispatches on the instruction variant. Only compiled instructions
// can fail.
func (n *Normalizer) Normalize(ix Instruction) (InstructionInfo, error) {
	switch v := ix.(type) {
	case *CompiledInstruction:
		return n.NormalizeCompiled(v)
	case *ParsedInstruction:
		return n.NormalizeParsed(v), nil
	case *PartiallyDecodedInstruction:
		return n.NormalizePartiallyDecoded(v), nil
	default:
		return InstructionInfo{}, fmt.Errorf("unsupported instruction type %T", ix)
	}
}

// NormalizeCompiled resolves the program and account indices. An out-of-range
// program index is an error; out-of-range account indices are dropped.
func (n *Normalizer) NormalizeCompiled(ix *CompiledInstruction) (InstructionInfo, error) {
	if int(ix.ProgramIDIndex) >= len(n.accounts) {
		return InstructionInfo{}, fmt.Errorf("%w: %d with %d accounts", ErrInvalidProgramIndex, ix.ProgramIDIndex, len(n.accounts))
	}
	programID := n.accounts[ix.ProgramIDIndex].Pubkey

	accounts := make([]AccountMeta, 0, len(ix.Accounts))
	for _, idx := range ix.Accounts {
		if int(idx) >= len(n.accounts) {
			n.degraded(DegradedAccountOutOfRange)
			continue
		}
		accounts = append(accounts, n.accounts[idx])
	}

	if n.invalid[int(ix.ProgramIDIndex)] {
		n.degraded(DegradedInvalidProgramID)
		return unresolvedProgram(annotateData(ix.Data), accounts), nil
	}

	return InstructionInfo{
		ProgramID:       programID,
		ProgramName:     programNameRef(programID),
		InstructionType: n.classifier.Classify(programID, ix.Data),
		RawData:         annotateData(ix.Data),
		Accounts:        accounts,
	}, nil
}

// NormalizeParsed reads the label from parsed.type and the data from
// parsed.info. Accounts are guessed from info fields holding addresses: a key
// containing "authority" or "owner" marks a signer, one containing "source" or
// "destination" marks a writable account. The guess is a naming heuristic.
func (n *Normalizer) NormalizeParsed(ix *ParsedInstruction) InstructionInfo {
	programID, programOK := parsePubkey(ix.ProgramID)
	if !programOK {
		n.degraded(DegradedInvalidProgramID)
	}

	label := UnknownInstruction
	data := compactJSON(ix.Parsed)
	accounts := []AccountMeta{}

	if obj, ok := decodeJSONObject(ix.Parsed); ok {
		info, hasInfo := obj["info"]
		if t, ok := obj["type"].(string); ok {
			label = t
			data = ""
			if hasInfo {
				data = marshalCompact(info)
			}
		}
		if fields, ok := info.(map[string]any); ok {
			accounts = accountsFromInfo(fields)
		}
	}

	if !programOK {
		return unresolvedProgram(data, accounts)
	}
	return InstructionInfo{
		ProgramID:       programID,
		ProgramName:     programNameRef(programID),
		InstructionType: label,
		RawData:         data,
		Accounts:        accounts,
	}
}

// NormalizePartiallyDecoded classifies the base58 payload like a compiled
// instruction. Accounts take their flags and balances from the transaction's
// account list when present there.
func (n *Normalizer) NormalizePartiallyDecoded(ix *PartiallyDecodedInstruction) InstructionInfo {
	programID, programOK := parsePubkey(ix.ProgramID)
	if !programOK {
		n.degraded(DegradedInvalidProgramID)
	}

	accounts := make([]AccountMeta, 0, len(ix.Accounts))
	for _, s := range ix.Accounts {
		pubkey, ok := parsePubkey(s)
		if !ok {
			n.degraded(DegradedInvalidAccountKey)
			continue
		}
		if i, ok := n.index[pubkey]; ok {
			accounts = append(accounts, n.accounts[i])
			continue
		}
		accounts = append(accounts, AccountMeta{Pubkey: pubkey})
	}

	if !programOK {
		return unresolvedProgram(annotateData(ix.Data), accounts)
	}
	return InstructionInfo{
		ProgramID:       programID,
		ProgramName:     programNameRef(programID),
		InstructionType: n.classifier.Classify(programID, ix.Data),
		RawData:         annotateData(ix.Data),
		Accounts:        accounts,
	}
}

// compiledPlaceholder stands in for a compiled instruction of a parsed
// message that could not be resolved.
func compiledPlaceholder(ix *CompiledInstruction) InstructionInfo {
	return InstructionInfo{
		InstructionType: UnknownCompiledInstruction,
		RawData:         ix.Data,
		Accounts:        []AccountMeta{},
	}
}

func (n *Normalizer) degraded(reason string) {
	if n.OnDegraded != nil {
		n.OnDegraded(reason)
	}
}

// accountsFromInfo walks info fields in key order and keeps those whose value
// is an address.
func accountsFromInfo(info map[string]any) []AccountMeta {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	accounts := []AccountMeta{}
	for _, key := range keys {
		s, ok := info[key].(string)
		if !ok {
			continue
		}
		pubkey, ok := parsePubkey(s)
		if !ok {
			continue
		}
		role := key
		accounts = append(accounts, AccountMeta{
			Pubkey:     pubkey,
			IsSigner:   strings.Contains(key, "authority") || strings.Contains(key, "owner"),
			IsWritable: strings.Contains(key, "source") || strings.Contains(key, "destination"),
			RoleLabel:  &role,
		})
	}
	return accounts
}

// annotateData appends the decoded byte length to a base58 payload.
// Payloads that do not decode, or decode to nothing, are returned unchanged.
func annotateData(data string) string {
	raw, err := base58.Decode(data)
	if err != nil || len(raw) == 0 {
		return data
	}
	return fmt.Sprintf("%s (%d bytes)", data, len(raw))
}

// firstToken strips the byte-length annotation, returning the payload alone.
func firstToken(data string) string {
	fields := strings.Fields(data)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// decodeJSONObject decodes raw keeping numbers exact.
func decodeJSONObject(raw json.RawMessage) (map[string]any, bool) {
	v, ok := decodeJSONValue(raw)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

func decodeJSONValue(raw json.RawMessage) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// compactJSON renders raw in canonical compact form: keys sorted, numbers exact.
func compactJSON(raw json.RawMessage) string {
	if isJSONNull(raw) {
		return "null"
	}
	v, ok := decodeJSONValue(raw)
	if !ok {
		return string(raw)
	}
	return marshalCompact(v)
}

func marshalCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
