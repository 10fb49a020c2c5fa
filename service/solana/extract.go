package solana

import (
	"encoding/binary"
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// System transfer payload: [0..4] discriminant (u32), [4..12] lamports (u64).
const (
	systemTransferAmountOffset = 4
	systemTransferMinLen       = 12
)

// SetComputeUnitPrice payload: [0] discriminant, [1..9] micro-lamports (u64).
const (
	computeUnitPriceOffset = 1
	computeUnitPriceMinLen = 9
)

// Instructions whose program key did not resolve are ignored by every
// extractor.

// ExtractSolTransfers reconstructs native transfers. A System Program
// "Transfer" with at least two accounts yields accounts[0] -> accounts[1] with
// the amount read from the payload; payloads that do not decode or are shorter
// than 12 bytes are skipped. jsonParsed "transfer" instructions yield the
// lamports of their info object.
func ExtractSolTransfers(instructions []InstructionInfo) []SolTransfer {
	transfers := []SolTransfer{}
	for _, ix := range instructions {
		if ix.unresolved || !ix.ProgramID.Equals(SystemProgramID) {
			continue
		}
		switch ix.InstructionType {
		case "Transfer":
			if tr, ok := compiledSolTransfer(ix); ok {
				transfers = append(transfers, tr)
			}
		case "transfer":
			if tr, ok := parsedSolTransfer(ix); ok {
				transfers = append(transfers, tr)
			}
		}
	}
	return transfers
}

func compiledSolTransfer(ix InstructionInfo) (SolTransfer, bool) {
	if len(ix.Accounts) < 2 {
		return SolTransfer{}, false
	}
	raw, err := base58.Decode(firstToken(ix.RawData))
	if err != nil || len(raw) < systemTransferMinLen {
		return SolTransfer{}, false
	}
	amount, ok := readUint64LE(raw, systemTransferAmountOffset)
	if !ok {
		return SolTransfer{}, false
	}
	return SolTransfer{
		From:   ix.Accounts[0].Pubkey,
		To:     ix.Accounts[1].Pubkey,
		Amount: amount,
	}, true
}

func parsedSolTransfer(ix InstructionInfo) (SolTransfer, bool) {
	var info struct {
		Source      string      `json:"source"`
		Destination string      `json:"destination"`
		Lamports    json.Number `json:"lamports"`
	}
	if err := json.Unmarshal([]byte(ix.RawData), &info); err != nil {
		return SolTransfer{}, false
	}
	from, ok := parsePubkey(info.Source)
	if !ok {
		return SolTransfer{}, false
	}
	to, ok := parsePubkey(info.Destination)
	if !ok {
		return SolTransfer{}, false
	}
	amount, err := strconv.ParseUint(info.Lamports.String(), 10, 64)
	if err != nil {
		return SolTransfer{}, false
	}
	return SolTransfer{From: from, To: to, Amount: amount}, true
}

// ExtractPriorityFee returns the micro-lamport price of the last decodable
// SetComputeUnitPrice instruction, or nil when there is none.
func ExtractPriorityFee(instructions []InstructionInfo) *uint64 {
	var fee *uint64
	for _, ix := range instructions {
		if ix.unresolved || !ix.ProgramID.Equals(ComputeBudgetProgramID) || ix.InstructionType != "SetComputeUnitPrice" {
			continue
		}
		raw, err := base58.Decode(firstToken(ix.RawData))
		if err != nil || len(raw) < computeUnitPriceMinLen {
			continue
		}
		if v, ok := readUint64LE(raw, computeUnitPriceOffset); ok {
			fee = &v
		}
	}
	return fee
}

// ExtractMaxComputeUnits returns the limit of the first Compute Budget
// instruction labeled SetComputeUnitLimit whose data is a plain decimal
// number. Unlike the price, the limit is not read from the binary payload.
func ExtractMaxComputeUnits(instructions []InstructionInfo) *uint64 {
	for _, ix := range instructions {
		if ix.unresolved || !ix.ProgramID.Equals(ComputeBudgetProgramID) || !strings.Contains(ix.InstructionType, "SetComputeUnitLimit") {
			continue
		}
		if v, ok := parseDecimalUint64(ix.RawData); ok {
			return &v
		}
	}
	return nil
}

// ExtractMemos returns the text of Memo program instructions in order.
// Parsed memos arrive as a JSON string; raw memos are base58 UTF-8 bytes.
func ExtractMemos(instructions []InstructionInfo) []string {
	memos := []string{}
	for _, ix := range instructions {
		if ix.unresolved || !isMemoProgram(ix.ProgramID) {
			continue
		}
		var text string
		if err := json.Unmarshal([]byte(ix.RawData), &text); err == nil {
			memos = append(memos, text)
			continue
		}
		raw, err := base58.Decode(firstToken(ix.RawData))
		if err != nil || len(raw) == 0 || !utf8.Valid(raw) {
			continue
		}
		memos = append(memos, string(raw))
	}
	return memos
}

// TokenTransferExtractor reconstructs token transfers from execution logs.
type TokenTransferExtractor interface {
	ExtractTokenTransfers(logs []string, accountKeys []solana.PublicKey) []TokenTransfer
}

// TokenTransferExtractorFunc adapts a function to TokenTransferExtractor.
type TokenTransferExtractorFunc func(logs []string, accountKeys []solana.PublicKey) []TokenTransfer

func (f TokenTransferExtractorFunc) ExtractTokenTransfers(logs []string, accountKeys []solana.PublicKey) []TokenTransfer {
	return f(logs, accountKeys)
}

// NoopTokenTransfers is the default extractor. It never reports transfers.
type NoopTokenTransfers struct{}

func (NoopTokenTransfers) ExtractTokenTransfers([]string, []solana.PublicKey) []TokenTransfer {
	return []TokenTransfer{}
}

func readUint64LE(raw []byte, offset int) (uint64, bool) {
	if offset < 0 || len(raw) < offset+8 {
		return 0, false
	}
	v, err := bin.NewBinDecoder(raw[offset : offset+8]).ReadUint64(binary.LittleEndian)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDecimalUint64 accepts an optional leading '+' followed by digits.
func parseDecimalUint64(s string) (uint64, bool) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
