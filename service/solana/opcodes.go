package solana

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// UnknownInstruction is the label for any payload that cannot be classified.
const UnknownInstruction = "Unknown"

// OpcodeTable maps an instruction's first byte to its label for one program.
type OpcodeTable map[byte]string

var systemOpcodes = OpcodeTable{
	0:  "CreateAccount",
	1:  "Assign",
	2:  "Transfer",
	3:  "CreateAccountWithSeed",
	4:  "AdvanceNonceAccount",
	5:  "WithdrawNonceAccount",
	6:  "InitializeNonceAccount",
	7:  "AuthorizeNonceAccount",
	8:  "Allocate",
	9:  "AllocateWithSeed",
	10: "AssignWithSeed",
	11: "TransferWithSeed",
	12: "UpgradeNonceAccount",
}

// tokenOpcodes is shared by the Token and Token-2022 programs.
var tokenOpcodes = OpcodeTable{
	0:  "InitializeMint",
	1:  "InitializeAccount",
	2:  "InitializeMultisig",
	3:  "Transfer",
	4:  "Approve",
	5:  "Revoke",
	6:  "SetAuthority",
	7:  "MintTo",
	8:  "Burn",
	9:  "CloseAccount",
	10: "FreezeAccount",
	11: "ThawAccount",
	12: "TransferChecked",
	13: "ApproveChecked",
	14: "MintToChecked",
	15: "BurnChecked",
	16: "InitializeAccount2",
	17: "SyncNative",
	18: "InitializeAccount3",
	19: "InitializeMultisig2",
	20: "InitializeMint2",
}

var computeBudgetOpcodes = OpcodeTable{
	0: "RequestUnits",
	1: "RequestHeapFrame",
	2: "SetComputeUnitLimit",
	3: "SetComputeUnitPrice",
	4: "SetLoadedAccountsDataSizeLimit",
}

// Classifier labels instruction payloads by their first byte, scoped per
// program. Tables are registered up front; a Classifier must not be modified
// while it is being used to decode.
type Classifier struct {
	tables map[solana.PublicKey]OpcodeTable
}

// NewClassifier returns a classifier with no tables.
func NewClassifier() *Classifier {
	return &Classifier{tables: make(map[solana.PublicKey]OpcodeTable)}
}

// DefaultClassifier returns a classifier preloaded with the System, Token,
// Token-2022 and Compute Budget tables.
func DefaultClassifier() *Classifier {
	c := NewClassifier()
	c.Register(SystemProgramID, systemOpcodes)
	c.Register(TokenProgramID, tokenOpcodes)
	c.Register(Token2022ProgramID, tokenOpcodes)
	c.Register(ComputeBudgetProgramID, computeBudgetOpcodes)
	return c
}

// Register adds the entries of table to the program's table, replacing
// labels for discriminants already present.
func (c *Classifier) Register(program solana.PublicKey, table OpcodeTable) {
	existing, ok := c.tables[program]
	if !ok {
		existing = make(OpcodeTable, len(table))
		c.tables[program] = existing
	}
	for tag, label := range table {
		existing[tag] = label
	}
}

// Knows reports whether a table is registered for program.
func (c *Classifier) Knows(program solana.PublicKey) bool {
	_, ok := c.tables[program]
	return ok
}

// Classify decodes a base58 payload and labels it. Undecodable or empty
// payloads, programs without a table and unlisted discriminants all yield
// UnknownInstruction.
func (c *Classifier) Classify(program solana.PublicKey, data string) string {
	raw, err := base58.Decode(data)
	if err != nil {
		return UnknownInstruction
	}
	return c.ClassifyBytes(program, raw)
}

// ClassifyBytes labels an already decoded payload.
func (c *Classifier) ClassifyBytes(program solana.PublicKey, raw []byte) string {
	if len(raw) == 0 {
		return UnknownInstruction
	}
	table, ok := c.tables[program]
	if !ok {
		return UnknownInstruction
	}
	label, ok := table[raw[0]]
	if !ok {
		return UnknownInstruction
	}
	return label
}
