package solana

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func TestClassifier_ProgramScoped(t *testing.T) {
	c := DefaultClassifier()
	payload := base58.Encode([]byte{7})

	assert.Equal(t, "MintTo", c.Classify(TokenProgramID, payload))
	assert.Equal(t, "MintTo", c.Classify(Token2022ProgramID, payload))
	assert.Equal(t, "AuthorizeNonceAccount", c.Classify(SystemProgramID, payload))
	assert.Equal(t, UnknownInstruction, c.Classify(ComputeBudgetProgramID, payload))
}

func TestClassifier_Tables(t *testing.T) {
	c := DefaultClassifier()

	tests := []struct {
		name    string
		program string
		tag     byte
		want    string
	}{
		{"system create account", "system", 0, "CreateAccount"},
		{"system transfer", "system", 2, "Transfer"},
		{"system upgrade nonce", "system", 12, "UpgradeNonceAccount"},
		{"system past table", "system", 13, UnknownInstruction},
		{"token initialize mint", "token", 0, "InitializeMint"},
		{"token transfer checked", "token", 12, "TransferChecked"},
		{"token initialize mint2", "token", 20, "InitializeMint2"},
		{"token past table", "token", 21, UnknownInstruction},
		{"compute request units", "compute", 0, "RequestUnits"},
		{"compute limit", "compute", 2, "SetComputeUnitLimit"},
		{"compute price", "compute", 3, "SetComputeUnitPrice"},
		{"compute loaded accounts", "compute", 4, "SetLoadedAccountsDataSizeLimit"},
		{"compute past table", "compute", 5, UnknownInstruction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := SystemProgramID
			switch tt.program {
			case "token":
				program = TokenProgramID
			case "compute":
				program = ComputeBudgetProgramID
			}
			assert.Equal(t, tt.want, c.Classify(program, base58.Encode([]byte{tt.tag, 0, 0, 0})))
		})
	}
}

func TestClassifier_Unknowns(t *testing.T) {
	c := DefaultClassifier()

	t.Run("unknown program", func(t *testing.T) {
		assert.Equal(t, UnknownInstruction, c.Classify(testKey(9), base58.Encode([]byte{2})))
	})
	t.Run("invalid base58", func(t *testing.T) {
		assert.Equal(t, UnknownInstruction, c.Classify(SystemProgramID, "0OIl"))
	})
	t.Run("empty payload", func(t *testing.T) {
		assert.Equal(t, UnknownInstruction, c.Classify(SystemProgramID, ""))
		assert.Equal(t, UnknownInstruction, c.ClassifyBytes(SystemProgramID, nil))
	})
}

func TestClassifier_Register(t *testing.T) {
	program := testKey(9)
	c := DefaultClassifier()
	assert.False(t, c.Knows(program))

	c.Register(program, OpcodeTable{0: "Initialize", 1: "Swap"})
	assert.True(t, c.Knows(program))
	assert.Equal(t, "Swap", c.ClassifyBytes(program, []byte{1}))

	// Extending a built-in table must not leak into other classifiers.
	c.Register(SystemProgramID, OpcodeTable{13: "FutureInstruction"})
	assert.Equal(t, "FutureInstruction", c.ClassifyBytes(SystemProgramID, []byte{13}))
	assert.Equal(t, UnknownInstruction, DefaultClassifier().ClassifyBytes(SystemProgramID, []byte{13}))
}
