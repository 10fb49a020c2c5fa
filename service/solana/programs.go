package solana

import (
	"github.com/gagliardetto/solana-go"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// ComputeBudgetProgramID sets compute unit limits and prices
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

	ConfigProgramID             = solana.MustPublicKeyFromBase58("Config1111111111111111111111111111111111111")
	StakeProgramID              = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
	VoteProgramID               = solana.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")
	AddressLookupTableProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")
	BPFLoaderUpgradeableID      = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	BPFLoaderID                 = solana.MustPublicKeyFromBase58("BPFLoader2111111111111111111111111111111111")
	BPFLoaderLegacyID           = solana.MustPublicKeyFromBase58("BPFLoader1111111111111111111111111111111111")
	Ed25519ProgramID            = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")
	Secp256k1ProgramID          = solana.MustPublicKeyFromBase58("KeccakSecp256k11111111111111111111111111111")

	// MemoProgramIDSPL is the SPL Memo program (most common)
	MemoProgramIDSPL = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// MemoProgramIDLegacy is the legacy memo program (v1)
	MemoProgramIDLegacy = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")
)

// Program is a registry entry mapping an on-chain address to a display name.
type Program struct {
	ID   solana.PublicKey `json:"id"`
	Name string           `json:"name"`
}

// knownPrograms is the registry table. Order is the listing order of KnownPrograms.
var knownPrograms = []Program{
	{SystemProgramID, "System Program"},
	{TokenProgramID, "Token Program"},
	{Token2022ProgramID, "Token-2022 Program"},
	{AssociatedTokenProgramID, "Associated Token Account"},
	{ComputeBudgetProgramID, "Compute Budget"},
	{ConfigProgramID, "Config Program"},
	{StakeProgramID, "Stake Program"},
	{VoteProgramID, "Vote Program"},
	{AddressLookupTableProgramID, "Address Lookup Table"},
	{BPFLoaderUpgradeableID, "BPF Loader Upgradeable"},
	{BPFLoaderID, "BPF Loader"},
	{BPFLoaderLegacyID, "BPF Loader (Legacy)"},
	{Ed25519ProgramID, "Ed25519 SigVerify"},
	{Secp256k1ProgramID, "Secp256k1 Program"},
	{MemoProgramIDSPL, "Memo Program"},
	{MemoProgramIDLegacy, "Memo Program (Legacy)"},
}

var programNames = func() map[solana.PublicKey]string {
	m := make(map[solana.PublicKey]string, len(knownPrograms))
	for _, p := range knownPrograms {
		m[p.ID] = p.Name
	}
	return m
}()

// ProgramName returns the display name of a known program.
func ProgramName(id solana.PublicKey) (string, bool) {
	name, ok := programNames[id]
	return name, ok
}

// programNameRef is ProgramName in the optional form used by the data model.
func programNameRef(id solana.PublicKey) *string {
	name, ok := programNames[id]
	if !ok {
		return nil
	}
	return &name
}

// KnownPrograms returns a copy of the registry in listing order.
func KnownPrograms() []Program {
	out := make([]Program, len(knownPrograms))
	copy(out, knownPrograms)
	return out
}

func isTokenProgram(id solana.PublicKey) bool {
	return id.Equals(TokenProgramID) || id.Equals(Token2022ProgramID)
}

func isMemoProgram(id solana.PublicKey) bool {
	return id.Equals(MemoProgramIDSPL) || id.Equals(MemoProgramIDLegacy)
}

var knownMints = map[solana.PublicKey]string{
	solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"):  "Wrapped SOL",
	solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"): "USDC",
	solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"): "USDT",
}

// KnownMintName returns the symbol of a well-known token mint.
func KnownMintName(mint solana.PublicKey) (string, bool) {
	name, ok := knownMints[mint]
	return name, ok
}

func knownMintRef(mint solana.PublicKey) *string {
	name, ok := knownMints[mint]
	if !ok {
		return nil
	}
	return &name
}
