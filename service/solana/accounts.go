package solana

import (
	"github.com/gagliardetto/solana-go"
)

// AccountRole is the header range an account index falls in.
type AccountRole int

const (
	RoleWritableSigned AccountRole = iota
	RoleReadonlySigned
	RoleWritableUnsigned
	RoleReadonlyUnsigned
)

func (r AccountRole) String() string {
	switch r {
	case RoleWritableSigned:
		return "writable-signer"
	case RoleReadonlySigned:
		return "readonly-signer"
	case RoleWritableUnsigned:
		return "writable"
	default:
		return "readonly"
	}
}

// HeaderRanges holds the range boundaries derived from a message header and
// the total number of accounts. Accounts are laid out as writable signers,
// readonly signers, writable non-signers, readonly non-signers.
type HeaderRanges struct {
	NumRequiredSignatures int
	WritableSigned        int
	WritableUnsigned      int
}

// ComputeHeaderRanges derives the range boundaries. Subtractions clamp at zero
// so headers whose counts exceed the account list never underflow.
func ComputeHeaderRanges(h MessageHeader, totalAccounts int) HeaderRanges {
	nrs := int(h.NumRequiredSignatures)
	return HeaderRanges{
		NumRequiredSignatures: nrs,
		WritableSigned:        saturatingSub(nrs, int(h.NumReadonlySignedAccounts)),
		WritableUnsigned:      saturatingSub(saturatingSub(totalAccounts, nrs), int(h.NumReadonlyUnsignedAccounts)),
	}
}

// IsSigner reports whether account index i must sign.
func (r HeaderRanges) IsSigner(i int) bool {
	return i < r.NumRequiredSignatures
}

// IsWritable reports whether account index i is writable.
func (r HeaderRanges) IsWritable(i int) bool {
	return i < r.WritableSigned ||
		(i >= r.NumRequiredSignatures && i < r.NumRequiredSignatures+r.WritableUnsigned)
}

// Role returns the range account index i belongs to.
func (r HeaderRanges) Role(i int) AccountRole {
	switch {
	case i < r.WritableSigned:
		return RoleWritableSigned
	case i < r.NumRequiredSignatures:
		return RoleReadonlySigned
	case i < r.NumRequiredSignatures+r.WritableUnsigned:
		return RoleWritableUnsigned
	default:
		return RoleReadonlyUnsigned
	}
}

// ResolveCompiledAccounts builds the account list of a compiled message.
// Signer and writable flags come from the header ranges; balances are bound by
// index and stay nil when the balance arrays are short. A key that is not a
// valid address is kept as the zero key so later indices do not shift; its
// index is reported in invalid.
func ResolveCompiledAccounts(keys []string, header MessageHeader, pre, post []uint64) (accounts []AccountMeta, invalid []int) {
	ranges := ComputeHeaderRanges(header, len(keys))

	accounts = make([]AccountMeta, len(keys))
	for i, k := range keys {
		pubkey, ok := parsePubkey(k)
		if !ok {
			invalid = append(invalid, i)
		}
		accounts[i] = AccountMeta{
			Pubkey:      pubkey,
			IsSigner:    ranges.IsSigner(i),
			IsWritable:  ranges.IsWritable(i),
			PreBalance:  balanceAt(pre, i),
			PostBalance: balanceAt(post, i),
		}
	}
	return accounts, invalid
}

// ResolveParsedAccounts builds the account list of a jsonParsed message,
// taking signer and writable flags from the keys as given.
func ResolveParsedAccounts(keys []ParsedAccountKey, pre, post []uint64) (accounts []AccountMeta, invalid []int) {
	accounts = make([]AccountMeta, len(keys))
	for i, k := range keys {
		pubkey, ok := parsePubkey(k.Pubkey)
		if !ok {
			invalid = append(invalid, i)
		}
		accounts[i] = AccountMeta{
			Pubkey:      pubkey,
			IsSigner:    k.Signer,
			IsWritable:  k.Writable,
			PreBalance:  balanceAt(pre, i),
			PostBalance: balanceAt(post, i),
		}
	}
	return accounts, invalid
}

// parsePubkey returns the zero key when s is not a 32-byte base58 address.
func parsePubkey(s string) (solana.PublicKey, bool) {
	pubkey, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, false
	}
	return pubkey, true
}

func balanceAt(balances []uint64, i int) *uint64 {
	if i < 0 || i >= len(balances) {
		return nil
	}
	b := balances[i]
	return &b
}

func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}
