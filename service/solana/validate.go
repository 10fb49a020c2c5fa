package solana

import (
	"github.com/gagliardetto/solana-go"
)

// IsValidPubkey reports whether s is a base58 encoded 32-byte address.
func IsValidPubkey(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// IsValidSignature reports whether s is a base58 encoded 64-byte signature.
func IsValidSignature(s string) bool {
	_, err := solana.SignatureFromBase58(s)
	return err == nil
}
