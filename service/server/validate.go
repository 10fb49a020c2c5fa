package server

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/solscope/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxAddressLength   = 64      // base58 of 32 bytes is at most 44 chars
	maxSignatureLength = 128     // base58 of 64 bytes is at most 88 chars
	defaultListLimit   = 50
	maxListLimit       = 500
)

var (
	// Valid Solana base58 characters (no 0, O, I, l)
	base58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

// validateBase58 checks the shared shape rules of addresses and signatures.
func validateBase58(field, value string, maxLen int) error {
	if value == "" {
		return errorf("%s is required", field)
	}

	if len(value) > maxLen {
		return errorf("%s too long: maximum length is %d characters", field, maxLen)
	}

	// Check for null bytes and control characters
	for _, r := range value {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in %s: control characters not allowed", field)
		}
	}

	if !base58Regex.MatchString(value) {
		return errorf("invalid %s format: must contain only valid base58 characters", field)
	}

	return nil
}

// parseAddress validates and decodes an account address.
func parseAddress(address string) (solanago.PublicKey, error) {
	if err := validateBase58("address", address, maxAddressLength); err != nil {
		return solanago.PublicKey{}, err
	}
	key, err := solanago.PublicKeyFromBase58(address)
	if err != nil {
		return solanago.PublicKey{}, errorf("invalid address: must decode to 32 bytes")
	}
	return key, nil
}

// parseSignature validates and decodes a transaction signature.
func parseSignature(signature string) (solanago.Signature, error) {
	if err := validateBase58("signature", signature, maxSignatureLength); err != nil {
		return solanago.Signature{}, err
	}
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return solanago.Signature{}, errorf("invalid signature: must decode to 64 bytes")
	}
	return sig, nil
}

// parseNetwork resolves a network parameter, falling back to def when empty.
func parseNetwork(network string, def solana.Network) (solana.Network, error) {
	if network == "" {
		return def, nil
	}
	n, err := solana.ParseNetwork(network)
	if err != nil {
		return "", errorf("invalid network: must be 'mainnet', 'devnet' or 'testnet'")
	}
	return n, nil
}

// parsePagination reads limit and offset query parameters.
func parsePagination(r *http.Request) (limit, offset int32, err error) {
	query := r.URL.Query()

	limit = defaultListLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return 0, 0, errorf("invalid limit: must be a positive integer")
		}
		if n > maxListLimit {
			return 0, 0, errorf("limit cannot exceed %d", maxListLimit)
		}
		limit = int32(n)
	}

	if v := query.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return 0, 0, errorf("invalid offset: must be a non-negative integer")
		}
		offset = int32(n)
	}

	return limit, offset, nil
}
