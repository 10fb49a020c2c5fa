package solana

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

// Addresses used by the testdata fixtures.
var (
	payerKey     = testKey(1)
	recipientKey = testKey(2)
	testSig      = solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7")
)

// testKey returns an address whose 32 bytes are all b. b must not be 0, which
// is the System Program.
func testKey(b byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func loadRecord(t *testing.T, name string) *TransactionRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	rec, err := ParseTransactionRecord(data)
	require.NoError(t, err)
	return rec
}

func systemTransferData(lamports uint64) string {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], 2)
	binary.LittleEndian.PutUint64(buf[4:12], lamports)
	return base58.Encode(buf)
}

func computeUnitPriceData(microLamports uint64) string {
	buf := make([]byte, 9)
	buf[0] = 3
	binary.LittleEndian.PutUint64(buf[1:9], microLamports)
	return base58.Encode(buf)
}

func computeUnitLimitData(units uint32) string {
	buf := make([]byte, 5)
	buf[0] = 2
	binary.LittleEndian.PutUint32(buf[1:5], units)
	return base58.Encode(buf)
}

func ptr[T any](v T) *T {
	return &v
}

func mustKey(t *testing.T, s string) solana.PublicKey {
	t.Helper()
	k, err := solana.PublicKeyFromBase58(s)
	require.NoError(t, err)
	return k
}
