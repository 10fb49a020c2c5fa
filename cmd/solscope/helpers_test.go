package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixtureSignature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"

var fixtureDir = filepath.Join("..", "..", "service", "solana", "testdata")

// runApp runs the CLI with args (program name excluded) and returns stdout.
func runApp(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = io.Discard
	if stdin != nil {
		app.Reader = stdin
	}

	err := app.Run(append([]string{"solscope"}, args...))
	return stdout.String(), err
}

func fixturePath(name string) string {
	return filepath.Join(fixtureDir, name)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(fixturePath(name))
	require.NoError(t, err)
	return raw
}
