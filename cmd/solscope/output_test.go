package main

import (
	"bytes"
	"testing"

	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, outputJSON(&buf, map[string]int{"count": 2}))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}

func TestOutputJQ(t *testing.T) {
	input := map[string]interface{}{
		"name":  "solscope",
		"items": []int{1, 2, 3},
	}

	tests := []struct {
		name    string
		filter  string
		want    string
		wantErr string
	}{
		{name: "raw string", filter: ".name", want: "solscope\n"},
		{name: "stream of numbers", filter: ".items[]", want: "1\n2\n3\n"},
		{name: "object", filter: "{n: (.items | length)}", want: "{\n  \"n\": 3\n}\n"},
		{name: "no results", filter: "empty", want: ""},
		{name: "parse error", filter: ".[", wantErr: "failed to parse jq filter"},
		{name: "runtime error", filter: ".name | keys", wantErr: "jq filter \".name | keys\" failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := outputJQ(&buf, tt.filter, input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0.0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func TestMatchesFilters(t *testing.T) {
	event := &natspkg.InspectionEvent{
		Signature:      fixtureSignature,
		Network:        "devnet",
		Success:        true,
		SolTransferred: 2_000_000_000,
		Programs:       []string{"System Program"},
	}

	compile := func(filters ...string) []*gojq.Code {
		codes := make([]*gojq.Code, len(filters))
		for i, f := range filters {
			code, err := compileJQ(f)
			require.NoError(t, err)
			codes[i] = code
		}
		return codes
	}

	tests := []struct {
		name    string
		filters []string
		want    bool
	}{
		{name: "no filters", want: true},
		{name: "single match", filters: []string{".sol_transferred > 1000000000"}, want: true},
		{name: "all must match", filters: []string{".success", `.network == "mainnet"`}, want: false},
		{name: "null is falsy", filters: []string{".missing"}, want: false},
		{name: "no output is falsy", filters: []string{"empty"}, want: false},
		{name: "array membership", filters: []string{`any(.programs[]; . == "System Program")`}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matchesFilters(compile(tt.filters...), event)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSignatureList(t *testing.T) {
	text := "# batch\nsigA\n\n  sigB  \n#skipped\nsigC"
	assert.Equal(t, []string{"sigA", "sigB", "sigC"}, parseSignatureList(text))
	assert.Empty(t, parseSignatureList("\n\n# only comments\n"))
}

func TestRPCEndpoints(t *testing.T) {
	run := func(t *testing.T, args ...string) []string {
		t.Helper()
		var got []string
		app := &cli.App{
			Name: "solscope",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "rpc-url"},
			},
			Action: func(c *cli.Context) error {
				got = rpcEndpoints(c, solana.Devnet)
				return nil
			},
		}
		require.NoError(t, app.Run(append([]string{"solscope"}, args...)))
		return got
	}

	t.Run("public default", func(t *testing.T) {
		t.Setenv("SOLANA_DEVNET_RPC_URL", "")
		assert.Equal(t, []string{solana.Devnet.DefaultRPCURL()}, run(t))
	})

	t.Run("network environment variable", func(t *testing.T) {
		t.Setenv("SOLANA_DEVNET_RPC_URL", "https://a.example.com, https://b.example.com,")
		assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, run(t))
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("SOLANA_DEVNET_RPC_URL", "https://a.example.com")
		assert.Equal(t, []string{"https://flag.example.com"}, run(t, "--rpc-url", "https://flag.example.com"))
	})
}
