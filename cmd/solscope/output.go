package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brojonat/solscope/service/solana"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

const defaultRPCTimeout = 30 * time.Second

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// compileJQ parses and compiles a jq filter.
func compileJQ(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}

// outputJQ runs a jq filter over the JSON form of v and writes every result.
// String results are printed raw, everything else as indented JSON.
func outputJQ(w io.Writer, filter string, v interface{}) error {
	code, err := compileJQ(filter)
	if err != nil {
		return err
	}

	// gojq only understands plain JSON values, so round-trip through encoding/json.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq filter %q failed: %w", filter, err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		if err := outputJSON(w, result); err != nil {
			return err
		}
	}
}

// writeOutput renders v according to the --jq and --json flags, falling back
// to the human-readable printer.
func writeOutput(c *cli.Context, v interface{}, human func(io.Writer) error) error {
	w := c.App.Writer
	if filter := c.String("jq"); filter != "" {
		return outputJQ(w, filter, v)
	}
	if c.Bool("json") {
		return outputJSON(w, v)
	}
	return human(w)
}

// setupLogger creates a structured logger with the given log level on stderr.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func loggerFromContext(c *cli.Context) *slog.Logger {
	return setupLogger(c.String("log-level"))
}

// resolveNetwork parses the global --network flag.
func resolveNetwork(c *cli.Context) (solana.Network, error) {
	network, err := solana.ParseNetwork(c.String("network"))
	if err != nil {
		return "", fmt.Errorf("--network: %w", err)
	}
	return network, nil
}

// rpcEndpoints returns the RPC URLs for a network: --rpc-url, then
// SOLANA_<NETWORK>_RPC_URL, then the public endpoint. Either setting may hold
// a comma-separated list.
func rpcEndpoints(c *cli.Context, network solana.Network) []string {
	setting := c.String("rpc-url")
	if setting == "" {
		setting = getEnvOrDefault("SOLANA_"+strings.ToUpper(string(network))+"_RPC_URL", network.DefaultRPCURL())
	}

	var endpoints []string
	for _, part := range strings.Split(setting, ",") {
		if part = strings.TrimSpace(part); part != "" {
			endpoints = append(endpoints, part)
		}
	}
	return endpoints
}

// getSolanaClient builds an RPC-backed client for the selected network.
func getSolanaClient(c *cli.Context, network solana.Network) (*solana.Client, error) {
	endpoint, err := solana.SelectRandomEndpoint(rpcEndpoints(c, network))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", network, err)
	}

	logger := loggerFromContext(c)
	decoder := solana.NewDecoder(nil, logger)
	rpcClient := solana.NewRPCClient(endpoint)
	return solana.NewClient(rpcClient, decoder, solana.EndpointLabel(endpoint), nil, logger), nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "(unknown)"
	}
	return t.Format(time.RFC3339)
}

func formatOptionalUint(v *uint64, unit string) string {
	if v == nil {
		return "-"
	}
	if unit == "" {
		return fmt.Sprintf("%d", *v)
	}
	return fmt.Sprintf("%d %s", *v, unit)
}
