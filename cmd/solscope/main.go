package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "solscope",
		Usage: "Solana transaction inspector",
		Description: `A command-line tool for fetching and decoding Solana transactions and accounts.

Transactions are fetched over RPC (or read from a saved getTransaction record) and
decoded into instructions, account roles, balance changes, SOL transfers, memos and
compute budget settings. Decoded transactions can be stored in PostgreSQL, published
to NATS and inspected in bulk with a Temporal workflow.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Inspection commands (direct RPC, no server required)
			txCommand(),
			decodeCommand(),
			accountCommand(),
			programsCommand(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Stored inspection commands",
				Subcommands: []*cli.Command{
					dbListCommand(),
					dbGetCommand(),
					dbMigrateCommand(),
					dbDeleteCommand(),
				},
			},
			// NATS inspection event commands
			{
				Name:  "nats",
				Usage: "NATS inspection event commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Temporal batch inspection commands
			{
				Name:  "temporal",
				Usage: "Temporal batch inspection commands",
				Subcommands: []*cli.Command{
					temporalInspectCommand(),
					temporalResultCommand(),
					temporalListCommand(),
				},
			},
			// Client commands (HTTP API)
			apiCommands(),
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "network",
				Aliases: []string{"n"},
				Usage:   "Solana network (mainnet, devnet, testnet)",
				EnvVars: []string{"DEFAULT_NETWORK"},
				Value:   "mainnet",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL (defaults to SOLANA_<NETWORK>_RPC_URL or the public endpoint)",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.DurationFlag{
				Name:    "rpc-timeout",
				Usage:   "Timeout for RPC requests",
				EnvVars: []string{"RPC_TIMEOUT"},
				Value:   defaultRPCTimeout,
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue served by the worker",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "solscope-inspect",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for API and health commands",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
