package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/solana"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func dbListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List stored inspections, newest slot first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			jqFlag(),
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "List every network instead of only --network",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rows to return",
				Value: 50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Rows to skip",
			},
		},
		Action: func(c *cli.Context) error {
			params := db.ListTransactionsParams{
				Limit:  int32(c.Int("limit")),
				Offset: int32(c.Int("offset")),
			}
			if !c.Bool("all") {
				network, err := resolveNetwork(c)
				if err != nil {
					return err
				}
				params.Network = string(network)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			rows, err := store.ListTransactions(ctx, params)
			if err != nil {
				return fmt.Errorf("failed to list inspections: %w", err)
			}
			total, err := store.CountTransactions(ctx, params.Network)
			if err != nil {
				return fmt.Errorf("failed to count inspections: %w", err)
			}

			summaries := make([]inspectionSummary, len(rows))
			for i, row := range rows {
				summaries[i] = summarizeInspection(row)
			}

			return writeOutput(c, summaries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SIGNATURE\tNETWORK\tSLOT\tSTATUS\tFEE\tIXS\tSOL MOVED\tINSPECTED")
				for _, s := range summaries {
					status := "success"
					if !s.Success {
						status = "failed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%s\t%s\n",
						solana.TruncateAddress(s.Signature),
						s.Network,
						s.Slot,
						status,
						s.Fee,
						s.InstructionCount,
						solana.FormatLamports(uint64(s.SolTransferred)),
						s.UpdatedAt.Format(time.RFC3339),
					)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "\nShowing %d of %d inspections\n", len(summaries), total)
				return nil
			})
		},
	}
}

func dbGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a stored inspection",
		ArgsUsage: "<signature>",
		Flags: []cli.Flag{
			jqFlag(),
			&cli.BoolFlag{
				Name:    "logs",
				Aliases: []string{"l"},
				Usage:   "Show the program invocation tree rebuilt from log messages",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			network, err := resolveNetwork(c)
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			row, err := store.GetTransaction(context.Background(), c.Args().First(), string(network))
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no stored inspection for %s on %s", c.Args().First(), network)
			}
			if err != nil {
				return fmt.Errorf("failed to get inspection: %w", err)
			}

			data, err := row.TransactionData()
			if err != nil {
				return err
			}

			return writeOutput(c, data, func(w io.Writer) error {
				fmt.Fprintf(w, "Network:       %s\n", row.Network)
				fmt.Fprintf(w, "Inspected:     %s\n", row.UpdatedAt.Format(time.RFC3339))
				return printTransaction(w, data, c.Bool("logs"))
			})
		},
	}
}

func dbMigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the inspected_transactions table and indexes",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(context.Background()); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func dbDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a stored inspection",
		ArgsUsage: "<signature>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			network, err := resolveNetwork(c)
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			signature := c.Args().First()
			if err := store.DeleteTransaction(context.Background(), signature, string(network)); err != nil {
				return fmt.Errorf("failed to delete inspection: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Deleted %s (%s)\n", signature, network)
			return nil
		},
	}
}

// inspectionSummary is the list view of a stored inspection.
type inspectionSummary struct {
	Signature        string     `json:"signature"`
	Network          string     `json:"network"`
	Slot             int64      `json:"slot"`
	BlockTime        *time.Time `json:"block_time,omitempty"`
	Fee              int64      `json:"fee"`
	Success          bool       `json:"success"`
	Error            *string    `json:"error,omitempty"`
	InstructionCount int32      `json:"instruction_count"`
	SolTransferred   int64      `json:"sol_transferred"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func summarizeInspection(row *db.InspectedTransaction) inspectionSummary {
	return inspectionSummary{
		Signature:        row.Signature,
		Network:          row.Network,
		Slot:             row.Slot,
		BlockTime:        row.BlockTime,
		Fee:              row.Fee,
		Success:          row.Success,
		Error:            row.Error,
		InstructionCount: row.InstructionCount,
		SolTransferred:   row.SolTransferred,
		UpdatedAt:        row.UpdatedAt,
	}
}

// getStore creates a database store from CLI context.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		// Try environment variable directly if flag not found
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := db.NewStore(pool, nil)
	closer := func() { pool.Close() }

	return store, closer, nil
}
