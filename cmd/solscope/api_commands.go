package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solscope/client"
	"github.com/brojonat/solscope/service/solana"
	"github.com/urfave/cli/v2"
)

func apiCommands() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "HTTP client commands for a running solscope server",
		Description: `The same inspections as the top-level commands, performed by the server
at --server-url. Useful when RPC credentials live with the server only.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: time.Minute,
			},
		},
		Subcommands: []*cli.Command{
			apiTxCommand(),
			apiDecodeCommand(),
			apiAccountCommand(),
			apiProgramsCommand(),
			apiInspectionsCommand(),
			apiInspectionCommand(),
			apiBatchCommand(),
			apiBatchResultCommand(),
		},
	}
}

// getAPIClient builds a client for --server-url.
func getAPIClient(c *cli.Context) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	httpClient := &http.Client{Timeout: c.Duration("timeout")}
	return client.NewClient(serverURL, httpClient, loggerFromContext(c)), nil
}

func apiTxCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Fetch and decode a transaction through the server",
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
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			data, err := cl.GetTransaction(context.Background(), c.Args().First(), c.String("network"))
			if err != nil {
				return err
			}
			return writeOutput(c, data, func(w io.Writer) error {
				return printTransaction(w, data, c.Bool("logs"))
			})
		},
	}
}

func apiDecodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a saved getTransaction record on the server",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			jqFlag(),
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Signature to report (defaults to the record's first signature)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: record file or - for stdin")
			}
			raw, err := readInput(c, c.Args().First())
			if err != nil {
				return err
			}
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			data, err := cl.Decode(context.Background(), raw, c.String("signature"))
			if err != nil {
				return err
			}
			return writeOutput(c, data, func(w io.Writer) error {
				return printTransaction(w, data, false)
			})
		},
	}
}

func apiAccountCommand() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Usage:     "Look up an account through the server",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account address")
			}
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			account, err := cl.GetAccount(context.Background(), c.Args().First(), c.String("network"))
			if err != nil {
				return err
			}
			return writeOutput(c, account, func(w io.Writer) error {
				return printAccount(w, account)
			})
		},
	}
}

func apiProgramsCommand() *cli.Command {
	return &cli.Command{
		Name:  "programs",
		Usage: "List the server's program registry",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			programs, err := cl.ListPrograms(context.Background())
			if err != nil {
				return err
			}
			return writeOutput(c, programs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPROGRAM ID")
				for _, p := range programs {
					fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.ID)
				}
				return tw.Flush()
			})
		},
	}
}

func apiInspectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspections",
		Usage: "List transactions stored by the server",
		Flags: []cli.Flag{
			jqFlag(),
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
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			list, err := cl.ListInspections(context.Background(), client.ListInspectionsParams{
				Network: c.String("network"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return err
			}
			return writeOutput(c, list, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "SIGNATURE\tNETWORK\tSLOT\tSTATUS\tFEE\tIXS\tSOL MOVED")
				for _, in := range list.Transactions {
					status := "success"
					if !in.Success {
						status = "failed"
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%s\n",
						solana.TruncateAddress(in.Signature),
						in.Network,
						in.Slot,
						status,
						in.Fee,
						in.InstructionCount,
						solana.FormatLamports(uint64(in.SolTransferred)),
					)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "\nShowing %d of %d inspections\n", list.Count, list.Total)
				return nil
			})
		},
	}
}

func apiInspectionCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspection",
		Usage:     "Show a transaction stored by the server",
		ArgsUsage: "<signature>",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			inspection, err := cl.GetInspection(context.Background(), c.Args().First(), c.String("network"))
			if client.IsNotFound(err) {
				return fmt.Errorf("no stored inspection for %s on %s", c.Args().First(), c.String("network"))
			}
			if err != nil {
				return err
			}
			return writeOutput(c, inspection, func(w io.Writer) error {
				fmt.Fprintf(w, "Network:       %s\n", inspection.Network)
				fmt.Fprintf(w, "Inspected:     %s\n", inspection.UpdatedAt.Format(time.RFC3339))
				if inspection.Transaction == nil {
					return nil
				}
				return printTransaction(w, inspection.Transaction, false)
			})
		},
	}
}

func apiBatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Start a batch inspection through the server",
		ArgsUsage: "<signature...>",
		Flags: []cli.Flag{
			jqFlag(),
			&cli.StringFlag{
				Name:  "from-file",
				Usage: "Read signatures from a file, one per line (- for stdin)",
			},
			&cli.BoolFlag{
				Name:    "wait",
				Aliases: []string{"w"},
				Usage:   "Wait for the workflow to finish and print its result",
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Store each decoded transaction",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish an inspection event per transaction",
			},
		},
		Action: func(c *cli.Context) error {
			signatures := c.Args().Slice()
			if path := c.String("from-file"); path != "" {
				raw, err := readInput(c, path)
				if err != nil {
					return err
				}
				signatures = append(signatures, parseSignatureList(string(raw))...)
			}
			if len(signatures) == 0 {
				return fmt.Errorf("at least one signature is required")
			}

			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			ctx := context.Background()
			batch, err := cl.StartBatch(ctx, client.BatchRequest{
				Network:    c.String("network"),
				Signatures: signatures,
				Persist:    c.Bool("persist"),
				Publish:    c.Bool("publish"),
			})
			if err != nil {
				return err
			}

			if !c.Bool("wait") {
				return writeOutput(c, batch, func(w io.Writer) error {
					fmt.Fprintf(w, "✓ Started batch inspection\n")
					fmt.Fprintf(w, "  Workflow ID: %s\n", batch.WorkflowID)
					fmt.Fprintf(w, "  Run ID:      %s\n", batch.RunID)
					fmt.Fprintf(w, "  Signatures:  %d\n", batch.Requested)
					return nil
				})
			}

			result, err := cl.GetBatch(ctx, batch.WorkflowID, batch.RunID)
			if err != nil {
				return err
			}
			return writeOutput(c, result, func(w io.Writer) error {
				return printAPIBatchResult(w, batch.WorkflowID, result)
			})
		},
	}
}

func apiBatchResultCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch-result",
		Usage:     "Wait for a batch inspection started through the server",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			jqFlag(),
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID (defaults to the latest run)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow ID")
			}
			cl, err := getAPIClient(c)
			if err != nil {
				return err
			}

			workflowID := c.Args().First()
			result, err := cl.GetBatch(context.Background(), workflowID, c.String("run-id"))
			if err != nil {
				return err
			}
			return writeOutput(c, result, func(w io.Writer) error {
				return printAPIBatchResult(w, workflowID, result)
			})
		},
	}
}

func printAPIBatchResult(w io.Writer, workflowID string, result *client.BatchResult) error {
	fmt.Fprintf(w, "Workflow ID: %s\n", workflowID)
	fmt.Fprintf(w, "Network:     %s\n", result.Network)
	fmt.Fprintf(w, "Requested:   %d\n", result.Requested)
	fmt.Fprintf(w, "Succeeded:   %d\n", result.Succeeded)
	fmt.Fprintf(w, "Failed:      %d\n\n", result.Failed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tSLOT\tSTATUS\tSOL MOVED")
	for _, r := range result.Results {
		if r.Error != nil {
			fmt.Fprintf(tw, "%s\t-\terror: %s\t-\n", solana.TruncateAddress(r.Signature), *r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
			solana.TruncateAddress(r.Signature),
			r.Slot,
			r.Status,
			solana.FormatLamports(r.SolTransferred),
		)
	}
	return tw.Flush()
}
