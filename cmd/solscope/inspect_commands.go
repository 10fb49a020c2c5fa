package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func jqFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "jq",
		Usage: "jq filter applied to the JSON output (e.g. '.sol_transfers[].amount')",
	}
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Aliases:   []string{"transaction"},
		Usage:     "Fetch and decode a transaction",
		ArgsUsage: "<signature>",
		Description: `Fetch a confirmed transaction over RPC and print its decoded form.

Examples:
  solscope tx 5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7
  solscope --network devnet tx <signature> --logs
  solscope tx <signature> --jq '.instructions[].instruction_type'
  solscope tx <signature> --save --publish`,
		Flags: []cli.Flag{
			jqFlag(),
			&cli.BoolFlag{
				Name:    "logs",
				Aliases: []string{"l"},
				Usage:   "Show the program invocation tree rebuilt from log messages",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Store the decoded transaction (requires --database-url)",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish an inspection event to NATS",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction signature")
			}
			signature, err := solanago.SignatureFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid signature: %w", err)
			}
			network, err := resolveNetwork(c)
			if err != nil {
				return err
			}

			client, err := getSolanaClient(c, network)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("rpc-timeout"))
			defer cancel()

			data, err := client.FetchTransaction(ctx, signature)
			if err != nil {
				return err
			}

			if c.Bool("save") {
				if err := saveTransaction(ctx, c, network, data); err != nil {
					return err
				}
			}
			if c.Bool("publish") {
				if err := publishTransaction(ctx, c, network, data); err != nil {
					return err
				}
			}

			return writeOutput(c, data, func(w io.Writer) error {
				fmt.Fprintf(w, "Network:       %s\n", network.Name())
				return printTransaction(w, data, c.Bool("logs"))
			})
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a saved getTransaction record without contacting RPC",
		ArgsUsage: "<file|->",
		Description: `Decode a raw getTransaction result (json or jsonParsed encoding) read from a
file, or from stdin when the argument is "-".

Example:
  curl -s $RPC -d '{"jsonrpc":"2.0","id":1,"method":"getTransaction","params":["<sig>",{"encoding":"jsonParsed","maxSupportedTransactionVersion":0}]}' \
    | jq .result | solscope decode -`,
		Flags: []cli.Flag{
			jqFlag(),
			&cli.StringFlag{
				Name:  "signature",
				Usage: "Signature to report (defaults to the record's first signature)",
			},
			&cli.BoolFlag{
				Name:    "logs",
				Aliases: []string{"l"},
				Usage:   "Show the program invocation tree rebuilt from log messages",
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

			rec, err := solana.ParseTransactionRecord(raw)
			if errors.Is(err, solana.ErrTransactionNotFound) {
				return fmt.Errorf("input is empty or null, not a transaction record")
			}
			if err != nil {
				return fmt.Errorf("invalid transaction record: %w", err)
			}

			decoder := solana.NewDecoder(nil, loggerFromContext(c))
			var data *solana.TransactionData
			if s := c.String("signature"); s != "" {
				signature, perr := solanago.SignatureFromBase58(s)
				if perr != nil {
					return fmt.Errorf("invalid signature: %w", perr)
				}
				data, err = decoder.Decode(signature, rec)
			} else {
				data, err = decoder.DecodeRecord(rec)
			}
			if err != nil {
				return fmt.Errorf("failed to decode transaction: %w", err)
			}

			return writeOutput(c, data, func(w io.Writer) error {
				return printTransaction(w, data, c.Bool("logs"))
			})
		},
	}
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Aliases:   []string{"acct"},
		Usage:     "Show an account's balance, owner, token holdings and recent transactions",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account address")
			}
			address, err := solanago.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid address: %w", err)
			}
			network, err := resolveNetwork(c)
			if err != nil {
				return err
			}

			client, err := getSolanaClient(c, network)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("rpc-timeout"))
			defer cancel()

			account, err := client.FetchAccount(ctx, address)
			if err != nil {
				return err
			}

			return writeOutput(c, account, func(w io.Writer) error {
				return printAccount(w, account)
			})
		},
	}
}

func programsCommand() *cli.Command {
	return &cli.Command{
		Name:  "programs",
		Usage: "List the programs the decoder recognizes",
		Flags: []cli.Flag{jqFlag()},
		Action: func(c *cli.Context) error {
			programs := solana.KnownPrograms()
			return writeOutput(c, programs, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPROGRAM ID")
				for _, p := range programs {
					fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.ID)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d programs\n", len(programs))
				return nil
			})
		},
	}
}

// readInput reads a file, or the app's stdin for "-".
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "-" {
		raw, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return raw, nil
}

func saveTransaction(ctx context.Context, c *cli.Context, network solana.Network, data *solana.TransactionData) error {
	store, closer, err := getStore(c)
	if err != nil {
		return err
	}
	defer closer()

	if _, err := store.UpsertTransaction(ctx, network, data); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Saved %s (%s)\n", data.Signature, network)
	return nil
}

func publishTransaction(ctx context.Context, c *cli.Context, network solana.Network, data *solana.TransactionData) error {
	publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, loggerFromContext(c))
	if err != nil {
		return err
	}
	defer publisher.Close()

	event := natspkg.FromTransactionData(network, data)
	if err := publisher.PublishInspection(ctx, event); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Published %s to %s\n", data.Signature, event.Subject())
	return nil
}

// printTransaction writes the human-readable form of a decoded transaction.
func printTransaction(w io.Writer, data *solana.TransactionData, withLogs bool) error {
	version := "(unknown)"
	if data.Version != nil {
		version = *data.Version
	}

	fmt.Fprintf(w, "Signature:     %s\n", data.Signature)
	fmt.Fprintf(w, "Slot:          %d\n", data.Slot)
	fmt.Fprintf(w, "Block Time:    %s\n", formatOptionalTime(data.BlockTime))
	fmt.Fprintf(w, "Status:        %s\n", data.Status)
	fmt.Fprintf(w, "Fee:           %s\n", solana.FormatLamports(data.Fee))
	fmt.Fprintf(w, "Priority Fee:  %s\n", formatOptionalUint(data.PriorityFee, "micro-lamports/CU"))
	fmt.Fprintf(w, "Compute Units: %s (limit %s)\n",
		formatOptionalUint(data.ComputeUnitsConsumed, ""),
		formatOptionalUint(data.MaxComputeUnits, ""),
	)
	fmt.Fprintf(w, "Version:       %s\n", version)
	if data.RecentBlockhash != "" {
		fmt.Fprintf(w, "Blockhash:     %s\n", data.RecentBlockhash)
	}

	fmt.Fprintf(w, "\nInstructions (%d)\n", len(data.Instructions))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPROGRAM\tTYPE\tACCOUNTS\tCU")
	for i, ix := range data.Instructions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			i,
			programLabel(ix),
			ix.InstructionType,
			len(ix.Accounts),
			formatOptionalUint(ix.ComputeUnitsConsumed, ""),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(data.InnerInstructions) > 0 {
		fmt.Fprintf(w, "\nInner Instructions (%d)\n", len(data.InnerInstructions))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PARENT\tPROGRAM\tTYPE\tACCOUNTS")
		for _, ix := range data.InnerInstructions {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n",
				ix.ParentIndex,
				programLabel(ix.InstructionInfo),
				ix.InstructionType,
				len(ix.Accounts),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nAccounts (%d)\n", len(data.Accounts))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tADDRESS\tSIGNER\tWRITABLE\tBALANCE CHANGE")
	for i, acct := range data.Accounts {
		change := "-"
		if delta, ok := acct.BalanceChange(); ok {
			change = solana.FormatLamportsDelta(delta)
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\n", i, acct.Pubkey, acct.IsSigner, acct.IsWritable, change)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(data.SolTransfers) > 0 {
		fmt.Fprintf(w, "\nSOL Transfers (%d)\n", len(data.SolTransfers))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
		for _, tr := range data.SolTransfers {
			fmt.Fprintf(tw, "%s\t%s\t%s\n",
				solana.TruncateAddress(tr.From.String()),
				solana.TruncateAddress(tr.To.String()),
				solana.FormatLamports(tr.Amount),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(data.TokenTransfers) > 0 {
		fmt.Fprintf(w, "\nToken Transfers (%d)\n", len(data.TokenTransfers))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tTO\tMINT\tAMOUNT")
		for _, tr := range data.TokenTransfers {
			mint := solana.TruncateAddress(tr.Mint.String())
			if tr.TokenName != nil {
				mint = *tr.TokenName
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d (decimals %d)\n",
				solana.TruncateAddress(tr.From.String()),
				solana.TruncateAddress(tr.To.String()),
				mint,
				tr.Amount,
				tr.Decimals,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(data.Memos) > 0 {
		fmt.Fprintf(w, "\nMemos (%d)\n", len(data.Memos))
		for _, memo := range data.Memos {
			fmt.Fprintf(w, "  %s\n", memo)
		}
	}

	if withLogs {
		printInvocations(w, data.Logs)
	}
	return nil
}

// printInvocations writes the call tree rebuilt from log messages, indented by depth.
func printInvocations(w io.Writer, logs []string) {
	invocations := solana.ParseInvocations(logs)
	fmt.Fprintf(w, "\nProgram Invocations (%d)\n", len(invocations))
	for _, inv := range invocations {
		indent := strings.Repeat("  ", inv.Depth)
		name := inv.ProgramID.String()
		if known, ok := solana.ProgramName(inv.ProgramID); ok {
			name = known
		}

		outcome := "incomplete"
		switch {
		case inv.Succeeded:
			outcome = "success"
		case inv.Failure != "":
			outcome = "failed: " + inv.Failure
		}

		units := ""
		if inv.ComputeUnitsConsumed != nil {
			units = fmt.Sprintf(", %d CU", *inv.ComputeUnitsConsumed)
		}
		fmt.Fprintf(w, "%s%s [%d] %s%s\n", indent, name, inv.Depth, outcome, units)
		for _, msg := range inv.Messages {
			fmt.Fprintf(w, "%s  > %s\n", indent, msg)
		}
	}
}

// printAccount writes the human-readable form of an account lookup.
func printAccount(w io.Writer, account *solana.AccountData) error {
	owner := account.Owner.String()
	if account.OwnerName != nil {
		owner = fmt.Sprintf("%s (%s)", owner, *account.OwnerName)
	}
	rentExempt := fmt.Sprintf("%t", account.IsRentExempt)
	if account.MinBalanceForRentExemption != nil {
		rentExempt += fmt.Sprintf(" (minimum %s)", solana.FormatLamports(*account.MinBalanceForRentExemption))
	}

	fmt.Fprintf(w, "Address:     %s\n", account.Pubkey)
	fmt.Fprintf(w, "Type:        %s\n", account.AccountType)
	fmt.Fprintf(w, "Balance:     %s\n", solana.FormatLamports(account.Lamports))
	fmt.Fprintf(w, "Owner:       %s\n", owner)
	fmt.Fprintf(w, "Executable:  %t\n", account.Executable)
	fmt.Fprintf(w, "Data Size:   %d bytes\n", account.DataSize)
	fmt.Fprintf(w, "Rent Epoch:  %d\n", account.RentEpoch)
	fmt.Fprintf(w, "Rent Exempt: %s\n", rentExempt)

	if len(account.TokenAccounts) > 0 {
		fmt.Fprintf(w, "\nToken Accounts (%d)\n", len(account.TokenAccounts))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MINT\tTOKEN\tAMOUNT")
		for _, ta := range account.TokenAccounts {
			name := "-"
			if ta.TokenName != nil {
				name = *ta.TokenName
			}
			fmt.Fprintf(tw, "%s\t%s\t%g\n", ta.Mint, name, ta.UIAmount)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(account.RecentTransactions) > 0 {
		fmt.Fprintf(w, "\nRecent Transactions (%d)\n", len(account.RecentTransactions))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SIGNATURE\tSLOT\tTIME\tSTATUS")
		for _, tx := range account.RecentTransactions {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n",
				solana.TruncateAddress(tx.Signature.String()),
				tx.Slot,
				formatOptionalTime(tx.Timestamp),
				tx.Status,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func programLabel(ix solana.InstructionInfo) string {
	if !ix.ProgramResolved() {
		return "(invalid program id)"
	}
	if ix.ProgramName != nil {
		return *ix.ProgramName
	}
	return solana.TruncateAddress(ix.ProgramID.String())
}
