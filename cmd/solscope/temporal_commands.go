package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/solscope/service/solana"
	"github.com/brojonat/solscope/service/temporal"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
	"go.temporal.io/api/workflowservice/v1"
)

func temporalInspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Start a batch inspection workflow",
		ArgsUsage: "<signature...>",
		Description: `Start an InspectBatchWorkflow that fetches and decodes every signature on the
worker. Signatures may be passed as arguments, read from a file (one per line) or both.

Examples:
  solscope --network devnet temporal inspect <sig1> <sig2> --wait
  solscope temporal inspect --from-file sigs.txt --persist --publish`,
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
				Usage: "Have the worker store each decoded transaction",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Have the worker publish an inspection event per transaction",
			},
		},
		Action: func(c *cli.Context) error {
			network, err := resolveNetwork(c)
			if err != nil {
				return err
			}

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
			if len(signatures) > temporal.MaxBatchSignatures {
				return fmt.Errorf("too many signatures: %d (max %d)", len(signatures), temporal.MaxBatchSignatures)
			}
			for i, s := range signatures {
				if _, err := solanago.SignatureFromBase58(s); err != nil {
					return fmt.Errorf("signature %d (%s): %w", i+1, s, err)
				}
			}

			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			input := temporal.InspectBatchInput{
				Network:    string(network),
				Signatures: signatures,
				Persist:    c.Bool("persist"),
				Publish:    c.Bool("publish"),
			}

			ctx := context.Background()
			workflowID, runID, err := temporalClient.StartInspectBatch(ctx, input)
			if err != nil {
				return err
			}

			if !c.Bool("wait") {
				started := map[string]interface{}{
					"workflow_id": workflowID,
					"run_id":      runID,
					"network":     network,
					"requested":   len(signatures),
				}
				return writeOutput(c, started, func(w io.Writer) error {
					fmt.Fprintf(w, "✓ Started batch inspection\n")
					fmt.Fprintf(w, "  Workflow ID: %s\n", workflowID)
					fmt.Fprintf(w, "  Run ID:      %s\n", runID)
					fmt.Fprintf(w, "  Signatures:  %d\n", len(signatures))
					fmt.Fprintf(w, "\nFetch the result with: solscope temporal result %s\n", workflowID)
					return nil
				})
			}

			result, err := temporalClient.GetInspectBatchResult(ctx, workflowID, runID)
			if err != nil {
				return err
			}
			return writeOutput(c, result, func(w io.Writer) error {
				return printBatchResult(w, workflowID, result)
			})
		},
	}
}

func temporalResultCommand() *cli.Command {
	return &cli.Command{
		Name:      "result",
		Usage:     "Wait for a batch inspection workflow and print its result",
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
			workflowID := c.Args().First()

			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			result, err := temporalClient.GetInspectBatchResult(context.Background(), workflowID, c.String("run-id"))
			if err != nil {
				return err
			}
			return writeOutput(c, result, func(w io.Writer) error {
				return printBatchResult(w, workflowID, result)
			})
		},
	}
}

func temporalListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List recent batch inspection workflows",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum workflows to list",
				Value: 20,
			},
		},
		Action: func(c *cli.Context) error {
			temporalClient, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer temporalClient.Close()

			resp, err := temporalClient.SDKClient().ListWorkflow(context.Background(), &workflowservice.ListWorkflowExecutionsRequest{
				Namespace: c.String("temporal-namespace"),
				PageSize:  int32(c.Int("limit")),
				Query:     "WorkflowType = 'InspectBatchWorkflow'",
			})
			if err != nil {
				return fmt.Errorf("failed to list workflows: %w", err)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORKFLOW ID\tSTATUS\tSTARTED\tCLOSED")
			for _, exec := range resp.GetExecutions() {
				closed := "-"
				if exec.GetCloseTime() != nil {
					closed = exec.GetCloseTime().AsTime().Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					exec.GetExecution().GetWorkflowId(),
					exec.GetStatus().String(),
					exec.GetStartTime().AsTime().Format(time.RFC3339),
					closed,
				)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d workflows\n", len(resp.GetExecutions()))
			return nil
		},
	}
}

func printBatchResult(w io.Writer, workflowID string, result *temporal.InspectBatchResult) error {
	fmt.Fprintf(w, "Workflow ID: %s\n", workflowID)
	fmt.Fprintf(w, "Network:     %s\n", result.Network)
	fmt.Fprintf(w, "Requested:   %d\n", result.Requested)
	fmt.Fprintf(w, "Succeeded:   %d\n", result.Succeeded)
	fmt.Fprintf(w, "Failed:      %d\n\n", result.Failed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SIGNATURE\tSLOT\tSTATUS\tFEE\tIXS\tSOL MOVED\tSTORED\tPUBLISHED")
	for _, r := range result.Results {
		if r.Error != nil {
			fmt.Fprintf(tw, "%s\t-\terror: %s\t-\t-\t-\t-\t-\n", solana.TruncateAddress(r.Signature), *r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\t%t\t%t\n",
			solana.TruncateAddress(r.Signature),
			r.Slot,
			r.Status,
			r.Fee,
			r.InstructionCount,
			solana.FormatLamports(r.SolTransferred),
			r.Persisted,
			r.Published,
		)
	}
	return tw.Flush()
}

// parseSignatureList splits text into signatures, one per line. Blank lines
// and lines starting with # are skipped.
func parseSignatureList(text string) []string {
	var signatures []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		signatures = append(signatures, line)
	}
	return signatures
}

// getTemporalClient connects to Temporal using the global flags.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	host := c.String("temporal-host")
	if host == "" {
		host = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	}

	namespace := c.String("temporal-namespace")
	if namespace == "" {
		namespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	}

	taskQueue := c.String("temporal-task-queue")
	if taskQueue == "" {
		taskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solscope-inspect")
	}

	return temporal.NewClient(host, namespace, taskQueue, nil, loggerFromContext(c))
}
