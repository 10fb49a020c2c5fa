package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/solana"
	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams inspection events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to inspection events",
		ArgsUsage: "[network]",
		Description: `Subscribe to inspection events published to NATS JetStream.

Events are published to the subject: inspections.{network}
Without a network argument every network is streamed.

Examples:
  solscope nats subscribe devnet --json
  solscope nats subscribe --filter '.sol_transferred > 1000000000'`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "solscope-cli",
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "jq expression that must be truthy for an event to be shown (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.SubjectPrefix + ">"
			if c.NArg() > 0 {
				network, err := solana.ParseNetwork(c.Args().First())
				if err != nil {
					return err
				}
				subject = natspkg.SubjectPrefix + string(network)
			}

			filters := make([]*gojq.Code, 0, len(c.StringSlice("filter")))
			for _, f := range c.StringSlice("filter") {
				code, err := compileJQ(f)
				if err != nil {
					return err
				}
				filters = append(filters, code)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout := c.Duration("timeout"); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			return streamInspections(ctx, c, subject, filters)
		},
	}
}

// streamInspections consumes events on subject until ctx is done.
func streamInspections(ctx context.Context, c *cli.Context, subject string, filters []*gojq.Code) error {
	natsURL := c.String("nats-url")
	jsonOutput := c.Bool("json")
	out := c.App.Writer

	nc, err := natspkg.Connect(natsURL, "solscope-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Fprintf(out, "📡 Subscribing to: %s\n", subject)
		fmt.Fprintf(out, "   NATS: %s\n", natsURL)
		if c.Bool("durable") {
			fmt.Fprintf(out, "   Consumer: %s (durable)\n", c.String("consumer-name"))
		}
		fmt.Fprintf(out, "\nWaiting for inspections... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if c.Bool("durable") {
		consumerConfig.Durable = c.String("consumer-name")
		consumerConfig.Name = c.String("consumer-name")
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.InspectionEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Error parsing event: %v\n", err)
				_ = msg.Ack()
				continue
			}
			_ = msg.Ack()

			matched, err := matchesFilters(filters, &event)
			if err != nil {
				fmt.Fprintf(c.App.ErrWriter, "Error applying filter: %v\n", err)
				continue
			}
			if !matched {
				continue
			}

			count++
			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Fprintln(out, string(data))
			} else {
				printInspectionEvent(out, count, &event)
			}

		case <-ctx.Done():
			if !jsonOutput {
				fmt.Fprintf(out, "\n✅ Received %d inspections\n", count)
			}
			return nil
		}
	}
}

// matchesFilters reports whether every filter yields a truthy first result.
func matchesFilters(filters []*gojq.Code, event *natspkg.InspectionEvent) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return false, err
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return false, err
	}

	for _, code := range filters {
		result, ok := code.Run(input).Next()
		if !ok {
			return false, nil
		}
		if err, isErr := result.(error); isErr {
			return false, err
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy follows jq semantics: only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printInspectionEvent(w io.Writer, n int, event *natspkg.InspectionEvent) {
	status := "Success"
	if !event.Success {
		status = "Failed: " + event.Error
	}

	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Inspection #%d\n", n)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Signature:    %s\n", event.Signature)
	fmt.Fprintf(w, "Network:      %s\n", event.Network)
	fmt.Fprintf(w, "Slot:         %d\n", event.Slot)
	fmt.Fprintf(w, "Status:       %s\n", status)
	fmt.Fprintf(w, "Fee:          %s\n", solana.FormatLamports(event.Fee))
	fmt.Fprintf(w, "SOL Moved:    %s\n", solana.FormatLamports(event.SolTransferred))
	fmt.Fprintf(w, "Programs:     %s\n", strings.Join(event.Programs, ", "))
	fmt.Fprintf(w, "Instructions: %s\n", strings.Join(event.InstructionTypes, ", "))
	for _, memo := range event.Memos {
		fmt.Fprintf(w, "Memo:         %s\n", memo)
	}
	fmt.Fprintf(w, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the INSPECTIONS JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  solscope nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, err := natspkg.Connect(c.String("nats-url"), "solscope-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(context.Background(), natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, info)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Stream: %s\n", info.Config.Name)
			fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Description:  %s\n", info.Config.Description)
			fmt.Fprintf(w, "Subjects:     %v\n", info.Config.Subjects)
			fmt.Fprintf(w, "Messages:     %d\n", info.State.Msgs)
			fmt.Fprintf(w, "Bytes:        %d\n", info.State.Bytes)
			fmt.Fprintf(w, "First Seq:    %d\n", info.State.FirstSeq)
			fmt.Fprintf(w, "Last Seq:     %d\n", info.State.LastSeq)
			fmt.Fprintf(w, "Consumers:    %d\n", info.State.Consumers)
			fmt.Fprintf(w, "Max Age:      %s\n", info.Config.MaxAge)
			fmt.Fprintf(w, "Storage:      %s\n", info.Config.Storage)
			return nil
		},
	}
}
